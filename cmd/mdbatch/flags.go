package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// cliFlags holds all flags for the mdbatch command.
type cliFlags struct {
	config  string
	quiet   bool
	verbose bool
	version bool

	// Output policy
	output       string
	recursive    bool
	preserveDirs bool
	format       string
	pattern      string

	// Scheduling
	workers     int
	stopOnError bool
	timeout     string

	// Conversion options
	css       string
	pageSize  string
	highlight bool

	// Recovery
	noRecover  bool
	noCleanup  bool
	noHealth   bool
	maxRetries int
	retryDelay string
}

// addOutputFlags adds output policy flags to a FlagSet.
func addOutputFlags(fs *flag.FlagSet, f *cliFlags) {
	fs.StringVarP(&f.output, "output", "o", "", "output directory")
	fs.BoolVarP(&f.recursive, "recursive", "r", false, "descend into subdirectories")
	fs.BoolVar(&f.preserveDirs, "preserve-dirs", false, "mirror source directory structure")
	fs.StringVar(&f.format, "format", "original", "filename format: original, with-timestamp, with-date, custom")
	fs.StringVar(&f.pattern, "pattern", "", "custom filename pattern, must contain {name}")
}

// addSchedulingFlags adds worker pool flags to a FlagSet.
func addSchedulingFlags(fs *flag.FlagSet, f *cliFlags) {
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
	fs.BoolVar(&f.stopOnError, "stop-on-error", false, "stop dispatching after the first failure")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "PDF generation timeout (e.g., 30s, 2m)")
}

// addConvertFlags adds per-file conversion flags to a FlagSet.
func addConvertFlags(fs *flag.FlagSet, f *cliFlags) {
	fs.StringVar(&f.css, "css", "", "CSS file injected into every document")
	fs.StringVarP(&f.pageSize, "page-size", "p", "", "page size: letter, a4, legal")
	fs.BoolVar(&f.highlight, "highlight", false, "syntax highlighting for code blocks")
}

// addRecoveryFlags adds error recovery flags to a FlagSet.
func addRecoveryFlags(fs *flag.FlagSet, f *cliFlags) {
	fs.BoolVar(&f.noRecover, "no-recover", false, "skip automated retry of transient failures")
	fs.BoolVar(&f.noCleanup, "no-cleanup", false, "keep partial artifacts after failures")
	fs.BoolVar(&f.noHealth, "no-health-check", false, "retry without system health gating")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "retry attempts per transient failure (0 = default)")
	fs.StringVar(&f.retryDelay, "retry-delay", "", "delay between retries (e.g., 30s)")
}

// parseFlags parses command-line flags and returns positional args.
func parseFlags(args []string) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("mdbatch", flag.ContinueOnError)
	f := &cliFlags{}

	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed timing")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	addOutputFlags(fs, f)
	addSchedulingFlags(fs, f)
	addConvertFlags(fs, f)
	addRecoveryFlags(fs, f)

	fs.Usage = func() { printUsage(os.Stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
