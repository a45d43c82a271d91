package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	mdbatch "github.com/alnah/go-mdbatch"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Parse flags first to get workers count and verbose
	flags, _, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitUsage)
	}

	// Configure GOMAXPROCS with conditional logging
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	if flags.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	poolSize := mdbatch.ResolvePoolSize(flags.workers)
	if flags.verbose {
		fmt.Fprintf(os.Stderr, "Pool size: %d\n", poolSize)
	}

	var factory func() mdbatch.Converter
	if flags.timeout != "" {
		d, err := time.ParseDuration(flags.timeout)
		if err != nil || d <= 0 {
			fmt.Fprintf(os.Stderr, "invalid --timeout %q\n", flags.timeout)
			os.Exit(ExitUsage)
		}
		factory = func() mdbatch.Converter {
			return mdbatch.NewRenderer(mdbatch.WithRenderTimeout(d))
		}
	}
	pool := mdbatch.NewConverterPool(poolSize, factory)
	defer pool.Close()

	if err := run(os.Args, pool, DefaultEnv()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := exitCodeFor(err)
		_ = pool.Close()
		os.Exit(code)
	}
}
