package main

import (
	"fmt"
	"io"
)

// printUsage writes the command usage to w.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `mdbatch - batch Markdown to PDF conversion with error recovery

Usage:
  mdbatch [flags] <input>

Input forms:
  docs/                    directory (*.md, or **/*.md with --recursive)
  docs/**/*.md             glob pattern
  a.md,b.md,notes/c.md     comma-separated list

Common flags:
  -o, --output DIR         output directory (default ".")
  -r, --recursive          descend into subdirectories
      --preserve-dirs      mirror source directory structure
      --format FORMAT      original, with-timestamp, with-date, custom
      --pattern PATTERN    custom filename pattern ({name} required)
  -w, --workers N          parallel workers (0 = auto)
      --stop-on-error      stop dispatching after the first failure
  -t, --timeout DUR        PDF generation timeout (e.g., 30s, 2m)
  -c, --config NAME|PATH   config file name or path
  -q, --quiet              only show errors
  -v, --verbose            show detailed progress

Conversion flags:
      --css FILE           CSS injected into every document
  -p, --page-size SIZE     letter, a4, legal
      --highlight          syntax highlighting for code blocks

Recovery flags:
      --no-recover         skip automated retry of transient failures
      --no-cleanup         keep partial artifacts after failures
      --no-health-check    retry without system health gating
      --max-retries N      retry attempts per transient failure
      --retry-delay DUR    delay between retries (e.g., 30s)

Examples:
  mdbatch docs -o pdf
  mdbatch 'docs/**/*.md' -o pdf --preserve-dirs -w 4
  mdbatch report.md --format with-date
`)
}
