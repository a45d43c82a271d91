package main

import (
	"context"
	"errors"
	"os"

	mdbatch "github.com/alnah/go-mdbatch"
)

// Exit codes for the mdbatch CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess   = 0 // Successful batch (including partial success)
	ExitGeneral   = 1 // General/unexpected error, or zero files succeeded
	ExitUsage     = 2 // Invalid flags, config, or validation
	ExitIO        = 3 // File not found, permission denied
	ExitBrowser   = 4 // Browser/Chrome errors
	ExitCancelled = 5 // Run cancelled by signal
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Cancellation (exit 5)
	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}

	// Browser errors (exit 4)
	if errors.Is(err, mdbatch.ErrBrowserConnect) ||
		errors.Is(err, mdbatch.ErrPageCreate) ||
		errors.Is(err, mdbatch.ErrPageLoad) ||
		errors.Is(err, mdbatch.ErrPDFGeneration) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, mdbatch.ErrReadMarkdown) ||
		errors.Is(err, mdbatch.ErrWritePDF) ||
		errors.Is(err, mdbatch.ErrNoFilesMatched) ||
		errors.Is(err, ErrReadCSS) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrConfigNotFound) ||
		errors.Is(err, ErrConfigParse) ||
		errors.Is(err, mdbatch.ErrEmptyInput) ||
		errors.Is(err, mdbatch.ErrInvalidConcurrency) ||
		errors.Is(err, mdbatch.ErrInvalidFormat) ||
		errors.Is(err, mdbatch.ErrInvalidCustomPattern) ||
		errors.Is(err, mdbatch.ErrInvalidExtension) {
		return ExitUsage
	}

	return ExitGeneral
}
