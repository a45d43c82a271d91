package mdbatch

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Sentinel errors for library operations.
var (
	ErrEmptyMarkdown  = errors.New("markdown content cannot be empty")
	ErrReadMarkdown   = errors.New("failed to read markdown file")
	ErrWritePDF       = errors.New("failed to write PDF file")
	ErrHTMLConversion = errors.New("HTML conversion failed")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")

	// Batch configuration validation errors.
	ErrEmptyInput           = errors.New("input specification cannot be empty")
	ErrInvalidConcurrency   = errors.New("invalid max concurrent processes")
	ErrInvalidFormat        = errors.New("invalid filename format")
	ErrInvalidCustomPattern = errors.New("custom pattern must contain {name}")

	// Run-level errors.
	ErrNoFilesMatched = errors.New("no files matched the input specification")
)

// ErrorKind classifies a per-file conversion failure.
type ErrorKind string

// Error kinds, from structural input problems to transient environment
// issues. Only SystemError and RenderError are retryable by default.
const (
	KindFileNotFound     ErrorKind = "file-not-found"
	KindPermissionDenied ErrorKind = "permission-denied"
	KindParseError       ErrorKind = "parse-error"
	KindInvalidFormat    ErrorKind = "invalid-format"
	KindSystemError      ErrorKind = "system-error"
	KindRenderError      ErrorKind = "render-error"
)

// Retryable reports whether errors of this kind are presumed transient.
// Structural problems (missing files, bad permissions, malformed input)
// cannot be fixed by retrying.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindSystemError, KindRenderError:
		return true
	}
	return false
}

// BatchError records a single file's failure within a batch run.
// CanRetry defaults from the kind but may be overridden by the producing
// collaborator via WithRetry.
type BatchError struct {
	InputPath string
	Kind      ErrorKind
	Message   string
	CanRetry  bool
	Err       error // original cause, may be nil
}

// NewBatchError creates a BatchError for inputPath with CanRetry derived
// from the kind.
func NewBatchError(inputPath string, kind ErrorKind, err error) *BatchError {
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return &BatchError{
		InputPath: inputPath,
		Kind:      kind,
		Message:   msg,
		CanRetry:  kind.Retryable(),
		Err:       err,
	}
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.InputPath, e.Kind, e.Message)
}

// Unwrap returns the original cause for errors.Is/As chains.
func (e *BatchError) Unwrap() error {
	return e.Err
}

// WithRetry overrides the retryability derived from the kind and returns
// the receiver for chaining. Producers use it when they know better than
// the kind-based default (e.g. a SystemError that is known permanent).
func (e *BatchError) WithRetry(retry bool) *BatchError {
	e.CanRetry = retry
	return e
}

// ClassifyError converts an arbitrary conversion failure into a BatchError
// by matching known sentinels and OS errors. Already-classified errors
// pass through unchanged.
func ClassifyError(inputPath string, err error) *BatchError {
	var be *BatchError
	if errors.As(err, &be) {
		return be
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewBatchError(inputPath, KindFileNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return NewBatchError(inputPath, KindPermissionDenied, err)
	case errors.Is(err, ErrHTMLConversion):
		return NewBatchError(inputPath, KindParseError, err)
	case errors.Is(err, ErrEmptyMarkdown):
		return NewBatchError(inputPath, KindInvalidFormat, err)
	case errors.Is(err, ErrBrowserConnect),
		errors.Is(err, ErrPageCreate),
		errors.Is(err, ErrPageLoad),
		errors.Is(err, ErrPDFGeneration):
		return NewBatchError(inputPath, KindRenderError, err)
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		// In-flight unit interrupted by cancellation: transient by nature.
		return NewBatchError(inputPath, KindSystemError, err)
	}

	return NewBatchError(inputPath, KindSystemError, err)
}
