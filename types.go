package mdbatch

import (
	"fmt"
	"strings"
	"time"
)

// FilenameFormat enumerates output naming policies.
type FilenameFormat string

// Supported filename formats.
const (
	FormatOriginal      FilenameFormat = "original"       // <stem>.pdf
	FormatWithTimestamp FilenameFormat = "with-timestamp" // <stem>_<epoch-ms>.pdf
	FormatWithDate      FilenameFormat = "with-date"      // <stem>_<YYYY-MM-DD>.pdf
	FormatCustom        FilenameFormat = "custom"         // pattern with {name}
)

// isValidFormat checks if format is a known filename format.
func isValidFormat(format FilenameFormat) bool {
	switch format {
	case FormatOriginal, FormatWithTimestamp, FormatWithDate, FormatCustom:
		return true
	}
	return false
}

// ConvertOptions holds per-file conversion parameters forwarded opaquely
// to the Converter.
type ConvertOptions struct {
	CSS              string        // Custom CSS injected into the document (optional)
	PageSize         string        // "letter", "a4", "legal" (empty = letter)
	CodeHighlighting bool          // Syntax highlighting for fenced code blocks
	Timeout          time.Duration // Per-file conversion timeout (0 = converter default)
}

// BatchConfig configures one batch run. It is validated once before the
// run starts and must not be mutated afterwards.
type BatchConfig struct {
	Input           string         // Glob (supports **), comma-separated list, or directory
	OutputDir       string         // Destination directory for PDFs
	Recursive       bool           // Descend into subdirectories for directory inputs
	PreserveDirs    bool           // Mirror the source directory structure under OutputDir
	Format          FilenameFormat // Output naming policy
	CustomPattern   string         // Pattern for FormatCustom; must contain {name}
	MaxConcurrent   int            // Worker pool size, >= 1
	ContinueOnError bool           // Keep dispatching after per-file failures
	Convert         ConvertOptions // Opaque per-file conversion options
}

// Validate checks the configuration before a run starts. Malformed
// configs fail fast here rather than mid-batch.
func (c *BatchConfig) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return ErrEmptyInput
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: %d (must be >= 1)", ErrInvalidConcurrency, c.MaxConcurrent)
	}
	if !isValidFormat(c.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}
	if c.Format == FormatCustom && !strings.Contains(c.CustomPattern, "{name}") {
		return fmt.Errorf("%w: %q", ErrInvalidCustomPattern, c.CustomPattern)
	}
	return nil
}

// BatchResult aggregates the outcome of one batch run.
// SuccessfulFiles + len(Errors) == TotalFiles unless the run stopped
// early, in which case TotalFiles reflects only dispatched files.
type BatchResult struct {
	Success         bool
	Cancelled       bool
	TotalFiles      int
	SuccessfulFiles int
	Errors          []*BatchError
	Elapsed         time.Duration
}

// Default recovery strategy values.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 30 * time.Second
)

// RecoveryStrategy tunes the automated retry behavior of
// ErrorRecoveryManager.
type RecoveryStrategy struct {
	MaxRetries        int
	RetryDelay        time.Duration
	CleanupOnFailure  bool
	SystemHealthCheck bool
}

// DefaultRecoveryStrategy returns the strategy used when none is supplied.
func DefaultRecoveryStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		MaxRetries:        DefaultMaxRetries,
		RetryDelay:        DefaultRetryDelay,
		CleanupOnFailure:  true,
		SystemHealthCheck: true,
	}
}

// RecoveryOutcome reports what RecoverFromErrors achieved.
// TotalAttempts counts one unit of work per input error regardless of
// how many retries each consumed.
type RecoveryOutcome struct {
	RecoveredFiles    []string
	PermanentFailures []*BatchError
	TotalAttempts     int
}

// ConfigSuggestions is a partial BatchConfig: nil fields mean "no change
// suggested".
type ConfigSuggestions struct {
	MaxConcurrent   *int
	ContinueOnError *bool
}

// RecoveryPlan is a derived, non-executed recommendation presented to the
// operator after a failed run.
type RecoveryPlan struct {
	RetryableFiles    []string
	ManualReviewFiles []string
	ConfigSuggestions ConfigSuggestions
	EstimatedTime     time.Duration
}

// RecoverySuggestions groups remediation advice by urgency.
type RecoverySuggestions struct {
	Immediate   []string
	SystemLevel []string
	LongTerm    []string
}

// PatternReport describes recurring failure patterns across a run's
// errors, with configuration recommendations.
type PatternReport struct {
	Patterns        []string
	Recommendations []string
}

// SystemHealth is a point-in-time, advisory assessment of host pressure.
// It gates retries; it is never persisted.
type SystemHealth struct {
	Healthy  bool
	Issues   []string
	Warnings []string
}
