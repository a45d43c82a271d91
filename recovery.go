package mdbatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-mdbatch/internal/fileutil"
)

// Pattern analysis thresholds.
const (
	// highFailureThreshold flags a run-wide failure pattern when the
	// error count exceeds it.
	highFailureThreshold = 5

	// concurrencyReductionThreshold: SystemError failures above this
	// concurrency suggest resource exhaustion.
	concurrencyReductionThreshold = 4

	// repeatedKindThreshold flags a per-kind pattern at this many
	// occurrences.
	repeatedKindThreshold = 2
)

// RetryFunc re-invokes the external conversion for one input path.
// It is supplied by the caller; the recovery manager treats it as the
// same opaque operation the scheduler used.
type RetryFunc func(ctx context.Context, inputPath string) error

// ErrorRecoveryManager classifies failed conversions, retries transient
// ones under system-health constraints, generates remediation advice,
// and cleans up partial artifacts. Its operations never return errors:
// internal faults are downgraded to warnings on the warning writer.
type ErrorRecoveryManager struct {
	strategy RecoveryStrategy
	retry    RetryFunc
	health   HealthChecker
	warn     io.Writer
	sleep    func(ctx context.Context, d time.Duration) error
}

// RecoveryOption configures an ErrorRecoveryManager.
type RecoveryOption func(*ErrorRecoveryManager)

// WithStrategy replaces the default recovery strategy.
func WithStrategy(s RecoveryStrategy) RecoveryOption {
	return func(m *ErrorRecoveryManager) { m.strategy = s }
}

// WithRetryFunc supplies the operation used to re-attempt failed files.
// Without one, every retryable error becomes a permanent failure.
func WithRetryFunc(fn RetryFunc) RecoveryOption {
	return func(m *ErrorRecoveryManager) { m.retry = fn }
}

// WithHealthChecker replaces the system health checker.
func WithHealthChecker(h HealthChecker) RecoveryOption {
	return func(m *ErrorRecoveryManager) { m.health = h }
}

// WithWarningWriter redirects warnings (default os.Stderr).
func WithWarningWriter(w io.Writer) RecoveryOption {
	return func(m *ErrorRecoveryManager) { m.warn = w }
}

// NewErrorRecoveryManager creates a manager with the default strategy
// (3 retries, 30s delay, cleanup and health checks enabled).
func NewErrorRecoveryManager(opts ...RecoveryOption) *ErrorRecoveryManager {
	m := &ErrorRecoveryManager{
		strategy: DefaultRecoveryStrategy(),
		health:   NewSystemHealthChecker(),
		warn:     os.Stderr,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecoverFromErrors re-attempts retryable failures. Each retryable error
// is gated on a fresh system health check; an unhealthy system skips the
// retry and records a permanent failure (warned, never raised).
// Non-retryable errors go straight to permanent failures with one
// counted attempt and zero retries.
func (m *ErrorRecoveryManager) RecoverFromErrors(ctx context.Context, errs []*BatchError) *RecoveryOutcome {
	out := &RecoveryOutcome{
		RecoveredFiles:    []string{},
		PermanentFailures: []*BatchError{},
	}

	for _, be := range errs {
		out.TotalAttempts++

		if !be.CanRetry {
			out.PermanentFailures = append(out.PermanentFailures, be)
			continue
		}

		if m.retry == nil {
			m.warnf("cannot retry %s: no retry operation configured", be.InputPath)
			out.PermanentFailures = append(out.PermanentFailures, be)
			continue
		}

		if m.strategy.SystemHealthCheck {
			health := m.health.ValidateSystemHealth(ctx)
			if !health.Healthy {
				m.warnf("skipping retry for %s: system unhealthy (%s)",
					be.InputPath, strings.Join(health.Issues, "; "))
				out.PermanentFailures = append(out.PermanentFailures, be)
				continue
			}
		}

		if m.retryOne(ctx, be) {
			out.RecoveredFiles = append(out.RecoveredFiles, be.InputPath)
		} else {
			out.PermanentFailures = append(out.PermanentFailures, be)
		}
	}

	return out
}

// retryOne attempts one error up to MaxRetries times with the strategy
// delay between attempts. The delay is cooperative: cancellation ends
// the loop early.
func (m *ErrorRecoveryManager) retryOne(ctx context.Context, be *BatchError) bool {
	for attempt := 1; attempt <= m.strategy.MaxRetries; attempt++ {
		err := m.retry(ctx, be.InputPath)
		if err == nil {
			return true
		}
		m.warnf("retry %d/%d for %s failed: %v", attempt, m.strategy.MaxRetries, be.InputPath, err)

		if attempt < m.strategy.MaxRetries {
			if err := m.sleep(ctx, m.strategy.RetryDelay); err != nil {
				m.warnf("retry loop for %s interrupted: %v", be.InputPath, err)
				return false
			}
		}
	}
	return false
}

// Remediation strings per error kind.
var suggestionsByKind = map[ErrorKind]RecoverySuggestions{
	KindFileNotFound: {
		Immediate: []string{"verify file paths are correct"},
		LongTerm:  []string{"use absolute paths in batch scripts"},
	},
	KindPermissionDenied: {
		Immediate:   []string{"check file and directory permissions"},
		SystemLevel: []string{"run with appropriate permissions"},
	},
	KindParseError: {
		Immediate: []string{"check the markdown syntax of the failing files"},
		LongTerm:  []string{"validate markdown files before batch processing"},
	},
	KindInvalidFormat: {
		Immediate: []string{"ensure input files are valid markdown (.md)"},
	},
	KindSystemError: {
		Immediate:   []string{"consider processing fewer files concurrently"},
		SystemLevel: []string{"check available disk space"},
		LongTerm:    []string{"split very large batches into smaller runs"},
	},
	KindRenderError: {
		Immediate:   []string{"try processing files individually"},
		SystemLevel: []string{"increase system memory"},
	},
}

// GenerateRecoverySuggestions maps each distinct error kind present to
// its fixed remediation strings. Suggestions for multiple kinds are
// unioned, deduplicated, in first-seen kind order.
func (m *ErrorRecoveryManager) GenerateRecoverySuggestions(errs []*BatchError) *RecoverySuggestions {
	out := &RecoverySuggestions{
		Immediate:   []string{},
		SystemLevel: []string{},
		LongTerm:    []string{},
	}

	seen := make(map[ErrorKind]bool)
	dedup := make(map[string]bool)
	add := func(dst *[]string, items []string) {
		for _, s := range items {
			if !dedup[s] {
				dedup[s] = true
				*dst = append(*dst, s)
			}
		}
	}

	for _, be := range errs {
		if seen[be.Kind] {
			continue
		}
		seen[be.Kind] = true
		s := suggestionsByKind[be.Kind]
		add(&out.Immediate, s.Immediate)
		add(&out.SystemLevel, s.SystemLevel)
		add(&out.LongTerm, s.LongTerm)
	}

	return out
}

// AnalyzeErrorPatterns flags recurring failure patterns and derives
// configuration recommendations from the error set and the run config.
func (m *ErrorRecoveryManager) AnalyzeErrorPatterns(errs []*BatchError, cfg *BatchConfig) *PatternReport {
	report := &PatternReport{
		Patterns:        []string{},
		Recommendations: []string{},
	}

	if len(errs) > highFailureThreshold {
		report.Patterns = append(report.Patterns,
			fmt.Sprintf("high failure rate: %d errors", len(errs)))
		report.Recommendations = append(report.Recommendations,
			"reduce batch size or check system resources")
	}

	counts := make(map[ErrorKind]int)
	var order []ErrorKind
	for _, be := range errs {
		if counts[be.Kind] == 0 {
			order = append(order, be.Kind)
		}
		counts[be.Kind]++
	}
	for _, kind := range order {
		if counts[kind] >= repeatedKindThreshold {
			report.Patterns = append(report.Patterns,
				fmt.Sprintf("multiple %s errors: %d occurrences", kind, counts[kind]))
		}
	}

	if counts[KindSystemError] > 0 && cfg.MaxConcurrent > concurrencyReductionThreshold {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("reduce concurrency from %d to %d", cfg.MaxConcurrent, cfg.MaxConcurrent/2))
	}
	if counts[KindPermissionDenied] > 0 {
		report.Recommendations = append(report.Recommendations,
			"check file and directory permissions before retrying")
	}
	if counts[KindRenderError] > 0 && cfg.Convert.CodeHighlighting {
		report.Recommendations = append(report.Recommendations,
			"disable code highlighting to reduce renderer load")
	}

	return report
}

// CreateRecoveryPlan partitions errors into retryable and manual-review
// sets with suggested config changes and a worst-case time estimate
// (retryable files x retry delay x max retries).
func (m *ErrorRecoveryManager) CreateRecoveryPlan(errs []*BatchError, cfg *BatchConfig) *RecoveryPlan {
	plan := &RecoveryPlan{
		RetryableFiles:    []string{},
		ManualReviewFiles: []string{},
	}

	renderErrors := false
	for _, be := range errs {
		if be.CanRetry {
			plan.RetryableFiles = append(plan.RetryableFiles, be.InputPath)
		} else {
			plan.ManualReviewFiles = append(plan.ManualReviewFiles, be.InputPath)
		}
		if be.Kind == KindRenderError {
			renderErrors = true
		}
	}

	if len(errs) > 0 {
		suggested := cfg.MaxConcurrent / 2
		if suggested < 1 {
			suggested = 1
		}
		plan.ConfigSuggestions.MaxConcurrent = &suggested
	}
	if renderErrors {
		continueOnError := true
		plan.ConfigSuggestions.ContinueOnError = &continueOnError
	}

	plan.EstimatedTime = time.Duration(len(plan.RetryableFiles)) *
		m.strategy.RetryDelay * time.Duration(m.strategy.MaxRetries)

	return plan
}

// CleanupAfterFailure removes partial artifacts of failed conversions:
// the expected <stem>.pdf for each failed input, plus any *.tmp/*.temp
// leftovers in the output directory. Cleanup tolerates files already
// deleted and never raises; all deletion errors become warnings.
func (m *ErrorRecoveryManager) CleanupAfterFailure(failedInputPaths []string, outputDir string) {
	if !m.strategy.CleanupOnFailure {
		return
	}

	for _, input := range failedInputPaths {
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		expected := filepath.Join(outputDir, stem+".pdf")
		if !fileutil.FileExists(expected) {
			continue
		}
		if err := os.Remove(expected); err != nil {
			m.warnf("cleanup: removing %s: %v", expected, err)
		}
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		m.warnf("cleanup: reading %s: %v", outputDir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !fileutil.HasTempSuffix(entry.Name()) {
			continue
		}
		path := filepath.Join(outputDir, entry.Name())
		if err := os.Remove(path); err != nil {
			m.warnf("cleanup: removing %s: %v", path, err)
		}
	}
}

// ValidateSystemHealth exposes the manager's health checker.
func (m *ErrorRecoveryManager) ValidateSystemHealth(ctx context.Context) *SystemHealth {
	return m.health.ValidateSystemHealth(ctx)
}

// warnf writes a warning line to the warning writer.
func (m *ErrorRecoveryManager) warnf(format string, args ...any) {
	if m.warn != nil {
		fmt.Fprintf(m.warn, "warning: "+format+"\n", args...)
	}
}
