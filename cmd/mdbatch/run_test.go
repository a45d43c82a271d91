package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mdbatch "github.com/alnah/go-mdbatch"
)

// stubPool hands out one converter backed by fn.
type stubPool struct {
	fn   mdbatch.ConvertFunc
	size int
}

func (p *stubPool) Acquire() mdbatch.Converter  { return p.fn }
func (p *stubPool) Release(c mdbatch.Converter) {}
func (p *stubPool) Size() int                   { return p.size }

func okPool() *stubPool {
	return &stubPool{
		size: 2,
		fn: func(ctx context.Context, doc mdbatch.Document) error {
			return os.WriteFile(doc.OutputPath, []byte("%PDF"), 0o644)
		},
	}
}

func testEnv() (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	env := &Environment{
		Now:    time.Now,
		Stdout: &stdout,
		Stderr: &stderr,
		Config: DefaultConfig(),
	}
	return env, &stdout, &stderr
}

func mdFixture(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("doc%02d.md", i))
		if err := os.WriteFile(path, []byte("# doc\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun_Success(t *testing.T) {
	inDir := mdFixture(t, 2)
	outDir := t.TempDir()
	env, stdout, _ := testEnv()

	err := run([]string{"mdbatch", "-o", outDir, inDir}, okPool(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"doc00.pdf", "doc01.pdf"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if !strings.Contains(stdout.String(), "2 succeeded, 0 failed") {
		t.Errorf("stdout = %q, want summary line", stdout.String())
	}
}

func TestRun_Version(t *testing.T) {
	env, stdout, _ := testEnv()

	if err := run([]string{"mdbatch", "--version"}, okPool(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "mdbatch") {
		t.Errorf("stdout = %q, want version line", stdout.String())
	}
}

func TestRun_NoInput(t *testing.T) {
	env, _, _ := testEnv()

	err := run([]string{"mdbatch"}, okPool(), env)
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("error = %v, want ErrNoInput", err)
	}
}

func TestRun_InputFromConfigDefault(t *testing.T) {
	inDir := mdFixture(t, 1)
	outDir := t.TempDir()
	env, _, _ := testEnv()
	env.Config.Input.DefaultDir = inDir
	env.Config.Output.DefaultDir = outDir

	if err := run([]string{"mdbatch"}, okPool(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "doc00.pdf")); err != nil {
		t.Errorf("missing output: %v", err)
	}
}

func TestRun_PartialFailureReportsAdvice(t *testing.T) {
	inDir := mdFixture(t, 2)
	outDir := t.TempDir()
	env, stdout, stderr := testEnv()

	pool := &stubPool{
		size: 1,
		fn: func(ctx context.Context, doc mdbatch.Document) error {
			if filepath.Base(doc.InputPath) == "doc00.md" {
				return fmt.Errorf("%w: table", mdbatch.ErrHTMLConversion)
			}
			return os.WriteFile(doc.OutputPath, []byte("%PDF"), 0o644)
		},
	}

	err := run([]string{"mdbatch", "-o", outDir, "-w", "1", inDir}, pool, env)
	if err != nil {
		t.Fatalf("partial success must not fail the run: %v", err)
	}

	if !strings.Contains(stderr.String(), "FAILED") {
		t.Errorf("stderr = %q, want FAILED line", stderr.String())
	}
	if !strings.Contains(stdout.String(), "Suggestions:") {
		t.Errorf("stdout = %q, want recovery suggestions", stdout.String())
	}
}

func TestRun_AllFailed(t *testing.T) {
	inDir := mdFixture(t, 1)
	outDir := t.TempDir()
	env, _, _ := testEnv()

	pool := &stubPool{
		size: 1,
		fn: func(ctx context.Context, doc mdbatch.Document) error {
			return fmt.Errorf("%w: bad markdown", mdbatch.ErrEmptyMarkdown)
		},
	}

	err := run([]string{"mdbatch", "-o", outDir, inDir}, pool, env)
	if !errors.Is(err, ErrBatchFailed) {
		t.Errorf("error = %v, want ErrBatchFailed", err)
	}
}

func TestRun_RecoveryRetriesTransientFailures(t *testing.T) {
	inDir := mdFixture(t, 1)
	outDir := t.TempDir()
	env, stdout, _ := testEnv()

	calls := 0
	pool := &stubPool{
		size: 1,
		fn: func(ctx context.Context, doc mdbatch.Document) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("%w: transient", mdbatch.ErrPageLoad)
			}
			return os.WriteFile(doc.OutputPath, []byte("%PDF"), 0o644)
		},
	}

	err := run([]string{"mdbatch", "-o", outDir, "--retry-delay", "1ms", "--no-health-check", inDir}, pool, env)
	if err != nil {
		t.Fatalf("recovered run must succeed: %v", err)
	}
	if calls != 2 {
		t.Errorf("converter called %d times, want 2 (initial + retry)", calls)
	}
	if !strings.Contains(stdout.String(), "Recovered 1 of 1") {
		t.Errorf("stdout = %q, want recovery line", stdout.String())
	}
}

func TestRun_NoRecoverSkipsRetries(t *testing.T) {
	inDir := mdFixture(t, 1)
	outDir := t.TempDir()
	env, _, _ := testEnv()

	calls := 0
	pool := &stubPool{
		size: 1,
		fn: func(ctx context.Context, doc mdbatch.Document) error {
			calls++
			return fmt.Errorf("%w: transient", mdbatch.ErrPageLoad)
		},
	}

	err := run([]string{"mdbatch", "-o", outDir, "--no-recover", inDir}, pool, env)
	if !errors.Is(err, ErrBatchFailed) {
		t.Errorf("error = %v, want ErrBatchFailed", err)
	}
	if calls != 1 {
		t.Errorf("converter called %d times with --no-recover, want 1", calls)
	}
}

func TestBuildBatchConfig_FlagsOverrideFile(t *testing.T) {
	file := &Config{
		Output: OutputConfig{DefaultDir: "file-out", Format: "with-date"},
		Batch:  BatchSettings{Workers: 2},
	}
	flags := &cliFlags{
		output:  "flag-out",
		format:  "with-timestamp",
		workers: 6,
	}

	cfg, err := buildBatchConfig(flags, file, "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OutputDir != "flag-out" {
		t.Errorf("OutputDir = %q, want flag-out", cfg.OutputDir)
	}
	if cfg.Format != mdbatch.FormatWithTimestamp {
		t.Errorf("Format = %q, want with-timestamp", cfg.Format)
	}
	if cfg.MaxConcurrent != 6 {
		t.Errorf("MaxConcurrent = %d, want 6", cfg.MaxConcurrent)
	}
}

func TestBuildBatchConfig_PatternImpliesCustomFormat(t *testing.T) {
	flags := &cliFlags{format: "original", pattern: "{name}_v2"}

	cfg, err := buildBatchConfig(flags, DefaultConfig(), "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != mdbatch.FormatCustom {
		t.Errorf("Format = %q, want custom", cfg.Format)
	}
	if cfg.CustomPattern != "{name}_v2" {
		t.Errorf("CustomPattern = %q", cfg.CustomPattern)
	}
}

func TestBuildBatchConfig_StopOnErrorDisablesContinue(t *testing.T) {
	flags := &cliFlags{format: "original", stopOnError: true}

	cfg, err := buildBatchConfig(flags, DefaultConfig(), "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ContinueOnError {
		t.Error("ContinueOnError = true with --stop-on-error")
	}
}

func TestBuildBatchConfig_InvalidTimeout(t *testing.T) {
	flags := &cliFlags{format: "original", timeout: "nonsense"}

	if _, err := buildBatchConfig(flags, DefaultConfig(), "docs"); err == nil {
		t.Error("invalid timeout accepted")
	}
}

func TestBuildBatchConfig_ValidationErrorsSurface(t *testing.T) {
	flags := &cliFlags{format: "original", pattern: "no-placeholder"}

	_, err := buildBatchConfig(flags, DefaultConfig(), "docs")
	if !errors.Is(err, mdbatch.ErrInvalidCustomPattern) {
		t.Errorf("error = %v, want ErrInvalidCustomPattern", err)
	}
}

func TestLoadCSS(t *testing.T) {
	dir := t.TempDir()
	cssPath := filepath.Join(dir, "style.css")
	if err := os.WriteFile(cssPath, []byte("body { margin: 0 }"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("flag path wins over file config", func(t *testing.T) {
		file := &Config{Convert: ConvertConfig{CSSFile: "ignored.css"}}
		got, err := loadCSS(&cliFlags{css: cssPath}, file)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "body { margin: 0 }" {
			t.Errorf("css = %q", got)
		}
	})

	t.Run("no css configured", func(t *testing.T) {
		got, err := loadCSS(&cliFlags{}, DefaultConfig())
		if err != nil || got != "" {
			t.Errorf("got %q, %v; want empty and nil", got, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadCSS(&cliFlags{css: filepath.Join(dir, "gone.css")}, DefaultConfig())
		if !errors.Is(err, ErrReadCSS) {
			t.Errorf("error = %v, want ErrReadCSS", err)
		}
	})
}

func TestBuildStrategy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := buildStrategy(&cliFlags{}, DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if s != mdbatch.DefaultRecoveryStrategy() {
			t.Errorf("strategy = %+v, want defaults", s)
		}
	})

	t.Run("flags override file config", func(t *testing.T) {
		cleanup := true
		file := DefaultConfig()
		file.Recovery = RecoveryConfig{MaxRetries: 2, RetryDelay: "5s", Cleanup: &cleanup}
		flags := &cliFlags{maxRetries: 7, retryDelay: "1s", noCleanup: true, noHealth: true}

		s, err := buildStrategy(flags, file)
		if err != nil {
			t.Fatal(err)
		}
		if s.MaxRetries != 7 || s.RetryDelay != time.Second {
			t.Errorf("strategy = %+v", s)
		}
		if s.CleanupOnFailure || s.SystemHealthCheck {
			t.Errorf("toggles not disabled: %+v", s)
		}
	})

	t.Run("invalid delay", func(t *testing.T) {
		if _, err := buildStrategy(&cliFlags{retryDelay: "later"}, DefaultConfig()); err == nil {
			t.Error("invalid delay accepted")
		}
	})
}

func TestResultPrinter(t *testing.T) {
	fileOK := mdbatch.ProgressEvent{
		Type: mdbatch.EventFileComplete, Success: true,
		InputPath: "/in/a.md", OutputPath: "/out/a.pdf",
		Completed: 1, TotalFiles: 2,
	}
	fileBad := mdbatch.ProgressEvent{
		Type: mdbatch.EventFileComplete, Success: false,
		InputPath: "/in/b.md", Err: errors.New("boom"),
	}

	t.Run("normal mode", func(t *testing.T) {
		env, stdout, stderr := testEnv()
		p := newResultPrinter(&cliFlags{}, env)

		p.observe(fileOK)
		p.observe(fileBad)
		p.summary(&mdbatch.BatchResult{TotalFiles: 2, SuccessfulFiles: 1,
			Errors: []*mdbatch.BatchError{{}}})

		if !strings.Contains(stdout.String(), "Created /out/a.pdf") {
			t.Errorf("stdout = %q", stdout.String())
		}
		if !strings.Contains(stderr.String(), "FAILED /in/b.md") {
			t.Errorf("stderr = %q", stderr.String())
		}
		if !strings.Contains(stdout.String(), "1 succeeded, 1 failed") {
			t.Errorf("stdout = %q, want summary", stdout.String())
		}
	})

	t.Run("quiet mode still reports failures", func(t *testing.T) {
		env, stdout, stderr := testEnv()
		p := newResultPrinter(&cliFlags{quiet: true}, env)

		p.observe(fileOK)
		p.observe(fileBad)
		p.summary(&mdbatch.BatchResult{TotalFiles: 2, SuccessfulFiles: 1})

		if stdout.Len() != 0 {
			t.Errorf("stdout = %q, want silence", stdout.String())
		}
		if !strings.Contains(stderr.String(), "FAILED") {
			t.Errorf("stderr = %q, want failure line", stderr.String())
		}
	})

	t.Run("verbose mode shows progress counts", func(t *testing.T) {
		env, stdout, _ := testEnv()
		p := newResultPrinter(&cliFlags{verbose: true}, env)

		p.observe(fileOK)

		if !strings.Contains(stdout.String(), "(1/2)") {
			t.Errorf("stdout = %q, want progress counter", stdout.String())
		}
	})

	t.Run("single file skips summary", func(t *testing.T) {
		env, stdout, _ := testEnv()
		p := newResultPrinter(&cliFlags{}, env)

		p.summary(&mdbatch.BatchResult{TotalFiles: 1, SuccessfulFiles: 1})

		if strings.Contains(stdout.String(), "succeeded") {
			t.Errorf("stdout = %q, want no summary for one file", stdout.String())
		}
	})
}

func TestHasKind(t *testing.T) {
	errs := []*mdbatch.BatchError{
		{Kind: mdbatch.KindParseError},
		{Kind: mdbatch.KindRenderError},
	}
	if !hasKind(errs, mdbatch.KindRenderError) {
		t.Error("hasKind missed present kind")
	}
	if hasKind(errs, mdbatch.KindPermissionDenied) {
		t.Error("hasKind reported absent kind")
	}
}
