package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	mdbatch "github.com/alnah/go-mdbatch"
	"github.com/alnah/go-mdbatch/internal/hints"
)

// Sentinel errors for batch CLI operations.
var (
	ErrNoInput     = errors.New("no input specified")
	ErrReadCSS     = errors.New("failed to read CSS file")
	ErrBatchFailed = errors.New("batch conversion failed")
)

// run executes the batch command end to end: config merge, scheduling,
// result printing, and recovery.
func run(args []string, pool mdbatch.Pool, env *Environment) error {
	flags, positional, err := parseFlags(args[1:])
	if err != nil {
		return err
	}

	if flags.version {
		fmt.Fprintf(env.Stdout, "mdbatch %s\n", Version)
		return nil
	}

	if flags.config != "" {
		cfg, err := LoadConfig(flags.config)
		if err != nil {
			return err
		}
		env.Config = cfg
	}

	input := env.Config.Input.DefaultDir
	if len(positional) > 0 {
		input = positional[0]
	}
	if input == "" {
		printUsage(env.Stderr)
		return ErrNoInput
	}

	cfg, err := buildBatchConfig(flags, env.Config, input)
	if err != nil {
		return err
	}
	strategy, err := buildStrategy(flags, env.Config)
	if err != nil {
		return err
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	// outputsByInput feeds the recovery retry path. Populated from the
	// event stream, which is delivered by a single goroutine.
	outputsByInput := make(map[string]string)
	printer := newResultPrinter(flags, env)

	proc, err := mdbatch.NewBatchProcessor(cfg, pool,
		mdbatch.WithProgressFunc(func(ev mdbatch.ProgressEvent) {
			if ev.Type == mdbatch.EventFileComplete {
				outputsByInput[ev.InputPath] = ev.OutputPath
			}
			printer.observe(ev)
		}),
	)
	if err != nil {
		return err
	}

	result, runErr := proc.Run(ctx)
	printer.summary(result)

	if result.Cancelled {
		return fmt.Errorf("batch cancelled after %d of %d files: %w",
			result.SuccessfulFiles+len(result.Errors), result.TotalFiles, runErr)
	}
	if runErr != nil {
		return runErr
	}

	if len(result.Errors) > 0 {
		mgr := newRecoveryManager(flags, strategy, env, pool, cfg, outputsByInput)
		result = applyRecovery(ctx, mgr, flags, env, cfg, result)
	}

	if !result.Success {
		err := fmt.Errorf("%w: %d of %d files failed",
			ErrBatchFailed, len(result.Errors), result.TotalFiles)
		if hasKind(result.Errors, mdbatch.KindRenderError) {
			return fmt.Errorf("%w%s", err, hints.ForBrowserConnect())
		}
		return err
	}
	return nil
}

// newRecoveryManager wires the recovery layer: retries re-run the same
// conversion through the pool.
func newRecoveryManager(flags *cliFlags, strategy mdbatch.RecoveryStrategy, env *Environment,
	pool mdbatch.Pool, cfg *mdbatch.BatchConfig, outputsByInput map[string]string) *mdbatch.ErrorRecoveryManager {

	retry := func(ctx context.Context, inputPath string) error {
		outputPath, ok := outputsByInput[inputPath]
		if !ok || outputPath == "" {
			return fmt.Errorf("no output path recorded for %s", inputPath)
		}
		conv := pool.Acquire()
		defer pool.Release(conv)
		return conv.Convert(ctx, mdbatch.Document{
			InputPath:  inputPath,
			OutputPath: outputPath,
			Options:    cfg.Convert,
		})
	}

	return mdbatch.NewErrorRecoveryManager(
		mdbatch.WithStrategy(strategy),
		mdbatch.WithRetryFunc(retry),
		mdbatch.WithWarningWriter(env.Stderr),
	)
}

// applyRecovery retries transient failures, cleans up what stayed
// failed, and prints the recovery plan for the operator.
func applyRecovery(ctx context.Context, mgr *mdbatch.ErrorRecoveryManager, flags *cliFlags,
	env *Environment, cfg *mdbatch.BatchConfig, result *mdbatch.BatchResult) *mdbatch.BatchResult {

	remaining := result.Errors

	if !flags.noRecover {
		outcome := mgr.RecoverFromErrors(ctx, result.Errors)
		if len(outcome.RecoveredFiles) > 0 && !flags.quiet {
			fmt.Fprintf(env.Stdout, "Recovered %d of %d failed files\n",
				len(outcome.RecoveredFiles), len(result.Errors))
		}
		result.SuccessfulFiles += len(outcome.RecoveredFiles)
		result.Errors = outcome.PermanentFailures
		result.Success = result.SuccessfulFiles > 0
		remaining = outcome.PermanentFailures
	}

	if len(remaining) == 0 {
		return result
	}

	failedInputs := make([]string, 0, len(remaining))
	for _, be := range remaining {
		failedInputs = append(failedInputs, be.InputPath)
	}
	mgr.CleanupAfterFailure(failedInputs, cfg.OutputDir)

	if !flags.quiet {
		printRecoveryAdvice(env, mgr, remaining, cfg)
	}
	return result
}

// printRecoveryAdvice prints suggestions, patterns, and the recovery
// plan after permanent failures.
func printRecoveryAdvice(env *Environment, mgr *mdbatch.ErrorRecoveryManager,
	errs []*mdbatch.BatchError, cfg *mdbatch.BatchConfig) {

	suggestions := mgr.GenerateRecoverySuggestions(errs)
	printList(env, "Suggestions:", append(append(suggestions.Immediate,
		suggestions.SystemLevel...), suggestions.LongTerm...))

	report := mgr.AnalyzeErrorPatterns(errs, cfg)
	printList(env, "Patterns:", report.Patterns)
	printList(env, "Recommendations:", report.Recommendations)

	plan := mgr.CreateRecoveryPlan(errs, cfg)
	if len(plan.ManualReviewFiles) > 0 {
		printList(env, "Needs manual review:", plan.ManualReviewFiles)
	}
	if len(plan.RetryableFiles) > 0 {
		fmt.Fprintf(env.Stdout, "Retryable: %d files (estimated %s)\n",
			len(plan.RetryableFiles), plan.EstimatedTime.Round(time.Second))
	}
}

// printList prints a titled bullet list, skipping empty lists.
func printList(env *Environment, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(env.Stdout, title)
	for _, item := range items {
		fmt.Fprintf(env.Stdout, "  - %s\n", item)
	}
}

// hasKind reports whether any error has the given kind.
func hasKind(errs []*mdbatch.BatchError, kind mdbatch.ErrorKind) bool {
	for _, be := range errs {
		if be.Kind == kind {
			return true
		}
	}
	return false
}

// buildBatchConfig merges flags over the loaded config file into a
// validated library config.
func buildBatchConfig(flags *cliFlags, file *Config, input string) (*mdbatch.BatchConfig, error) {
	outputDir := file.Output.DefaultDir
	if flags.output != "" {
		outputDir = flags.output
	}
	if outputDir == "" {
		outputDir = "."
	}

	format := file.Output.Format
	if flags.format != "" && flags.format != "original" {
		format = flags.format
	}
	if format == "" {
		format = "original"
	}

	pattern := file.Output.Pattern
	if flags.pattern != "" {
		pattern = flags.pattern
		if format == "original" {
			format = string(mdbatch.FormatCustom)
		}
	}

	workers := file.Batch.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}

	css, err := loadCSS(flags, file)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(0)
	raw := file.Convert.Timeout
	if flags.timeout != "" {
		raw = flags.timeout
	}
	if raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", raw, err)
		}
	}

	pageSize := file.Convert.PageSize
	if flags.pageSize != "" {
		pageSize = flags.pageSize
	}

	cfg := &mdbatch.BatchConfig{
		Input:           input,
		OutputDir:       outputDir,
		Recursive:       flags.recursive || file.Input.Recursive,
		PreserveDirs:    flags.preserveDirs || file.Output.PreserveDirs,
		Format:          mdbatch.FilenameFormat(format),
		CustomPattern:   pattern,
		MaxConcurrent:   mdbatch.ResolvePoolSize(workers),
		ContinueOnError: !(flags.stopOnError || file.Batch.StopOnError),
		Convert: mdbatch.ConvertOptions{
			CSS:              css,
			PageSize:         pageSize,
			CodeHighlighting: flags.highlight || file.Convert.CodeHighlighting,
			Timeout:          timeout,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadCSS reads the CSS file named by flags or config, if any.
func loadCSS(flags *cliFlags, file *Config) (string, error) {
	path := file.Convert.CSSFile
	if flags.css != "" {
		path = flags.css
	}
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- CSS path is user-provided
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReadCSS, err)
	}
	return string(data), nil
}

// buildStrategy merges recovery flags over the config file defaults.
func buildStrategy(flags *cliFlags, file *Config) (mdbatch.RecoveryStrategy, error) {
	strategy := mdbatch.DefaultRecoveryStrategy()

	if file.Recovery.MaxRetries > 0 {
		strategy.MaxRetries = file.Recovery.MaxRetries
	}
	if flags.maxRetries > 0 {
		strategy.MaxRetries = flags.maxRetries
	}

	raw := file.Recovery.RetryDelay
	if flags.retryDelay != "" {
		raw = flags.retryDelay
	}
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return strategy, fmt.Errorf("invalid retry delay %q", raw)
		}
		strategy.RetryDelay = d
	}

	if file.Recovery.Cleanup != nil {
		strategy.CleanupOnFailure = *file.Recovery.Cleanup
	}
	if flags.noCleanup {
		strategy.CleanupOnFailure = false
	}
	if file.Recovery.HealthCheck != nil {
		strategy.SystemHealthCheck = *file.Recovery.HealthCheck
	}
	if flags.noHealth {
		strategy.SystemHealthCheck = false
	}

	return strategy, nil
}

// resultPrinter renders the event stream for the terminal.
type resultPrinter struct {
	flags *cliFlags
	env   *Environment
	start time.Time
}

func newResultPrinter(flags *cliFlags, env *Environment) *resultPrinter {
	return &resultPrinter{flags: flags, env: env}
}

// observe prints one event. Called from the processor's coordinator
// goroutine, so output is ordered.
func (p *resultPrinter) observe(ev mdbatch.ProgressEvent) {
	switch ev.Type {
	case mdbatch.EventStart:
		p.start = p.env.Now()
		if p.flags.verbose {
			fmt.Fprintf(p.env.Stderr, "Processing %d files...\n", ev.TotalFiles)
		}
	case mdbatch.EventFileComplete:
		if !ev.Success {
			fmt.Fprintf(p.env.Stderr, "FAILED %s: %v\n", ev.InputPath, ev.Err)
			return
		}
		if p.flags.quiet {
			return
		}
		if p.flags.verbose {
			fmt.Fprintf(p.env.Stdout, "%s -> %s (%d/%d)\n",
				ev.InputPath, ev.OutputPath, ev.Completed, ev.TotalFiles)
		} else {
			fmt.Fprintf(p.env.Stdout, "Created %s\n", ev.OutputPath)
		}
	case mdbatch.EventError:
		fmt.Fprintf(p.env.Stderr, "ERROR %v\n", ev.Err)
	}
}

// summary prints the final tallies.
func (p *resultPrinter) summary(result *mdbatch.BatchResult) {
	if p.flags.quiet || result.TotalFiles <= 1 {
		return
	}
	line := fmt.Sprintf("\n%d succeeded, %d failed", result.SuccessfulFiles, len(result.Errors))
	if p.flags.verbose {
		line += fmt.Sprintf(" (%s)", result.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintln(p.env.Stdout, line)
}
