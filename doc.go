// Package mdbatch converts sets of Markdown documents to PDF with bounded
// parallelism, partial-failure tolerance, and automated error recovery.
//
// # Quick Start
//
// Build a configuration, a converter pool, and a processor, then run:
//
//	cfg := &mdbatch.BatchConfig{
//	    Input:         "docs/**/*.md",
//	    OutputDir:     "out",
//	    Format:        mdbatch.FormatOriginal,
//	    MaxConcurrent: 4,
//	    ContinueOnError: true,
//	}
//	pool := mdbatch.NewConverterPool(cfg.MaxConcurrent, nil)
//	defer pool.Close()
//
//	proc, err := mdbatch.NewBatchProcessor(cfg, pool)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := proc.Run(ctx)
//
// The result reports per-file outcomes; failures carry a classified
// *BatchError that drives the recovery layer.
//
// # Recovery
//
// ErrorRecoveryManager turns a failed run's errors into action:
//
//	mgr := mdbatch.NewErrorRecoveryManager(
//	    mdbatch.WithRetryFunc(retry),
//	)
//	plan := mgr.CreateRecoveryPlan(result.Errors, cfg)
//	outcome := mgr.RecoverFromErrors(ctx, result.Errors)
//
// Retries of transient failures are gated on system health (memory, disk,
// CPU load); structural failures (missing files, invalid markdown) are
// routed to manual review. CleanupAfterFailure removes partial artifacts.
//
// # Cancellation
//
// Processing is cancelled cooperatively through the context passed to Run.
// A cancelled run never aborts in-flight conversions; it stops dispatching
// new work and returns a well-formed result with Cancelled set.
//
// # Rendering
//
// The scheduler treats conversion as an opaque Converter. The bundled
// Renderer implements it with Goldmark (Markdown to HTML, GFM plus syntax
// highlighting) and headless Chrome via go-rod (HTML to PDF). Chrome is
// downloaded automatically on first run; set ROD_NO_SANDBOX=1 in
// containers and ROD_BROWSER_BIN to use a custom binary.
package mdbatch
