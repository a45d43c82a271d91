package mdbatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// BatchProcessor schedules bounded-concurrency conversion of a resolved
// file set. It owns the worker pool interaction, emits ordered progress
// events, honors cooperative cancellation, and records per-file failures
// without ever failing the run for them.
type BatchProcessor struct {
	cfg       *BatchConfig
	pool      Pool
	collector *FileCollector

	onProgress     func(ProgressEvent)
	onFileComplete func(ProgressEvent)
}

// ProcessorOption configures a BatchProcessor.
type ProcessorOption func(*BatchProcessor)

// WithProgressFunc registers a callback receiving every progress event.
// Events are delivered from a single coordinator goroutine, in order:
// one start, then file-complete/progress pairs, then one complete (or a
// terminal error when the file set could not be resolved).
func WithProgressFunc(fn func(ProgressEvent)) ProcessorOption {
	return func(p *BatchProcessor) { p.onProgress = fn }
}

// WithFileCompleteFunc registers a callback receiving only file-complete
// events, from the same coordinator goroutine.
func WithFileCompleteFunc(fn func(ProgressEvent)) ProcessorOption {
	return func(p *BatchProcessor) { p.onFileComplete = fn }
}

// NewBatchProcessor validates cfg and creates a processor using pool for
// converters. A nil pool defaults to a lazily-populated Renderer pool
// sized to cfg.MaxConcurrent.
func NewBatchProcessor(cfg *BatchConfig, pool Pool, opts ...ProcessorOption) (*BatchProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		pool = NewConverterPool(cfg.MaxConcurrent, nil)
	}

	p := &BatchProcessor{
		cfg:       cfg,
		pool:      pool,
		collector: NewFileCollector(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// fileOutcome is one completed unit of work.
type fileOutcome struct {
	doc Document
	err *BatchError
}

// Run executes the batch. Per-file failures are recorded in the result,
// never returned as the run error. The returned error is non-nil only
// when the file set could not be resolved or the run was cancelled;
// a cancelled run still returns a well-formed result with Cancelled set.
func (p *BatchProcessor) Run(ctx context.Context) (*BatchResult, error) {
	start := time.Now()

	set, err := p.collector.Collect(p.cfg.Input, p.cfg.Recursive)
	if err != nil {
		be := ClassifyError(p.cfg.Input, err)
		p.emit(ProgressEvent{Type: EventError, Err: be})
		return &BatchResult{
			Errors:  []*BatchError{be},
			Elapsed: time.Since(start),
		}, err
	}

	if len(set.Paths) == 0 {
		be := NewBatchError(p.cfg.Input, KindFileNotFound,
			fmt.Errorf("%w: %q", ErrNoFilesMatched, p.cfg.Input))
		p.emit(ProgressEvent{Type: EventError, Err: be})
		return &BatchResult{
			Errors:  []*BatchError{be},
			Elapsed: time.Since(start),
		}, nil
	}

	// Resolve all output paths up front so collision suffixes follow
	// input order deterministically.
	outputs := NewOutputManager(p.cfg, set.BaseDir)
	docs := make([]Document, 0, len(set.Paths))
	for _, in := range set.Paths {
		out, err := outputs.Resolve(in)
		if err != nil {
			return &BatchResult{Elapsed: time.Since(start)}, err
		}
		docs = append(docs, Document{InputPath: in, OutputPath: out, Options: p.cfg.Convert})
	}

	total := len(docs)
	p.emit(ProgressEvent{Type: EventStart, TotalFiles: total})

	concurrency := p.pool.Size()
	if concurrency > p.cfg.MaxConcurrent {
		concurrency = p.cfg.MaxConcurrent
	}
	if concurrency > total {
		concurrency = total
	}
	if concurrency < 1 {
		concurrency = 1
	}

	jobs := make(chan Document)
	outcomes := make(chan fileOutcome)
	var stop atomic.Bool

	// Dispatcher: the cancellation signal and the continue-on-error stop
	// flag are checked before every dispatch. In-flight units are never
	// interrupted; they finish and their outcomes are recorded.
	dispatchedCh := make(chan int, 1)
	go func() {
		dispatched := 0
		defer func() {
			close(jobs)
			dispatchedCh <- dispatched
		}()
		for _, doc := range docs {
			if stop.Load() || ctx.Err() != nil {
				return
			}
			select {
			case jobs <- doc:
				dispatched++
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conv := p.pool.Acquire()
			defer p.pool.Release(conv)

			for doc := range jobs {
				outcomes <- p.convertOne(ctx, conv, outputs, doc)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Single owning coordinator: aggregates outcomes and emits events,
	// so no shared mutable state crosses worker boundaries.
	result := &BatchResult{}
	completed := 0
	for oc := range outcomes {
		completed++
		if oc.err == nil {
			result.SuccessfulFiles++
		} else {
			result.Errors = append(result.Errors, oc.err)
			if !p.cfg.ContinueOnError {
				stop.Store(true)
			}
		}

		ev := ProgressEvent{
			Type:       EventFileComplete,
			TotalFiles: total,
			Completed:  completed,
			Succeeded:  result.SuccessfulFiles,
			Failed:     len(result.Errors),
			InputPath:  oc.doc.InputPath,
			OutputPath: oc.doc.OutputPath,
			Success:    oc.err == nil,
		}
		if oc.err != nil {
			ev.Err = oc.err
		}
		p.emit(ev)
		if p.onFileComplete != nil {
			p.onFileComplete(ev)
		}

		ev.Type = EventProgress
		ev.InputPath, ev.OutputPath, ev.Err = "", "", nil
		p.emit(ev)
	}

	dispatched := <-dispatchedCh

	result.TotalFiles = total
	if dispatched < total {
		// Run stopped early: only dispatched files have outcomes.
		result.TotalFiles = dispatched
	}
	result.Cancelled = ctx.Err() != nil
	result.Success = result.SuccessfulFiles > 0 && !result.Cancelled
	result.Elapsed = time.Since(start)

	p.emit(ProgressEvent{
		Type:       EventComplete,
		TotalFiles: result.TotalFiles,
		Completed:  completed,
		Succeeded:  result.SuccessfulFiles,
		Failed:     len(result.Errors),
	})

	if result.Cancelled {
		return result, context.Cause(ctx)
	}
	return result, nil
}

// convertOne runs a single unit of work and classifies its failure.
func (p *BatchProcessor) convertOne(ctx context.Context, conv Converter, outputs *OutputManager, doc Document) fileOutcome {
	if err := outputs.EnsureDirectory(filepath.Dir(doc.OutputPath)); err != nil {
		return fileOutcome{doc: doc, err: ClassifyError(doc.InputPath, err)}
	}
	if err := conv.Convert(ctx, doc); err != nil {
		return fileOutcome{doc: doc, err: ClassifyError(doc.InputPath, err)}
	}
	return fileOutcome{doc: doc}
}

// emit delivers an event to the progress callback, if any.
func (p *BatchProcessor) emit(ev ProgressEvent) {
	if p.onProgress != nil {
		p.onProgress(ev)
	}
}
