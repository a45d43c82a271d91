package mdbatch

import "context"

// Document is one unit of work: an input markdown file, its resolved
// output path, and the per-file conversion options.
type Document struct {
	InputPath  string
	OutputPath string
	Options    ConvertOptions
}

// Converter abstracts the per-file conversion operation. The scheduler
// treats it as an opaque, possibly-slow, possibly-failing call; failures
// are classified via ClassifyError unless the implementation already
// returns a *BatchError.
type Converter interface {
	Convert(ctx context.Context, doc Document) error
}

// ConvertFunc adapts a function to the Converter interface.
type ConvertFunc func(ctx context.Context, doc Document) error

// Convert implements Converter.
func (f ConvertFunc) Convert(ctx context.Context, doc Document) error {
	return f(ctx, doc)
}

// Pool abstracts converter pool operations for the scheduler and for
// testability. Acquire blocks until a converter is available; Release
// must be called for every successful Acquire.
type Pool interface {
	Acquire() Converter
	Release(Converter)
	Size() int
}
