package spinneret

import "context"

// Pipeline is one stage of the record processing chain. Process returns the
// (possibly transformed) record, ErrDropItem to silently discard it, or any
// other error to report the record as failed and drop it. A failure on one
// record never stops the pipeline for subsequent records.
type Pipeline[T any] interface {
	Name() string
	Process(ctx context.Context, item T) (T, error)
}

// Exporter is a terminal pipeline stage: it consumes surviving records but
// does not transform them. Open is called once before the crawl starts and
// Close once after the pools drain, including on early termination. Write
// is called from every parse worker and must be safe for concurrent use.
type Exporter[T any] interface {
	Name() string
	Open(ctx context.Context) error
	Write(ctx context.Context, item T) error
	Close(ctx context.Context) error
}

// PipelineFunc adapts a function to the Pipeline interface.
type PipelineFunc[T any] struct {
	StageName string
	Fn        func(ctx context.Context, item T) (T, error)
}

// Name returns the stage name.
func (p PipelineFunc[T]) Name() string { return p.StageName }

// Process invokes the wrapped function.
func (p PipelineFunc[T]) Process(ctx context.Context, item T) (T, error) {
	return p.Fn(ctx, item)
}
