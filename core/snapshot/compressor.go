package snapshot

import "context"

// Compressor turns a document into compact text that fits a token budget.
type Compressor interface {
	Compress(ctx context.Context, content string, opts CompressOptions) (Result, error)
}

type CompressOptions struct {
	TokenBudget   int
	MaxIterations int

	// AssignIdentifiers tags interactive elements with identifiers the agent
	// can refer to.
	AssignIdentifiers bool
	Debug             bool
}

type Result struct {
	Text       string
	Tokens     int
	Iterations int
}

// CompressorFunc adapts a function into a Compressor.
type CompressorFunc func(ctx context.Context, content string, opts CompressOptions) (Result, error)

func (f CompressorFunc) Compress(ctx context.Context, content string, opts CompressOptions) (Result, error) {
	return f(ctx, content, opts)
}
