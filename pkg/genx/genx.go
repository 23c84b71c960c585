package genx

import (
	"context"
	"iter"
	"log/slog"
	"time"
)

// Source is an upstream text generator.
type Source interface {
	// Call returns the full generated text. Failures are *TransportError.
	Call(ctx context.Context, mctx ModelContext) (string, error)

	// StreamCall starts a generation and returns its text deltas. The
	// returned Stream must be closed by the caller.
	StreamCall(ctx context.Context, mctx ModelContext) (Stream, error)
}

type Stream interface {
	Next() (*MessageChunk, error)
	Close() error
	CloseWithError(error) error
}

type ModelParams struct {
	MaxTokens   int     `json:"max_tokens,omitzero" yaml:"max_tokens,omitzero"`
	Temperature float32 `json:"temperature,omitzero" yaml:"temperature,omitzero"`
	TopP        float32 `json:"top_p,omitzero" yaml:"top_p,omitzero"`
	TopK        float32 `json:"top_k,omitzero" yaml:"top_k,omitzero"`
}

// DefaultModelParams returns the sampling parameters used for story
// continuation.
func DefaultModelParams() *ModelParams {
	return &ModelParams{
		MaxTokens:   512,
		Temperature: 0.9,
		TopP:        0.9,
	}
}

type Prompt struct {
	Name string
	Text string
}

type ModelContext interface {
	Prompts() iter.Seq[*Prompt]
	Messages() iter.Seq[*Message]
	Params() *ModelParams
}

type Usage struct {
	// Number of tokens in the prompt.
	PromptTokenCount int64

	// Number of tokens in the cached part of the prompt.
	CachedContentTokenCount int64

	// Number of tokens generated.
	GeneratedTokenCount int64
}

func (u Usage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("prompt", u.PromptTokenCount),
		slog.Int64("cached", u.CachedContentTokenCount),
		slog.Int64("generated", u.GeneratedTokenCount),
	)
}

// withTimeout bounds a single upstream call. A zero timeout only makes the
// call cancellable.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
