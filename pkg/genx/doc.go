// Package genx abstracts the upstream text generator used to continue
// stories.
//
// # Core Types
//
// A [Source] produces text for a [ModelContext] in two modes:
//
//	type Source interface {
//	    Call(ctx context.Context, mctx ModelContext) (string, error)
//	    StreamCall(ctx context.Context, mctx ModelContext) (Stream, error)
//	}
//
// Call blocks until the full response is available. StreamCall returns a
// finite, non-restartable [Stream] of text deltas:
//
//	type Stream interface {
//	    Next() (*MessageChunk, error)
//	    Close() error
//	    CloseWithError(error) error
//	}
//
// Next returns an error wrapping [ErrDone] when the upstream finished
// normally. A truncated or blocked generation also ends the stream; use
// [EndOfStream] to tell a finished stream from a failed one.
//
// # Errors
//
// Network and protocol failures, including per-call timeouts, are reported
// as [*TransportError]. Callers should never need to inspect SDK-specific
// error types.
//
// # Implementations
//
//   - [OpenAISource]: any OpenAI-compatible chat completions endpoint
//     (OpenAI, DeepSeek) via github.com/openai/openai-go.
//   - [GeminiSource]: Google Gemini via google.golang.org/genai.
//
// Streaming implementations run a puller goroutine that feeds a
// [StreamBuilder]; closing the stream cancels the upstream request.
package genx
