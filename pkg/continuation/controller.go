// Package continuation turns an upstream text generator into a bounded list
// of complete sentences continuing a story.
//
// A run makes sequential attempts against a genx.Source. Each attempt asks
// for the sentences still missing, feeds the returned text through a
// sentence.Scanner and keeps the new valid sentences. The run ends when the
// quota is met, the retry budget is spent, an attempt adds nothing, or the
// source fails. Failures and empty runs are answered with deterministic
// fallback sentences so that callers always receive a result.
package continuation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/Hua914255/media/pkg/genx"
	"github.com/Hua914255/media/pkg/sentence"
	"github.com/Hua914255/media/pkg/story"
)

// DefaultMaxAttempts is the retry budget when Config.MaxAttempts is zero.
const DefaultMaxAttempts = 6

// ContextBuilder builds the model context of one attempt.
// *story.ContextBuilder implements it.
type ContextBuilder interface {
	Build(ctx context.Context, storyID, userText, hint string) (genx.ModelContext, error)
}

type Config struct {
	// Source is the upstream generator. A nil Source puts the controller in
	// offline mode: every run returns fallback sentences.
	Source genx.Source

	// Context defaults to a story.ContextBuilder without history.
	Context ContextBuilder

	// MaxAttempts is the retry budget per run.
	MaxAttempts int

	// TopUp pads a run that exhausted its budget with a partial result up to
	// the requested count with fallback sentences. When false the partial
	// result is returned as is.
	TopUp bool

	// FallbackPace delays each fallback sentence of a streaming run.
	FallbackPace time.Duration

	Logger *slog.Logger
}

type Controller struct {
	source      genx.Source
	builder     ContextBuilder
	maxAttempts int
	topUp       bool
	pace        time.Duration
	logger      *slog.Logger
}

func New(cfg Config) *Controller {
	c := &Controller{
		source:      cfg.Source,
		builder:     cfg.Context,
		maxAttempts: cfg.MaxAttempts,
		topUp:       cfg.TopUp,
		pace:        cfg.FallbackPace,
		logger:      cfg.Logger,
	}
	if c.builder == nil {
		c.builder = &story.ContextBuilder{}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Result is the outcome of one run.
type Result struct {
	// Turns are the AI turns in emission order, at most Request.Rounds.
	// Turn numbers are not assigned.
	Turns []story.Turn `json:"turns"`

	State State `json:"state"`

	// Attempts is the number of upstream calls made.
	Attempts int `json:"attempts"`

	// Fallback is the number of trailing turns produced by Fallback.
	Fallback int `json:"fallback"`
}

// Continue runs the batch variant: each attempt is one Source.Call.
//
// The returned error is non-nil only when the request is invalid or its
// model context cannot be built. Source failures end in fallback sentences.
func (c *Controller) Continue(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	return c.run(ctx, req, false, func(story.Turn) bool { return true })
}

// StreamTo runs the streaming variant: each attempt is one Source.StreamCall
// and sentences are passed to emit as soon as they complete. Returning false
// from emit cancels the run.
func (c *Controller) StreamTo(ctx context.Context, req Request, emit func(story.Turn) bool) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	return c.run(ctx, req, true, emit)
}

// Stream is StreamTo as an iterator. The iterator ends when the run is
// complete; breaking out of the loop cancels the run.
func (c *Controller) Stream(ctx context.Context, req Request) (iter.Seq[story.Turn], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return func(yield func(story.Turn) bool) {
		if _, err := c.run(ctx, req, true, yield); err != nil {
			c.logger.ErrorContext(ctx, "continuation: stream aborted", "story_id", req.StoryID, "error", err)
		}
	}, nil
}

// errStopped reports that the consumer stopped accepting turns.
var errStopped = errors.New("continuation: consumer stopped")

type session struct {
	req    Request
	stream bool
	emit   func(story.Turn) bool
	log    *slog.Logger

	res  Result
	seen map[string]struct{}
}

func (r *session) count() int {
	return len(r.res.Turns)
}

func (r *session) full() bool {
	return r.count() >= r.req.Rounds
}

// add appends s unless it is a duplicate or the quota is met. It reports
// whether s was kept.
func (r *session) add(s string) (bool, error) {
	if r.full() {
		return false, nil
	}
	if _, dup := r.seen[s]; dup {
		r.log.Debug("continuation: duplicate sentence dropped", "text", s)
		return false, nil
	}
	r.seen[s] = struct{}{}
	return true, r.push(s)
}

func (r *session) push(s string) error {
	t := story.Turn{StoryID: r.req.StoryID, Author: story.AuthorAI, Text: s}
	r.res.Turns = append(r.res.Turns, t)
	if !r.emit(t) {
		return errStopped
	}
	return nil
}

func (c *Controller) run(ctx context.Context, req Request, stream bool, emit func(story.Turn) bool) (Result, error) {
	r := &session{
		req:    req,
		stream: stream,
		emit:   emit,
		log: c.logger.With(
			slog.String("story_id", req.StoryID),
			slog.Int("rounds", req.Rounds),
			slog.String("mode", string(req.Mode)),
			slog.Bool("stream", stream),
		),
		seen: make(map[string]struct{}),
	}

	if req.Mode == ModeHumanOnly {
		c.finish(ctx, r, StateSkipped)
		return r.res, nil
	}
	if c.source == nil {
		return c.fallback(ctx, r, StateOffline, 1, req.Rounds)
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			c.finish(ctx, r, StateCancelled, slog.Any("cause", err))
			return r.res, nil
		}
		need := req.Rounds - r.count()
		r.log.DebugContext(ctx, "continuation: state",
			"state", StateRequesting, "attempt", attempt+1, "need", need)

		mctx, err := c.builder.Build(ctx, req.StoryID, req.UserText, story.Hint(need))
		if err != nil {
			return r.res, fmt.Errorf("continuation: build context: %w", err)
		}

		r.res.Attempts++
		before := r.count()
		err = c.attempt(ctx, r, mctx)
		added := r.count() - before

		switch {
		case errors.Is(err, errStopped) || ctx.Err() != nil:
			c.finish(ctx, r, StateCancelled, slog.Int("attempt", attempt+1))
			return r.res, nil
		case err != nil:
			r.log.WarnContext(ctx, "continuation: source failed",
				"attempt", attempt+1,
				"transport", genx.IsTransport(err),
				"error", err,
			)
			if r.stream {
				// Emitted turns cannot be taken back; fill the rest.
				return c.fallback(ctx, r, StateFailed, r.count()+1, req.Rounds-r.count())
			}
			r.res.Turns = nil
			return c.fallback(ctx, r, StateFailed, 1, req.Rounds)
		}

		r.log.DebugContext(ctx, "continuation: state",
			"state", StateAccumulating, "attempt", attempt+1, "added", added, "total", r.count())

		switch {
		case r.full():
			c.finish(ctx, r, StateSatisfied)
			return r.res, nil
		case attempt+1 >= c.maxAttempts, attempt > 0 && added == 0:
			if r.count() == 0 {
				return c.fallback(ctx, r, StateExhausted, 1, req.Rounds)
			}
			if c.topUp {
				return c.fallback(ctx, r, StateExhausted, r.count()+1, req.Rounds-r.count())
			}
			c.finish(ctx, r, StateExhausted)
			return r.res, nil
		}
	}
}

// attempt makes one upstream call and accumulates its sentences.
func (c *Controller) attempt(ctx context.Context, r *session, mctx genx.ModelContext) error {
	var sc sentence.Scanner
	feed := func(ss []string) error {
		for _, s := range ss {
			if _, err := r.add(s); err != nil {
				return err
			}
		}
		return nil
	}

	if r.stream {
		s, err := c.source.StreamCall(ctx, mctx)
		if err != nil {
			return err
		}
		defer s.Close()
		stop := context.AfterFunc(ctx, func() { s.CloseWithError(ctx.Err()) })
		defer stop()

		for !r.full() {
			chunk, err := s.Next()
			if err != nil {
				if genx.EndOfStream(err) {
					break
				}
				return err
			}
			if err := feed(sc.Feed(chunk.Text)); err != nil {
				return err
			}
		}
	} else {
		text, err := c.source.Call(ctx, mctx)
		if err != nil && !genx.EndOfStream(err) {
			return err
		}
		if err := feed(sc.Feed(text)); err != nil {
			return err
		}
	}

	if err := feed(sc.Flush()); err != nil {
		return err
	}
	if rem := sc.Remainder(); !r.full() && sentence.Valid(rem) {
		kept, err := r.add(rem)
		if kept {
			r.log.DebugContext(ctx, "continuation: remainder salvaged", "text", rem)
		}
		return err
	}
	return nil
}

// fallback appends count fallback sentences numbered from start and ends the
// run in state.
func (c *Controller) fallback(ctx context.Context, r *session, state State, start, count int) (Result, error) {
	for i, s := range FallbackFrom(r.req.UserText, start, count) {
		if r.stream && i > 0 && c.pace > 0 {
			if err := sleep(ctx, c.pace); err != nil {
				c.finish(ctx, r, StateCancelled, slog.Any("cause", err))
				return r.res, nil
			}
		}
		if err := r.push(s); err != nil {
			c.finish(ctx, r, StateCancelled)
			return r.res, nil
		}
		r.res.Fallback++
	}
	c.finish(ctx, r, state)
	return r.res, nil
}

func (c *Controller) finish(ctx context.Context, r *session, state State, attrs ...slog.Attr) {
	r.res.State = state
	level := slog.LevelInfo
	if state == StateFailed || state == StateOffline {
		level = slog.LevelWarn
	}
	attrs = append(attrs,
		slog.String("state", state.String()),
		slog.Int("attempts", r.res.Attempts),
		slog.Int("turns", len(r.res.Turns)),
		slog.Int("fallback", r.res.Fallback),
	)
	r.log.LogAttrs(ctx, level, "continuation: done", attrs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
