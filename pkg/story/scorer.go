package story

import "context"

// Scorer annotates new turns before they are stored. Implementations may
// read the story history; they must return one turn per input, in order.
type Scorer interface {
	Score(ctx context.Context, storyID string, turns []Turn) ([]Turn, error)
}

// NopScorer leaves turns unscored.
type NopScorer struct{}

func (NopScorer) Score(_ context.Context, _ string, turns []Turn) ([]Turn, error) {
	return turns, nil
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, storyID string, turns []Turn) ([]Turn, error)

func (f ScorerFunc) Score(ctx context.Context, storyID string, turns []Turn) ([]Turn, error) {
	return f(ctx, storyID, turns)
}
