package continuation

import (
	"errors"
	"fmt"
)

// MaxRounds is the largest number of AI sentences one request may ask for.
const MaxRounds = 10

type Mode string

const (
	ModeHumanAI   Mode = "human_ai"
	ModeAIOnly    Mode = "ai_only"
	ModeHumanOnly Mode = "human_only"
)

var ErrInvalidRequest = errors.New("continuation: invalid request")

// Request asks for Rounds AI sentences continuing StoryID after UserText.
type Request struct {
	StoryID  string `json:"story_id"`
	UserText string `json:"user_text"`
	Rounds   int    `json:"rounds"`
	Mode     Mode   `json:"mode"`
}

// Validate checks the request. An empty Mode is treated as ModeHumanAI.
func (r *Request) Validate() error {
	if r.Rounds < 1 || r.Rounds > MaxRounds {
		return fmt.Errorf("%w: rounds %d out of range [1, %d]", ErrInvalidRequest, r.Rounds, MaxRounds)
	}
	switch r.Mode {
	case "":
		r.Mode = ModeHumanAI
	case ModeHumanAI, ModeAIOnly, ModeHumanOnly:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}
