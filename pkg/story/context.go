package story

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Hua914255/media/pkg/genx"
)

// MaxContextTurns bounds how many prior turns are sent upstream.
const MaxContextTurns = 24

const SystemPrompt = "你是一个擅长互动叙事续写的助手。" +
	"请严格延续当前故事的设定、人物与场景继续写，不要新开故事，不要换主角，不要跳出叙事。" +
	"输出应是自然的句子，不要只输出标点符号。"

// Hint asks the model for exactly need more sentences. It is appended to
// the final user message.
func Hint(need int) string {
	return fmt.Sprintf("\n\n请在延续上文的前提下继续故事，严格再输出%d句完整自然的句子，每句必须包含内容，不要只输出标点。", need)
}

// History reads the turns of a story. *Store implements it.
type History interface {
	Turns(ctx context.Context, id string) ([]Turn, error)
}

// Snapshot is a History fixed at the moment it was taken. Runs that append
// to a story while generating build their context from a Snapshot so that
// their own turns are not fed back upstream.
type Snapshot []Turn

func (h Snapshot) Turns(context.Context, string) ([]Turn, error) {
	return h, nil
}

// ContextBuilder turns a story snapshot plus the new user text into a
// model context.
type ContextBuilder struct {
	History History

	// MaxTurns defaults to MaxContextTurns.
	MaxTurns int

	// Params defaults to genx.DefaultModelParams().
	Params *genx.ModelParams
}

// Build reads the story history and returns the context for one attempt.
// An unknown story, or a nil History, is built with no prior turns.
func (b *ContextBuilder) Build(ctx context.Context, storyID, userText, hint string) (genx.ModelContext, error) {
	var history []Turn
	if b.History != nil && storyID != "" {
		turns, err := b.History.Turns(ctx, storyID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("story: load history: %w", err)
		}
		history = turns
	}

	maxTurns := b.MaxTurns
	if maxTurns <= 0 {
		maxTurns = MaxContextTurns
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	params := b.Params
	if params == nil {
		params = genx.DefaultModelParams()
	}
	mcb := &genx.ModelContextBuilder{Params: params}
	mcb.PromptText("", SystemPrompt)
	for _, t := range history {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if t.Author == AuthorAI {
			mcb.ModelText("", text)
		} else {
			mcb.UserText("", text)
		}
	}
	mcb.UserText("", strings.TrimSpace(userText)+hint)
	return mcb.Build(), nil
}
