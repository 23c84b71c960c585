package genx

import (
	"iter"
	"slices"
)

var _ ModelContext = (*modelContext)(nil)

// ModelContextBuilder accumulates the system prompts and conversation of one
// upstream request.
type ModelContextBuilder struct {
	Prompts  []*Prompt
	Messages []*Message

	Params *ModelParams
}

// Build returns an immutable copy of the builder. Prompts merged after Build
// do not leak into the returned context.
func (mcb *ModelContextBuilder) Build() ModelContext {
	mctx := &modelContext{
		prompts:  make([]Prompt, 0, len(mcb.Prompts)),
		messages: make([]Message, 0, len(mcb.Messages)),
	}
	for _, p := range mcb.Prompts {
		mctx.prompts = append(mctx.prompts, *p)
	}
	for _, m := range mcb.Messages {
		mctx.messages = append(mctx.messages, *m)
	}
	if mcb.Params != nil {
		params := *mcb.Params
		mctx.params = &params
	}
	return mctx
}

// AddPrompt appends a system prompt. A prompt with the same name as the
// previous one extends it on a new line.
func (mcb *ModelContextBuilder) AddPrompt(prompt *Prompt) {
	if n := len(mcb.Prompts); n > 0 && mcb.Prompts[n-1].Name == prompt.Name {
		last := mcb.Prompts[n-1]
		if last.Text == "" {
			last.Text = prompt.Text
		} else if prompt.Text != "" {
			last.Text += "\n" + prompt.Text
		}
		return
	}
	mcb.Prompts = append(mcb.Prompts, prompt)
}

func (mcb *ModelContextBuilder) PromptText(name, text string) {
	mcb.AddPrompt(&Prompt{Name: name, Text: text})
}

// AddMessage appends msg. Story turns by the same author stay separate
// messages.
func (mcb *ModelContextBuilder) AddMessage(msg *Message) {
	mcb.Messages = append(mcb.Messages, msg)
}

func (mcb *ModelContextBuilder) UserText(name, text string) {
	mcb.AddMessage(&Message{Role: RoleUser, Name: name, Content: text})
}

func (mcb *ModelContextBuilder) ModelText(name, text string) {
	mcb.AddMessage(&Message{Role: RoleModel, Name: name, Content: text})
}

type modelContext struct {
	prompts  []Prompt
	messages []Message
	params   *ModelParams
}

func (mctx *modelContext) Prompts() iter.Seq[*Prompt] {
	return pointers(mctx.prompts)
}

func (mctx *modelContext) Messages() iter.Seq[*Message] {
	return pointers(mctx.messages)
}

func (mctx *modelContext) Params() *ModelParams {
	return mctx.params
}

// pointers yields a pointer to a copy of each element so that callers
// cannot modify the context.
func pointers[T any](s []T) iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for v := range slices.Values(s) {
			if !yield(&v) {
				return
			}
		}
	}
}
