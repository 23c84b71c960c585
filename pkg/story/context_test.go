package story

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/Hua914255/media/pkg/genx"
	"github.com/Hua914255/media/pkg/kv"
)

type historyFunc func(ctx context.Context, id string) ([]Turn, error)

func (f historyFunc) Turns(ctx context.Context, id string) ([]Turn, error) { return f(ctx, id) }

func TestHint(t *testing.T) {
	got := Hint(3)
	want := "\n\n请在延续上文的前提下继续故事，严格再输出3句完整自然的句子，每句必须包含内容，不要只输出标点。"
	if got != want {
		t.Errorf("Hint(3) = %q, want %q", got, want)
	}
}

func TestContextBuilder_Build(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())
	id, _ := s.Create(ctx)
	s.Append(ctx, id,
		Turn{Author: AuthorHuman, Text: " 小明走进森林。 "},
		Turn{Author: AuthorAI, Text: "他听见了鸟叫。"},
		Turn{Author: AuthorAI, Text: "   "},
	)

	b := &ContextBuilder{History: s}
	mctx, err := b.Build(ctx, id, "  他停下脚步。 ", Hint(2))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	prompts := slices.Collect(mctx.Prompts())
	if len(prompts) != 1 || prompts[0].Text != SystemPrompt {
		t.Errorf("prompts = %+v", prompts)
	}
	msgs := slices.Collect(mctx.Messages())
	if len(msgs) != 3 {
		t.Fatalf("len(messages) = %d, want 3 (blank turn skipped)", len(msgs))
	}
	if msgs[0].Role != genx.RoleUser || msgs[0].Content != "小明走进森林。" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != genx.RoleModel {
		t.Errorf("msgs[1].Role = %v, want model", msgs[1].Role)
	}
	last := msgs[2]
	if last.Role != genx.RoleUser || last.Content != "他停下脚步。"+Hint(2) {
		t.Errorf("last message = %q", last.Content)
	}
	if mctx.Params().Temperature != 0.9 {
		t.Errorf("Temperature = %v, want 0.9", mctx.Params().Temperature)
	}
}

func TestContextBuilder_TruncatesHistory(t *testing.T) {
	var history []Turn
	for i := range 30 {
		history = append(history, Turn{Author: AuthorHuman, Text: fmt.Sprintf("第%d轮。", i+1)})
	}
	b := &ContextBuilder{History: historyFunc(func(context.Context, string) ([]Turn, error) {
		return history, nil
	})}

	mctx, err := b.Build(context.Background(), "s", "新的一轮。", "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	msgs := slices.Collect(mctx.Messages())
	if len(msgs) != MaxContextTurns+1 {
		t.Fatalf("len(messages) = %d, want %d", len(msgs), MaxContextTurns+1)
	}
	if msgs[0].Content != "第7轮。" {
		t.Errorf("oldest kept turn = %q, want 第7轮。", msgs[0].Content)
	}
}

func TestContextBuilder_UnknownStory(t *testing.T) {
	b := &ContextBuilder{History: NewStore(kv.NewMemory())}
	mctx, err := b.Build(context.Background(), "missing", "开始。", "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if n := len(slices.Collect(mctx.Messages())); n != 1 {
		t.Errorf("len(messages) = %d, want 1", n)
	}
}

func TestContextBuilder_HistoryError(t *testing.T) {
	boom := errors.New("disk on fire")
	b := &ContextBuilder{History: historyFunc(func(context.Context, string) ([]Turn, error) {
		return nil, boom
	})}
	_, err := b.Build(context.Background(), "s", "x", "")
	if !errors.Is(err, boom) {
		t.Fatalf("Build() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "load history") {
		t.Errorf("error = %q", err)
	}
}

func TestContextBuilder_Snapshot(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())
	id, _ := s.Create(ctx)
	s.Append(ctx, id, Turn{Author: AuthorHuman, Text: "开头。"})
	turns, err := s.Turns(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	b := &ContextBuilder{History: Snapshot(turns)}
	s.Append(ctx, id, Turn{Author: AuthorHuman, Text: "下一句。"})

	mctx, err := b.Build(ctx, id, "下一句。", "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	msgs := slices.Collect(mctx.Messages())
	if len(msgs) != 2 || msgs[0].Content != "开头。" || msgs[1].Content != "下一句。" {
		t.Errorf("messages = %+v, want snapshot turn plus user text", msgs)
	}
}
