package genx

import (
	"slices"
	"testing"
)

func TestModelContextBuilder_PromptMerge(t *testing.T) {
	mcb := &ModelContextBuilder{}
	mcb.PromptText("", "第一段。")
	mcb.PromptText("", "第二段。")
	mcb.PromptText("hint", "提示")

	prompts := slices.Collect(mcb.Build().Prompts())
	if len(prompts) != 2 {
		t.Fatalf("len(prompts) = %d, want 2", len(prompts))
	}
	if prompts[0].Text != "第一段。\n第二段。" {
		t.Errorf("prompts[0].Text = %q", prompts[0].Text)
	}
	if prompts[1].Name != "hint" {
		t.Errorf("prompts[1].Name = %q, want hint", prompts[1].Name)
	}
}

func TestModelContextBuilder_MessagesKeepOrder(t *testing.T) {
	mcb := &ModelContextBuilder{Params: DefaultModelParams()}
	mcb.UserText("", "a")
	mcb.UserText("", "b")
	mcb.ModelText("", "c")

	mctx := mcb.Build()
	msgs := slices.Collect(mctx.Messages())
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	wantRoles := []Role{RoleUser, RoleUser, RoleModel}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Errorf("msgs[%d].Role = %v, want %v", i, m.Role, wantRoles[i])
		}
	}
	if mctx.Params().MaxTokens != 512 {
		t.Errorf("Params().MaxTokens = %d, want 512", mctx.Params().MaxTokens)
	}
}

func TestModelContextBuilder_BuildSnapshots(t *testing.T) {
	mcb := &ModelContextBuilder{}
	mcb.UserText("", "a")
	mctx := mcb.Build()
	mcb.UserText("", "b")

	if n := len(slices.Collect(mctx.Messages())); n != 1 {
		t.Errorf("built context has %d messages, want 1", n)
	}
}

func TestModelContext_IterStop(t *testing.T) {
	mcb := &ModelContextBuilder{}
	for _, s := range []string{"a", "b", "c"} {
		mcb.UserText("", s)
	}
	var n int
	for range mcb.Build().Messages() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterations = %d, want 1", n)
	}
}

func TestModelContextBuilder_BuildIsImmutable(t *testing.T) {
	mcb := &ModelContextBuilder{Params: DefaultModelParams()}
	mcb.PromptText("", "系统。")
	mctx := mcb.Build()

	mcb.PromptText("", "追加。")
	mcb.Params.MaxTokens = 1
	for p := range mctx.Prompts() {
		p.Text = "changed"
	}

	prompts := slices.Collect(mctx.Prompts())
	if len(prompts) != 1 || prompts[0].Text != "系统。" {
		t.Errorf("prompts = %+v, want the text at Build time", prompts)
	}
	if mctx.Params().MaxTokens != 512 {
		t.Errorf("Params().MaxTokens = %d, want 512", mctx.Params().MaxTokens)
	}
}
