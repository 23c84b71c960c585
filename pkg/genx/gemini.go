package genx

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var _ Source = (*GeminiSource)(nil)

// GeminiSource implements Source using Google Gemini API.
type GeminiSource struct {
	Client *genai.Client `json:"-"`

	// Model should not start with "models/"
	Model  string       `json:"model"`
	Params *ModelParams `json:"params,omitzero"`

	Timeout       time.Duration `json:"timeout,omitzero"`
	StreamTimeout time.Duration `json:"stream_timeout,omitzero"`
}

func (g *GeminiSource) Call(ctx context.Context, mctx ModelContext) (string, error) {
	cfg, contents, err := g.convModelContext(mctx)
	if err != nil {
		return "", err
	}
	ctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()

	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, contents, cfg)
	if err != nil {
		return "", &TransportError{Op: "call", Err: geminiUnwrap(err)}
	}
	return geminiResult(resp)
}

// geminiResult maps a complete response the way geminiPull maps the last
// chunk of a stream. A missing finish reason is accepted since the response
// itself is complete.
func geminiResult(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", &TransportError{Op: "call", Err: errors.New("no candidates")}
	}
	t := resp.Candidates[0]
	usage := geminiConvUsage(resp.UsageMetadata)
	switch t.FinishReason {
	case genai.FinishReasonUnspecified, "", genai.FinishReasonStop, genai.FinishReasonMaxTokens:
	case genai.FinishReasonSafety:
		return "", Blocked(usage, geminiBlockedBy(t))
	default:
		return "", Error(usage, fmt.Errorf("unexpected finish reason: %s", t.FinishReason))
	}
	if t.Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range t.Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (g *GeminiSource) StreamCall(ctx context.Context, mctx ModelContext) (Stream, error) {
	cfg, contents, err := g.convModelContext(mctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, g.StreamTimeout)
	sb := NewStreamBuilder(32)
	sb.OnClose(cancel)
	go func() {
		defer cancel()
		if err := geminiPull(sb, g.Client.Models.GenerateContentStream(ctx, g.Model, contents, cfg)); err != nil {
			sb.Abort(&TransportError{Op: "stream", Err: geminiUnwrap(err)})
		}
	}()
	return sb.Stream(), nil
}

func geminiUnwrap(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		return e.Unwrap()
	}
	return err
}

func geminiPull(builder *StreamBuilder, itr iter.Seq2[*genai.GenerateContentResponse, error]) error {
	var (
		selIdx   int32
		selected bool
	)
	for chunk, err := range itr {
		if err != nil {
			return err
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		var sel *genai.Candidate
		if !selected {
			selected = true
			selIdx = chunk.Candidates[0].Index
			sel = chunk.Candidates[0]
		} else {
			for _, c := range chunk.Candidates {
				if c.Index == selIdx {
					sel = c
					break
				}
			}
			if sel == nil {
				continue
			}
		}

		if sel.Content != nil {
			var sb strings.Builder
			for _, p := range sel.Content.Parts {
				sb.WriteString(p.Text)
			}
			if sb.Len() > 0 {
				if err := builder.Add(&MessageChunk{
					Role: RoleModel,
					Text: sb.String(),
				}); err != nil {
					return err
				}
			}
		}
		switch sel.FinishReason {
		default:
			return builder.Unexpected(
				geminiConvUsage(chunk.UsageMetadata),
				fmt.Errorf("unexpected finish reason: %s", sel.FinishReason),
			)
		case genai.FinishReasonUnspecified, "":
			// continue
		case genai.FinishReasonStop:
			return builder.Done(geminiConvUsage(chunk.UsageMetadata))
		case genai.FinishReasonMaxTokens:
			return builder.Truncated(geminiConvUsage(chunk.UsageMetadata))
		case genai.FinishReasonSafety:
			return builder.Blocked(geminiConvUsage(chunk.UsageMetadata), geminiBlockedBy(sel))
		}
	}
	return errors.New("unexpected end of stream: no finish reason")
}

func geminiBlockedBy(c *genai.Candidate) string {
	var cats []string
	for _, sr := range c.SafetyRatings {
		if sr.Blocked {
			cats = append(cats, string(sr.Category))
		}
	}
	return "blocked by " + strings.Join(cats, ", ")
}

// geminiConvMessages maps messages to contents. Gemini requires alternating
// roles, so consecutive messages of the same role share one content.
func geminiConvMessages(msgs iter.Seq[*Message]) ([]*genai.Content, error) {
	var (
		contents []*genai.Content
		last     *genai.Content
	)
	for msg := range msgs {
		var role string
		switch msg.Role {
		case RoleUser:
			role = "user"
		case RoleModel:
			role = "model"
		default:
			return nil, fmt.Errorf("unexpected message role: %s", msg.Role)
		}
		if msg.Content == "" {
			continue
		}
		part := genai.NewPartFromText(msg.Content)
		if last != nil && last.Role == role {
			last.Parts = append(last.Parts, part)
			continue
		}
		last = &genai.Content{Role: role, Parts: []*genai.Part{part}}
		contents = append(contents, last)
	}
	return contents, nil
}

func (g *GeminiSource) convModelContext(mctx ModelContext) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{
				Category:  genai.HarmCategoryHateSpeech,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryHarassment,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryDangerousContent,
				Threshold: genai.HarmBlockThresholdOff,
			},
		},
	}
	prompts := []*genai.Part{}
	for p := range mctx.Prompts() {
		prompts = append(prompts, genai.NewPartFromText(p.Text))
	}
	if len(prompts) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: prompts}
	}
	mp := g.Params
	if p := mctx.Params(); p != nil {
		mp = p
	}
	if mp != nil {
		cfg.MaxOutputTokens = int32(mp.MaxTokens)
		if mp.Temperature > 0 {
			cfg.Temperature = &mp.Temperature
		}
		if mp.TopP > 0 {
			cfg.TopP = &mp.TopP
		}
		if mp.TopK > 0 {
			cfg.TopK = &mp.TopK
		}
	}

	contents, err := geminiConvMessages(mctx.Messages())
	if err != nil {
		return nil, nil, err
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("no contents")
	}
	return &cfg, contents, nil
}

func geminiConvUsage(usage *genai.GenerateContentResponseUsageMetadata) Usage {
	if usage == nil {
		return Usage{}
	}
	return Usage{
		PromptTokenCount:        int64(usage.PromptTokenCount),
		CachedContentTokenCount: int64(usage.CachedContentTokenCount),
		GeneratedTokenCount:     int64(usage.CandidatesTokenCount),
	}
}
