package genx

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
)

var _ Source = (*OpenAISource)(nil)

const (
	oaiFinishReasonStop          string = "stop"
	oaiFinishReasonLength        string = "length"
	oaiFinishReasonContentFilter string = "content_filter"
)

// OpenAISource implements Source on an OpenAI-compatible chat completions
// endpoint. DeepSeek is served by pointing the client at its base URL.
type OpenAISource struct {
	Client *openai.Client `json:"-"`

	Model  string       `json:"model"`
	Params *ModelParams `json:"params,omitzero"`

	// UseSystemRole sends prompts as system messages instead of developer
	// messages. Most third-party endpoints only understand the system role.
	UseSystemRole bool `json:"use_system_role,omitzero"`

	Timeout       time.Duration `json:"timeout,omitzero"`
	StreamTimeout time.Duration `json:"stream_timeout,omitzero"`

	ExtraFields map[string]any `json:"extra_fields,omitzero"`
}

func (s *OpenAISource) Call(ctx context.Context, mctx ModelContext) (string, error) {
	params, err := s.chatCompletion(mctx)
	if err != nil {
		return "", err
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	resp, err := s.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &TransportError{Op: "call", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &TransportError{Op: "call", Err: errors.New("no choices")}
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", Blocked(oaiConvUsage(&resp.Usage), choice.Message.Refusal)
	}
	return strings.TrimSpace(choice.Message.Content), nil
}

func (s *OpenAISource) StreamCall(ctx context.Context, mctx ModelContext) (Stream, error) {
	params, err := s.chatCompletion(mctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, s.StreamTimeout)
	sb := NewStreamBuilder(32)
	sb.OnClose(cancel)
	go func() {
		defer cancel()
		stream := s.Client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()
		if err := (&oaiPuller{}).pull(sb, stream); err != nil {
			sb.Abort(&TransportError{Op: "stream", Err: err})
		}
	}()
	return sb.Stream(), nil
}

func (s *OpenAISource) chatCompletion(mctx ModelContext) (openai.ChatCompletionNewParams, error) {
	msgs, err := s.convModelContext(mctx)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    s.Model,
	}
	mp := mctx.Params()
	if mp == nil {
		mp = s.Params
	}
	if mp != nil {
		if mp.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(mp.MaxTokens))
		}
		if mp.Temperature > 0 {
			params.Temperature = param.NewOpt(float64(mp.Temperature))
		}
		if mp.TopP > 0 {
			params.TopP = param.NewOpt(float64(mp.TopP))
		}
	}
	if len(s.ExtraFields) > 0 {
		params.SetExtraFields(s.ExtraFields)
	}
	return params, nil
}

type oaiPuller struct{}

func (p *oaiPuller) pull(sb *StreamBuilder, stream *ssestream.Stream[openai.ChatCompletionChunk]) error {
	var (
		index    int64
		selected bool
		usage    Usage
	)
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			usage = oaiConvUsage(&chunk.Usage)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		var sel *openai.ChatCompletionChunkChoice
		if !selected {
			selected = true
			index = chunk.Choices[0].Index
			sel = &chunk.Choices[0]
		} else {
			for i := range chunk.Choices {
				if chunk.Choices[i].Index == index {
					sel = &chunk.Choices[i]
					break
				}
			}
			if sel == nil {
				continue
			}
		}
		if s := sel.Delta.Content; s != "" {
			if err := sb.Add(&MessageChunk{
				Role: RoleModel,
				Text: s,
			}); err != nil {
				return err
			}
		}
		switch sel.FinishReason {
		case oaiFinishReasonStop:
			return sb.Done(usage)
		case oaiFinishReasonLength:
			return sb.Truncated(usage)
		case oaiFinishReasonContentFilter:
			return sb.Blocked(usage, sel.Delta.Refusal)
		}
		if s := sel.Delta.Refusal; s != "" {
			return sb.Blocked(usage, s)
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	// Some compatible endpoints close the event stream without a finish
	// reason.
	return sb.Done(usage)
}

func (s *OpenAISource) convModelContext(mctx ModelContext) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := []openai.ChatCompletionMessageParamUnion{}
	for p := range mctx.Prompts() {
		out = append(out, s.convPrompt(p))
	}
	for msg := range mctx.Messages() {
		mp, err := s.convMessage(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, mp)
	}
	return out, nil
}

func (s *OpenAISource) convPrompt(p *Prompt) openai.ChatCompletionMessageParamUnion {
	if s.UseSystemRole {
		mp := openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(p.Text),
				},
			},
		}
		if p.Name != "" {
			mp.OfSystem.Name = param.NewOpt(p.Name)
		}
		return mp
	}
	mp := openai.ChatCompletionMessageParamUnion{
		OfDeveloper: &openai.ChatCompletionDeveloperMessageParam{
			Content: openai.ChatCompletionDeveloperMessageParamContentUnion{
				OfString: param.NewOpt(p.Text),
			},
		},
	}
	if p.Name != "" {
		mp.OfDeveloper.Name = param.NewOpt(p.Name)
	}
	return mp
}

func (s *OpenAISource) convMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	if msg.Content == "" {
		return openai.ChatCompletionMessageParamUnion{}, errors.New("genx: message must contain text")
	}
	switch msg.Role {
	case RoleUser:
		mp := openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: param.NewOpt(msg.Content),
			},
		}
		if msg.Name != "" {
			mp.Name = param.NewOpt(msg.Name)
		}
		return openai.ChatCompletionMessageParamUnion{OfUser: &mp}, nil
	case RoleModel:
		mp := openai.ChatCompletionAssistantMessageParam{
			Content: openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: param.NewOpt(msg.Content),
			},
		}
		if msg.Name != "" {
			mp.Name = param.NewOpt(msg.Name)
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &mp}, nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, errors.New("genx: unexpected message role: " + msg.Role.String())
	}
}

func oaiConvUsage(usage *openai.CompletionUsage) Usage {
	return Usage{
		PromptTokenCount:        usage.PromptTokens,
		CachedContentTokenCount: usage.PromptTokensDetails.CachedTokens,
		GeneratedTokenCount:     usage.CompletionTokens,
	}
}
