package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/Hua914255/media/pkg/genx"
)

// ResolvedProvider reports the provider Source will use, or ProviderNone
// when no credentials are configured.
func (l *LLM) ResolvedProvider() string {
	switch l.Provider {
	case ProviderDeepSeek, ProviderOpenAI:
		if l.APIKey == "" {
			return ProviderNone
		}
		return l.Provider
	case ProviderGemini:
		if l.GeminiAPIKey == "" {
			return ProviderNone
		}
		return ProviderGemini
	case ProviderNone:
		return ProviderNone
	}
	switch {
	case l.APIKey != "":
		return ProviderDeepSeek
	case l.GeminiAPIKey != "":
		return ProviderGemini
	}
	return ProviderNone
}

// Source builds the upstream generator. It returns nil without error when
// no provider is configured; callers then run in offline mode.
func (l *LLM) Source(ctx context.Context) (genx.Source, error) {
	params := l.Params
	if params == nil {
		params = genx.DefaultModelParams()
	}
	switch p := l.ResolvedProvider(); p {
	case ProviderDeepSeek, ProviderOpenAI:
		opts := []option.RequestOption{option.WithAPIKey(l.APIKey)}
		if u := l.baseURL(p); u != "" {
			opts = append(opts, option.WithBaseURL(u))
		}
		if l.Verbose {
			opts = append(opts, option.WithHTTPClient(l.httpClient()))
		}
		client := openai.NewClient(opts...)
		return &genx.OpenAISource{
			Client:        &client,
			Model:         l.model(p),
			Params:        params,
			UseSystemRole: true,
			Timeout:       l.Timeout,
			StreamTimeout: l.StreamTimeout,
		}, nil
	case ProviderGemini:
		cc := &genai.ClientConfig{
			APIKey:  l.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if l.Verbose {
			cc.HTTPClient = l.httpClient()
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("config: gemini client: %w", err)
		}
		model := l.GeminiModel
		if model == "" {
			model = DefaultGeminiModel
		}
		return &genx.GeminiSource{
			Client:        client,
			Model:         model,
			Params:        params,
			Timeout:       l.Timeout,
			StreamTimeout: l.StreamTimeout,
		}, nil
	}
	return nil, nil
}

// baseURL returns the endpoint for provider p. Empty means the openai-go
// default, which honours OPENAI_BASE_URL.
func (l *LLM) baseURL(p string) string {
	if l.BaseURL == "" && p == ProviderDeepSeek {
		return DefaultDeepSeekBaseURL
	}
	return l.BaseURL
}

func (l *LLM) model(p string) string {
	switch {
	case l.Model != "":
		return l.Model
	case p == ProviderDeepSeek:
		return DefaultDeepSeekModel
	}
	return DefaultOpenAIModel
}

func (l *LLM) httpClient() *http.Client {
	return &http.Client{Transport: &verboseTransport{base: http.DefaultTransport}}
}

// verboseTransport logs request bodies before sending them.
type verboseTransport struct {
	base http.RoundTripper
}

func (t *verboseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		slog.DebugContext(req.Context(), "llm: request", "url", req.URL.String(), "body", string(body))
	}
	return t.base.RoundTrip(req)
}
