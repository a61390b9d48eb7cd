// Package openaicompat implements a minimal client for "OpenAI-compatible"
// chat completion endpoints, modeled on maruel/genai's
// providers/openaicompatible client: the same request/response shape as
// OpenAI's Chat Completions API but with a caller-supplied base URL and
// bearer token, used to back xai and openrouter without duplicating the
// wire format twice.
package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/base"
)

// Provider calls an OpenAI-compatible chat completions endpoint.
type Provider struct {
	base    base.ProviderBase
	apiKey  string
	baseURL string
}

// New constructs an openaicompat Provider. providerName identifies the
// underlying platform in error messages (e.g. "xai", "openrouter");
// baseURL is the full chat/completions endpoint.
func New(providerName, model, apiKey, baseURL, apiKeyURL string) *Provider {
	return &Provider{
		base: base.ProviderBase{
			Client:    http.Client{Transport: base.DefaultTransport},
			Name:      providerName,
			Model:     model,
			APIKeyURL: apiKeyURL,
		},
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// Name implements shipeval.Provider.
func (p *Provider) Name() string { return p.base.Name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int64         `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Generate implements shipeval.Provider.
func (p *Provider) Generate(ctx context.Context, msgs shipeval.Messages, opts shipeval.Options) (shipeval.ModelResponse, error) {
	if err := msgs.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}
	if err := opts.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}

	req := chatRequest{
		Model:       p.base.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.Stop,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	start := time.Now()
	_, err := p.base.Do(ctx, "POST", p.baseURL, headers, &req, &resp)
	latencyMS := time.Since(start).Milliseconds()
	if err != nil {
		return shipeval.ModelResponse{}, err
	}
	if len(resp.Choices) != 1 {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: fmt.Errorf("expected 1 choice, got %d", len(resp.Choices))}
	}

	model := resp.Model
	if model == "" {
		model = p.base.Model
	}
	tokens := shipeval.Usage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
		Total:      resp.Usage.TotalTokens,
	}
	base.RecordCall(ctx, p.Name(), model, latencyMS, tokens)
	return shipeval.ModelResponse{
		Content:         resp.Choices[0].Message.Content,
		ModelIdentifier: model + " [seed-unsupported]",
		Tokens:          tokens,
		LatencyMS:       latencyMS,
	}, nil
}

var _ shipeval.Provider = (*Provider)(nil)
