// Package openai implements a Provider backed by the OpenAI Chat
// Completions API, modeled on the wire format in maruel/genai's
// providers/openaichat client but trimmed to the text-only conversation
// shape shipeval's agents and targets need (no tools, no streaming, no
// multi-modal content).
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/base"
)

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"

// Provider calls the OpenAI Chat Completions endpoint.
type Provider struct {
	base    base.ProviderBase
	apiKey  string
	baseURL string
}

// New constructs an OpenAI Provider for model. apiKey, if empty, is read
// from the OPENAI_API_KEY environment variable (spec §6).
func New(model, apiKey string) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, &shipeval.ErrAPIKeyRequired{EnvVar: "OPENAI_API_KEY"}
	}
	return &Provider{
		base: base.ProviderBase{
			Client:    http.Client{Transport: base.DefaultTransport},
			Name:      "openai",
			Model:     model,
			APIKeyURL: "https://platform.openai.com/api-keys",
		},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}, nil
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
	Seed        int64         `json:"seed,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
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
		Seed:        opts.Seed,
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

	tokens := shipeval.Usage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
		Total:      resp.Usage.TotalTokens,
	}
	base.RecordCall(ctx, p.Name(), resp.Model, latencyMS, tokens)
	return shipeval.ModelResponse{
		Content:         resp.Choices[0].Message.Content,
		ModelIdentifier: resp.Model,
		Tokens:          tokens,
		LatencyMS:       latencyMS,
		SeedEcho:        opts.Seed,
	}, nil
}

var _ shipeval.Provider = (*Provider)(nil)
