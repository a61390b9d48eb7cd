// Package anthropic implements a Provider backed by the Anthropic Messages
// API, modeled on maruel/genai's providers/anthropic client: system prompt
// as a top-level field (via base.SplitSystem), x-api-key/anthropic-version
// headers, and the content-block response shape, trimmed to text-only.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/base"
)

const defaultBaseURL = "https://api.anthropic.com/v1/messages"
const anthropicVersion = "2023-06-01"

// Provider calls the Anthropic Messages endpoint.
type Provider struct {
	base    base.ProviderBase
	apiKey  string
	baseURL string
}

// New constructs an Anthropic Provider for model. apiKey, if empty, is read
// from the ANTHROPIC_API_KEY environment variable (spec §6).
func New(model, apiKey string) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, &shipeval.ErrAPIKeyRequired{EnvVar: "ANTHROPIC_API_KEY"}
	}
	return &Provider{
		base: base.ProviderBase{
			Client:    http.Client{Transport: base.DefaultTransport},
			Name:      "anthropic",
			Model:     model,
			APIKeyURL: "https://console.anthropic.com/settings/keys",
		},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}, nil
}

// Name implements shipeval.Provider.
func (p *Provider) Name() string { return p.base.Name }

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int64     `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type chatResponse struct {
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// defaultMaxTokens is supplied when the caller leaves Options.MaxTokens at
// zero; Anthropic's Messages API requires max_tokens on every request,
// unlike OpenAI's chat completions.
const defaultMaxTokens = 4096

// Generate implements shipeval.Provider.
func (p *Provider) Generate(ctx context.Context, msgs shipeval.Messages, opts shipeval.Options) (shipeval.ModelResponse, error) {
	if err := msgs.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}
	if err := opts.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}

	system, rest := base.SplitSystem(msgs)
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	req := chatRequest{
		Model:         p.base.Model,
		System:        system,
		MaxTokens:     maxTokens,
		Temperature:   opts.Temperature,
		StopSequences: opts.Stop,
	}
	for _, m := range rest {
		req.Messages = append(req.Messages, message{
			Role:    string(m.Role),
			Content: []contentBlock{{Type: "text", Text: m.Content}},
		})
	}

	var resp chatResponse
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	start := time.Now()
	_, err := p.base.Do(ctx, "POST", p.baseURL, headers, &req, &resp)
	latencyMS := time.Since(start).Milliseconds()
	if err != nil {
		return shipeval.ModelResponse{}, err
	}

	var text string
	for _, b := range resp.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}
	if text == "" {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: fmt.Errorf("response contained no text content block")}
	}

	tokens := shipeval.Usage{
		Prompt:     resp.Usage.InputTokens,
		Completion: resp.Usage.OutputTokens,
		Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	base.RecordCall(ctx, p.Name(), resp.Model, latencyMS, tokens)
	return shipeval.ModelResponse{
		Content:         text,
		ModelIdentifier: resp.Model + " [seed-unsupported]",
		Tokens:          tokens,
		LatencyMS:       latencyMS,
	}, nil
}

var _ shipeval.Provider = (*Provider)(nil)
