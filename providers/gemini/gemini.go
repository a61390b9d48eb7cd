// Package gemini implements a Provider backed by Google's Gemini
// generateContent API, modeled on maruel/genai's providers/gemini client:
// API key as a query parameter, systemInstruction as a top-level field,
// parts/candidates response shape, trimmed to text-only.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/base"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

// Provider calls the Gemini generateContent endpoint.
type Provider struct {
	base    base.ProviderBase
	apiKey  string
	baseURL string
}

// New constructs a Gemini Provider for model. apiKey, if empty, is read
// from the GOOGLE_API_KEY environment variable (spec §6).
func New(model, apiKey string) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, &shipeval.ErrAPIKeyRequired{EnvVar: "GOOGLE_API_KEY"}
	}
	return &Provider{
		base: base.ProviderBase{
			Client:    http.Client{Transport: base.DefaultTransport},
			Name:      "gemini",
			Model:     model,
			APIKeyURL: "https://aistudio.google.com/apikey",
		},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}, nil
}

// Name implements shipeval.Provider.
func (p *Provider) Name() string { return p.base.Name }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	MaxOutputTokens int64    `json:"maxOutputTokens,omitempty"`
	Seed            int64    `json:"seed,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type chatRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type chatResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion  string `json:"modelVersion"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate implements shipeval.Provider.
func (p *Provider) Generate(ctx context.Context, msgs shipeval.Messages, opts shipeval.Options) (shipeval.ModelResponse, error) {
	if err := msgs.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}
	if err := opts.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}

	system, rest := base.SplitSystem(msgs)
	req := chatRequest{
		GenerationConfig: generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
			Seed:            opts.Seed,
			StopSequences:   opts.Stop,
		},
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	for _, m := range rest {
		role := "user"
		if m.Role == shipeval.Assistant {
			role = "model"
		}
		req.Contents = append(req.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	endpoint := p.baseURL + url.PathEscape(p.base.Model) + ":generateContent?key=" + url.QueryEscape(p.apiKey)
	var resp chatResponse
	start := time.Now()
	_, err := p.base.Do(ctx, "POST", endpoint, nil, &req, &resp)
	latencyMS := time.Since(start).Milliseconds()
	if err != nil {
		return shipeval.ModelResponse{}, err
	}
	if len(resp.Candidates) != 1 {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: fmt.Errorf("expected 1 candidate, got %d", len(resp.Candidates))}
	}

	var text string
	for _, pt := range resp.Candidates[0].Content.Parts {
		text += pt.Text
	}
	if text == "" {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: fmt.Errorf("response contained no text parts")}
	}

	tokens := shipeval.Usage{
		Prompt:     resp.UsageMetadata.PromptTokenCount,
		Completion: resp.UsageMetadata.CandidatesTokenCount,
		Total:      resp.UsageMetadata.TotalTokenCount,
	}
	base.RecordCall(ctx, p.Name(), resp.ModelVersion, latencyMS, tokens)
	return shipeval.ModelResponse{
		Content:         text,
		ModelIdentifier: resp.ModelVersion,
		Tokens:          tokens,
		LatencyMS:       latencyMS,
		SeedEcho:        opts.Seed,
	}, nil
}

var _ shipeval.Provider = (*Provider)(nil)
