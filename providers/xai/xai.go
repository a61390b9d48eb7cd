// Package xai wires openaicompat to xAI's Grok models, which serve an
// OpenAI-compatible chat completions endpoint.
package xai

import (
	"os"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/providers/openaicompat"
)

const baseURL = "https://api.x.ai/v1/chat/completions"

// New constructs an xAI Provider for model. apiKey, if empty, is read from
// the XAI_API_KEY environment variable (spec §6).
func New(model, apiKey string) (*openaicompat.Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("XAI_API_KEY")
	}
	if apiKey == "" {
		return nil, &shipeval.ErrAPIKeyRequired{EnvVar: "XAI_API_KEY"}
	}
	return openaicompat.New("xai", model, apiKey, baseURL, "https://console.x.ai"), nil
}
