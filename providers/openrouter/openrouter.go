// Package openrouter wires openaicompat to OpenRouter, which serves an
// OpenAI-compatible chat completions endpoint fronting many upstream
// models (spec §6: target_spec "openrouter:<model>").
package openrouter

import (
	"os"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/providers/openaicompat"
)

const baseURL = "https://openrouter.ai/api/v1/chat/completions"

// New constructs an OpenRouter Provider for model. apiKey, if empty, is
// read from the OPENROUTER_API_KEY environment variable (spec §6).
func New(model, apiKey string) (*openaicompat.Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, &shipeval.ErrAPIKeyRequired{EnvVar: "OPENROUTER_API_KEY"}
	}
	return openaicompat.New("openrouter", model, apiKey, baseURL, "https://openrouter.ai/keys"), nil
}
