// Package providers resolves a "provider:model" target_spec string (spec
// §6) into a concrete shipeval.Provider, modeled on maruel/genai's own
// providers.go registry of provider constructors.
package providers

import (
	"fmt"
	"strings"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/providers/anthropic"
	"github.com/shipeval/shipeval/providers/fake"
	"github.com/shipeval/shipeval/providers/gemini"
	"github.com/shipeval/shipeval/providers/mockagent"
	"github.com/shipeval/shipeval/providers/openai"
	"github.com/shipeval/shipeval/providers/openrouter"
	"github.com/shipeval/shipeval/providers/xai"
)

// New parses spec as "provider:model" and constructs the matching
// shipeval.Provider. "fake:<profile>" and "mockagent" are special cased:
// they need no API key and exist for the test scenarios in spec §8.
func New(spec string) (shipeval.Provider, error) {
	name, model, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("providers: target_spec %q must be \"provider:model\"", spec)
	}

	switch name {
	case "fake":
		return fake.New(model), nil
	case "mockagent":
		return mockagent.New(), nil
	case "openai":
		return openai.New(model, "")
	case "anthropic":
		return anthropic.New(model, "")
	case "gemini":
		return gemini.New(model, "")
	case "xai":
		return xai.New(model, "")
	case "openrouter":
		return openrouter.New(model, "")
	default:
		return nil, fmt.Errorf("providers: unknown provider %q", name)
	}
}
