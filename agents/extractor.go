package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/claim"
)

// extractorSystemPrompt is the Extractor's fixed system prompt. Neither its
// text nor a hash of it is recorded in run metadata.
const extractorSystemPrompt = `You are the Extractor agent in a Medicare guidance evaluation pipeline.
Given a target model's response text, decompose it into atomic claims.

Rules:
- Split compound assertions into separate atomic claims.
- Mark hedged statements ("may", "might", "in general", "typically") with is_hedged = true.
- Mark claims that direct the reader elsewhere ("contact Medicare.gov", "call 1-800-MEDICARE") with type = "referral".
- quote_spans must be character offsets into the exact input text you were given.
- Preserve the original wording; do not paraphrase or summarize.

Respond with only a JSON object matching this schema:
%s`

// ExtractorInput is the task payload sent to the Extractor (spec §4.3.2).
type ExtractorInput struct {
	ResponseText string `json:"response_text" jsonschema_description:"the target model's verbatim response"`
}

// ExtractorOutput is the Extractor's required JSON shape.
type ExtractorOutput struct {
	Claims []claim.Claim `json:"claims"`
}

// Extractor decomposes a target response into claim.Claim records.
type Extractor struct {
	Provider shipeval.Provider
	Options  shipeval.Options
}

// Extract runs the Extractor agent against responseText and validates the
// resulting claims' quote_spans against its length (spec invariant: quote
// spans reference ranges inside the input text).
func (e *Extractor) Extract(ctx context.Context, responseText string) ([]claim.Claim, error) {
	input, err := json.Marshal(ExtractorInput{ResponseText: responseText})
	if err != nil {
		return nil, fmt.Errorf("agents: extractor: marshal input: %w", err)
	}
	msgs := shipeval.Messages{
		{Role: shipeval.System, Content: fmt.Sprintf(extractorSystemPrompt, schemaFor(ExtractorOutput{}))},
		{Role: shipeval.User, Content: string(input)},
	}

	var out ExtractorOutput
	if _, err := generateJSON(ctx, e.Provider, msgs, e.Options, &out); err != nil {
		return nil, fmt.Errorf("agents: extractor: %w", err)
	}

	for i, c := range out.Claims {
		if err := c.Validate(len(responseText)); err != nil {
			return nil, fmt.Errorf("agents: extractor: claim %d: %w", i, err)
		}
	}
	return out.Claims, nil
}
