package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/jsoncoerce"
)

// reflector mirrors maruel/genai's ToolDef.GetInputSchema reflector
// configuration: anonymous (no $id, which would confuse the model) and
// inlined (no $ref indirection, so the whole shape is visible in one block).
var reflector = &jsonschema.Reflector{Anonymous: true, DoNotReference: true}

// schemaFor reflects v's type into a JSON Schema fragment suitable for
// embedding in a system prompt, so the model sees the exact shape its JSON
// output must conform to.
func schemaFor(v any) string {
	schema := reflector.Reflect(v)
	b, err := json.Marshal(schema)
	if err != nil {
		// Reflection of a concrete Go struct cannot fail; a failure here is
		// a programming error in the caller's output type, not a runtime
		// condition to recover from.
		panic(fmt.Sprintf("agents: reflect schema for %T: %v", v, err))
	}
	return string(b)
}

// maxRepairAttempts bounds the one-retry-with-feedback loop spec §4.2 and
// §7 describe for JSON coercion / schema validation failures: the initial
// attempt plus one repair attempt.
const maxRepairAttempts = 2

// generateJSON calls p.Generate with msgs, then decodes the first JSON
// object in the response into out via jsoncoerce. On decode failure, it
// appends the raw response and a correction request to msgs and retries
// once, matching the "one retry with the same prompt" policy in spec §7
// ("Agent protocol" errors) and the repair-prompt pattern in the teacher
// pack's llm.go (buildRepairPrompt).
func generateJSON(ctx context.Context, p shipeval.Provider, msgs shipeval.Messages, opts shipeval.Options, out any) (shipeval.ModelResponse, error) {
	var lastResp shipeval.ModelResponse
	var lastErr error
	for attempt := 0; attempt < maxRepairAttempts; attempt++ {
		resp, err := p.Generate(ctx, msgs, opts)
		if err != nil {
			return resp, err
		}
		lastResp = resp
		if err := jsoncoerce.Decode(resp.Content, out); err != nil {
			lastErr = err
			msgs = append(msgs,
				shipeval.Message{Role: shipeval.Assistant, Content: resp.Content},
				shipeval.Message{Role: shipeval.User, Content: fmt.Sprintf(
					"That response was not valid JSON matching the required schema. Error: %v\n"+
						"Respond again with only the corrected JSON object.", err)},
			)
			continue
		}
		return resp, nil
	}
	return lastResp, fmt.Errorf("agents: %d attempts exhausted decoding JSON response: %w", maxRepairAttempts, lastErr)
}
