// Package agents implements the role-specialized callers the orchestrator
// drives per trial: Questioner, Extractor, and Verifier (spec §4.3). The
// Adjudicator and Scorer are rule-based and live in verdict.Adjudicate and
// scoring.Score respectively — they never call a Provider.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/scenario"
)

// Turn is one emitted user message, ready to send to the target.
type Turn struct {
	TurnID      string `json:"turn_id"`
	UserMessage string `json:"user_message"`
}

// placeholders maps each recognized placeholder spelling to the scenario
// field it resolves from (spec §4.3.1).
type placeholder struct {
	spellings []string
	resolve   func(s scenario.Scenario) (string, bool)
}

var placeholders = []placeholder{
	{
		spellings: []string{"[plan name]", "{plan_name}"},
		resolve: func(s scenario.Scenario) (string, bool) {
			if len(s.PlanInformation) == 0 || s.PlanInformation[0].PlanName == "" {
				return "", false
			}
			return s.PlanInformation[0].PlanName, true
		},
	},
	{
		spellings: []string{"[doctor name]", "{doctor_name}"},
		resolve: func(s scenario.Scenario) (string, bool) {
			if s.Persona.PrimaryCarePhysician == "" {
				return "", false
			}
			return s.Persona.PrimaryCarePhysician, true
		},
	},
	{
		spellings: []string{"[service area]", "{service_area}"},
		resolve: func(s scenario.Scenario) (string, bool) {
			if s.Persona.ServiceArea == "" {
				return "", false
			}
			return s.Persona.ServiceArea, true
		},
	},
}

// Substitute replaces every recognized placeholder in msg with the
// scenario's corresponding field. A placeholder whose field is absent is
// left intact and reported in the returned warnings slice rather than
// treated as an error (spec §4.3.1). Substitute is idempotent: a message
// with no remaining placeholders is returned unchanged on a second call
// (spec §8 "Placeholder substitution is idempotent").
func Substitute(msg string, s scenario.Scenario) (string, []string) {
	var warnings []string
	for _, p := range placeholders {
		value, ok := p.resolve(s)
		for _, spelling := range p.spellings {
			if !strings.Contains(msg, spelling) {
				continue
			}
			if ok {
				msg = strings.ReplaceAll(msg, spelling, value)
			} else {
				warnings = append(warnings, fmt.Sprintf("unresolved placeholder %q: scenario has no value for it", spelling))
			}
		}
	}
	return msg, warnings
}

// questionerSystemPrompt backs LLM paraphrase mode (spec §4.3.1): the model
// restates each scripted turn's substance without dropping anything the
// answer key depends on.
const questionerSystemPrompt = `You are the Questioner agent in a Medicare guidance evaluation pipeline.
You are given the ordered scripted turns a mystery shopper will send to a target model. Paraphrase
each user_message so it reads naturally, while preserving every substantive detail (dates, plan
names, service types, numbers) unchanged. Do not add new requests or drop any. Keep the same
turn_id and the same order.

Respond with only a JSON object matching this schema:
%s`

// QuestionerInput is the task payload sent to the Questioner in LLM
// paraphrase mode: the scripted turns after placeholder substitution.
type QuestionerInput struct {
	ScriptedTurns []Turn `json:"scripted_turns"`
}

// QuestionerOutput is the Questioner's required JSON shape in LLM mode.
type QuestionerOutput struct {
	Turns []Turn `json:"turns"`
}

// Questioner emits the ordered turns a trial sends to the target. It is
// deterministic by default (spec §4.3.1 "deterministic mode"): scripted
// turns are replayed verbatim after placeholder substitution. A Questioner
// never sees or forwards plan details or persona fields beyond the
// substituted text (spec §4.3.1 "Non-injection rule") — the target only
// ever receives msg.UserMessage.
//
// LLM mode (spec §4.3.1: "only if scenario explicitly allows paraphrasing")
// activates when the scenario's VariationKnobs.AllowParaphrase is set and a
// Provider is configured; it paraphrases the substituted turns through the
// Provider rather than replaying them verbatim. Placeholder substitution
// always runs first, in both modes.
type Questioner struct {
	Logger   *slog.Logger
	Provider shipeval.Provider
	Options  shipeval.Options
}

func (q *Questioner) logger() *slog.Logger {
	if q.Logger != nil {
		return q.Logger
	}
	return slog.Default()
}

// Ask produces the ordered turns for s, using LLM paraphrase mode when the
// scenario allows it and a Provider is configured, and the deterministic
// scripted-turn replay otherwise.
func (q *Questioner) Ask(ctx context.Context, s scenario.Scenario) ([]Turn, error) {
	scripted := q.substituted(s)
	if !s.VariationKnobs.AllowParaphrase || q.Provider == nil {
		return scripted, nil
	}

	input, err := json.Marshal(QuestionerInput{ScriptedTurns: scripted})
	if err != nil {
		return nil, fmt.Errorf("agents: questioner: marshal input: %w", err)
	}
	msgs := shipeval.Messages{
		{Role: shipeval.System, Content: fmt.Sprintf(questionerSystemPrompt, schemaFor(QuestionerOutput{}))},
		{Role: shipeval.User, Content: string(input)},
	}

	var out QuestionerOutput
	if _, err := generateJSON(ctx, q.Provider, msgs, q.Options, &out); err != nil {
		return nil, fmt.Errorf("agents: questioner: %w", err)
	}
	if len(out.Turns) != len(scripted) {
		return nil, fmt.Errorf("agents: questioner: paraphrase returned %d turns, want %d", len(out.Turns), len(scripted))
	}
	for i, t := range out.Turns {
		if t.TurnID != scripted[i].TurnID {
			return nil, fmt.Errorf("agents: questioner: paraphrase turn %d has turn_id %q, want %q", i, t.TurnID, scripted[i].TurnID)
		}
	}
	return out.Turns, nil
}

// Emit produces the deterministic scripted-turn replay for s, ignoring
// VariationKnobs.AllowParaphrase. Callers that want LLM paraphrase mode
// applied when the scenario allows it should call Ask instead.
func (q *Questioner) Emit(s scenario.Scenario) []Turn {
	return q.substituted(s)
}

func (q *Questioner) substituted(s scenario.Scenario) []Turn {
	turns := make([]Turn, 0, len(s.ScriptedTurns))
	for _, st := range s.ScriptedTurns {
		msg, warnings := Substitute(st.UserMessage, s)
		for _, w := range warnings {
			q.logger().Warn("agents: questioner placeholder warning", "turn_id", st.TurnID, "warning", w)
		}
		turns = append(turns, Turn{TurnID: st.TurnID, UserMessage: msg})
	}
	return turns
}
