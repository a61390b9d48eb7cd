package agents_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/agents"
	"github.com/shipeval/shipeval/scenario"
)

func twoTurnScenario() scenario.Scenario {
	return scenario.Scenario{
		ScenarioID: "S-QUESTIONER",
		Persona:    scenario.Persona{PrimaryCarePhysician: "Dr. Lee"},
		ScriptedTurns: []scenario.ScriptedTurn{
			{TurnID: "T1", UserMessage: "Is [doctor name] in network?"},
			{TurnID: "T2", UserMessage: "What about my Part D drugs?"},
		},
	}
}

// echoProvider returns a QuestionerOutput whose turns are the scripted
// turns unchanged, so tests can assert Ask's shape-validation without
// depending on a real paraphrase.
type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }
func (echoProvider) Generate(ctx context.Context, msgs shipeval.Messages, opts shipeval.Options) (shipeval.ModelResponse, error) {
	var in agents.QuestionerInput
	payload := msgs[len(msgs)-1].Content
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return shipeval.ModelResponse{}, err
	}
	out := agents.QuestionerOutput{Turns: in.ScriptedTurns}
	b, err := json.Marshal(out)
	if err != nil {
		return shipeval.ModelResponse{}, err
	}
	return shipeval.ModelResponse{Content: string(b)}, nil
}

func TestQuestioner_Emit_DeterministicSubstitution(t *testing.T) {
	q := &agents.Questioner{}
	turns := q.Emit(twoTurnScenario())
	require.Len(t, turns, 2)
	assert.Equal(t, "Is Dr. Lee in network?", turns[0].UserMessage)
	assert.Equal(t, "What about my Part D drugs?", turns[1].UserMessage)
}

func TestQuestioner_Ask_DeterministicWhenParaphraseNotAllowed(t *testing.T) {
	q := &agents.Questioner{Provider: echoProvider{}}
	turns, err := q.Ask(context.Background(), twoTurnScenario())
	require.NoError(t, err)
	assert.Equal(t, "Is Dr. Lee in network?", turns[0].UserMessage)
}

func TestQuestioner_Ask_LLMModeWhenParaphraseAllowed(t *testing.T) {
	s := twoTurnScenario()
	s.VariationKnobs.AllowParaphrase = true
	q := &agents.Questioner{Provider: echoProvider{}}

	turns, err := q.Ask(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "T1", turns[0].TurnID)
	assert.Equal(t, "Is Dr. Lee in network?", turns[0].UserMessage)
	assert.Equal(t, "T2", turns[1].TurnID)
}

func TestQuestioner_Ask_NoProviderFallsBackToDeterministic(t *testing.T) {
	s := twoTurnScenario()
	s.VariationKnobs.AllowParaphrase = true
	q := &agents.Questioner{}

	turns, err := q.Ask(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "Is Dr. Lee in network?", turns[0].UserMessage)
}
