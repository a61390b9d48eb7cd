package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/orchestrator"
	"github.com/shipeval/shipeval/providers/fake"
	"github.com/shipeval/shipeval/providers/mockagent"
	"github.com/shipeval/shipeval/scenario"
	"github.com/shipeval/shipeval/store"
	"github.com/shipeval/shipeval/trial"
	"github.com/shipeval/shipeval/verdict"
)

// twoFactScenario builds a minimal scenario whose two canonical facts are
// phrased as standalone sentences, so a target response that repeats them
// verbatim is unambiguously matched by the mock agent's word-overlap
// heuristic (spec scenario harness, mirroring the fake package's
// built-in T1-T4 profiles).
func twoFactScenario() scenario.Scenario {
	return scenario.Scenario{
		ScenarioID:    "S-TEST",
		Title:         "wellness visit and Part D coverage",
		EffectiveDate: "2026-01-01",
		ScriptedTurns: []scenario.ScriptedTurn{
			{TurnID: "T1", UserMessage: "Is my annual wellness visit covered, and what about my Part D drugs?"},
		},
		AnswerKey: scenario.AnswerKey{
			CanonicalFacts: []scenario.CanonicalFact{
				{FactID: "F1", Statement: "Your annual wellness visit is fully covered under Medicare Part B.", SeverityIfWrong: verdict.SeverityMedium},
				{FactID: "F2", Statement: "Part D covers your formulary drugs at the listed copay tiers.", SeverityIfWrong: verdict.SeverityHigh},
			},
			RequiredPoints: []string{"F1", "F2"},
		},
		ScoringRubric: &scenario.Rubric{},
	}
}

func openTestRun(t *testing.T) (*store.Run, string) {
	t.Helper()
	outputDir := t.TempDir()
	run, err := store.Open(outputDir, "test-run", store.RunMetadata{ScenarioID: "S-TEST", JudgeCount: 1})
	require.NoError(t, err)
	return run, outputDir
}

// TestRunTrial_AccurateAndComplete covers spec scenario T1: a target
// response that repeats both canonical facts verbatim is fully covered,
// uncontradicted, and scores tier 1.
func TestRunTrial_AccurateAndComplete(t *testing.T) {
	s := twoFactScenario()
	target := &fake.Provider{Response: "Your annual wellness visit is fully covered under Medicare Part B. " +
		"Part D covers your formulary drugs at the listed copay tiers."}
	agent := mockagent.New()
	run, _ := openTestRun(t)

	result, err := orchestrator.RunTrial(context.Background(), s, target, agent, run, orchestrator.Options{Judges: 3},
		trial.Target{ModelName: "test", Provider: "fake"}, trial.Agent{ModelName: "default", Provider: "mockagent"})
	require.NoError(t, err)

	require.False(t, result.Metadata.Aborted, result.Metadata.Error)
	require.NotNil(t, result.FinalScores)
	require.NotNil(t, result.FinalScores.RubricScore)
	assert.Equal(t, 1, *result.FinalScores.RubricScore)
	assert.Equal(t, 1.0, result.FinalScores.CompletenessPercentage)
	assert.Empty(t, result.FinalScores.MissingRequiredPoints)
	assert.False(t, result.Flags.Refusal)
	assert.Len(t, result.Verdicts, 3)
}

// TestRunTrial_RefusalFlagsLowCompleteness covers spec scenario T3: a
// refusal-shaped response matches the refusal text patterns and covers none
// of the required facts, so the refusal flag is set.
func TestRunTrial_RefusalFlagsLowCompleteness(t *testing.T) {
	s := twoFactScenario()
	target := &fake.Provider{Response: "I cannot provide specific guidance on this. Please consult a professional for your individual situation."}
	agent := mockagent.New()
	run, _ := openTestRun(t)

	result, err := orchestrator.RunTrial(context.Background(), s, target, agent, run, orchestrator.Options{Judges: 1},
		trial.Target{ModelName: "test", Provider: "fake"}, trial.Agent{ModelName: "default", Provider: "mockagent"})
	require.NoError(t, err)

	require.False(t, result.Metadata.Aborted, result.Metadata.Error)
	assert.True(t, result.Flags.Refusal)
	assert.Less(t, result.FinalScores.CompletenessPercentage, 0.20)
}

// erroringProvider always fails, used to exercise the target-call abort path
// (spec §4.6 "Failure semantics").
type erroringProvider struct{}

func (erroringProvider) Name() string { return "erroring" }
func (erroringProvider) Generate(ctx context.Context, msgs shipeval.Messages, opts shipeval.Options) (shipeval.ModelResponse, error) {
	return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: "erroring", Err: context.DeadlineExceeded}
}

// TestRunTrial_TargetFailureAbortsWithPartialResult covers a target call
// failure: RunTrial does not return a Go error, it persists a partial,
// Aborted result (spec §4.6 "Failure semantics" distinguishes recoverable
// trial failures from true orchestrator errors).
func TestRunTrial_TargetFailureAbortsWithPartialResult(t *testing.T) {
	s := twoFactScenario()
	agent := mockagent.New()
	run, outputDir := openTestRun(t)

	result, err := orchestrator.RunTrial(context.Background(), s, erroringProvider{}, agent, run, orchestrator.Options{Judges: 1},
		trial.Target{ModelName: "test", Provider: "erroring"}, trial.Agent{ModelName: "default", Provider: "mockagent"})
	require.NoError(t, err)

	assert.True(t, result.Metadata.Aborted)
	assert.Contains(t, result.Metadata.Error, "target")
	assert.Nil(t, result.FinalScores)

	results, err := store.ReadResults(outputDir, run.RunID, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Metadata.Aborted)
}
