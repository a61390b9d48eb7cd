package scenario_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval/scenario"
)

const validScenario = `{
  "scenario_id": "SHIP-Q3",
  "title": "Part D enrollment window",
  "effective_date": "2026-01-01",
  "persona": {"age": 67, "location": "OH", "coverage": "Original Medicare", "situation": "new enrollee"},
  "scripted_turns": [
    {"turn_id": "T1", "user_message": "When can I enroll in Part D?"}
  ],
  "answer_key": {
    "canonical_facts": [
      {"fact_id": "F1_TM", "statement": "IEP spans 7 months.", "rationale": "r", "source": "s", "severity_if_wrong": "high"}
    ],
    "required_points": ["F1_TM"],
    "disallowed_claims": [],
    "acceptable_referrals": ["Medicare.gov"]
  }
}`

func TestDecode_Valid(t *testing.T) {
	s, err := scenario.Decode(strings.NewReader(validScenario))
	require.NoError(t, err)
	assert.Equal(t, "SHIP-Q3", s.ScenarioID)
	assert.Len(t, s.ScriptedTurns, 1)
}

func TestDecode_MissingRequiredFields(t *testing.T) {
	_, err := scenario.Decode(strings.NewReader(`{"scenario_id": "X"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestDecode_RequiredPointReferencesUnknownFact(t *testing.T) {
	bad := strings.Replace(validScenario, `"required_points": ["F1_TM"]`, `"required_points": ["F99_NOPE"]`, 1)
	_, err := scenario.Decode(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "F99_NOPE")
}

func TestAnswerKey_FactIDs(t *testing.T) {
	s, err := scenario.Decode(strings.NewReader(validScenario))
	require.NoError(t, err)
	ids := s.AnswerKey.FactIDs()
	assert.True(t, ids["F1_TM"])
	assert.False(t, ids["F2_TM"])
}
