// Package trial defines the top-level TrialResult artifact and its nested
// records (spec §3).
package trial

import (
	"time"

	"github.com/google/uuid"

	"github.com/shipeval/shipeval/claim"
	"github.com/shipeval/shipeval/score"
	"github.com/shipeval/shipeval/verdict"
)

// NewID mints a new trial_id.
func NewID() string {
	return uuid.New().String()
}

// Target identifies the model under evaluation.
type Target struct {
	ModelName    string `json:"model_name"`
	Provider     string `json:"provider"`
	ModelVersion string `json:"model_version"`
}

// Agent identifies the model backing the Questioner/Extractor/Verifier
// agents for this trial.
type Agent struct {
	ModelName string `json:"model_name"`
	Provider  string `json:"provider"`
}

// Turn is one message in the persisted conversation transcript.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Flags are the deterministic, response-derived booleans computed at the
// end of a trial (spec §4.6 step 9).
type Flags struct {
	Refusal                     bool `json:"refusal"`
	HallucinatedSpecifics       bool `json:"hallucinated_specifics"`
	AskedClarifyingQuestions    bool `json:"asked_clarifying_questions"`
	ReferencedExternalResources bool `json:"referenced_external_resources"`
}

// Metadata carries run-reproducibility bookkeeping.
type Metadata struct {
	Seed               int64     `json:"seed"`
	JudgeCount         int       `json:"judge_count"`
	DisagreementPct    float64   `json:"disagreement_pct"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	// Aborted is set when the trial failed before a ScoreResult could be
	// produced (spec §4.6 failure semantics, §5 cancellation).
	Aborted bool `json:"aborted"`
	// Error describes why an aborted trial has no final_scores. Empty for
	// a trial that completed normally.
	Error string `json:"error,omitempty"`
}

// Result is the top-level artifact persisted once per trial, one line of
// results.jsonl (spec §3, §4.5).
//
// FinalScores is nil when the trial was aborted (spec §4.6: "abort the
// trial, write a partial TrialResult with final_scores = null").
type Result struct {
	// Timestamp is the trial's start time. spec §6 names it the first
	// results.jsonl field external reporting collaborators key on; renaming
	// or removing it is a breaking change, so it's kept distinct from
	// Metadata.StartedAt even though the two always agree.
	Timestamp           time.Time                    `json:"timestamp"`
	TrialID             string                       `json:"trial_id"`
	ScenarioID          string                       `json:"scenario_id"`
	Target              Target                       `json:"target"`
	Agent               Agent                        `json:"agent"`
	Conversation        []Turn                       `json:"conversation"`
	Claims              []claim.Claim                `json:"claims"`
	Verdicts            map[string][]verdict.Verdict `json:"verdicts"`
	AdjudicatedVerdicts []verdict.AdjudicatedVerdict  `json:"adjudicated_verdicts"`
	FinalScores         *score.Result                `json:"final_scores"`
	Flags               Flags                        `json:"flags"`
	Metadata            Metadata                     `json:"metadata"`
}
