// Package scenario loads and validates the scripted beneficiary question,
// answer key, and scoring rubric a trial is run against (spec §3, §6).
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shipeval/shipeval/verdict"
)

// CanonicalFact is one ground-truth assertion in an answer key.
type CanonicalFact struct {
	FactID          string          `json:"fact_id"`
	Statement       string          `json:"statement"`
	Rationale       string          `json:"rationale"`
	Source          string          `json:"source"`
	SeverityIfWrong verdict.Severity `json:"severity_if_wrong"`
}

// AnswerKey is the ground truth a trial's claims are verified against.
type AnswerKey struct {
	CanonicalFacts      []CanonicalFact `json:"canonical_facts"`
	RequiredPoints      []string        `json:"required_points"`
	DisallowedClaims    []string        `json:"disallowed_claims"`
	AcceptableReferrals []string        `json:"acceptable_referrals"`
}

// FactIDs returns the set of every fact_id present in the answer key, used
// to validate that required_points and verdict evidence reference real facts
// (spec invariant 2).
func (a AnswerKey) FactIDs() map[string]bool {
	ids := make(map[string]bool, len(a.CanonicalFacts))
	for _, f := range a.CanonicalFacts {
		ids[f.FactID] = true
	}
	return ids
}

// Tier is one row of a scoring rubric ("score_1".."score_4").
type Tier struct {
	Label         string `json:"label"`
	Criteria      string `json:"criteria"`
	ShipReference string `json:"ship_reference"`
}

// Rubric maps tier id to its definition, plus the rubric-defined fact
// category partitioning (e.g. "MA" -> [F1_MA, F2_MA, ...]) used by Score 1's
// per-category full-coverage rule. Categories is read from the scenario file
// rather than inferred from fact_id suffixes (spec §9 Open Question,
// resolved in favor of explicit configuration).
type Rubric struct {
	Tiers      map[string]Tier     `json:"tiers"`
	Categories map[string][]string `json:"categories,omitempty"`
}

// PlanInformation describes one health plan referenced by the scenario,
// used for Questioner placeholder substitution.
type PlanInformation struct {
	PlanName  string   `json:"plan_name"`
	Type      string   `json:"type"`
	Premiums  float64  `json:"premiums"`
	Copays    map[string]float64 `json:"copays,omitempty"`
	OOPMax    float64  `json:"oop_max"`
	Formulary []string `json:"formulary_drugs,omitempty"`
}

// Persona is the mystery-shopper's scripted identity.
type Persona struct {
	Age                  int    `json:"age"`
	Location             string `json:"location"`
	Coverage             string `json:"coverage"`
	Situation            string `json:"situation"`
	PrimaryCarePhysician string `json:"primary_care_physician,omitempty"`
	ServiceArea          string `json:"service_area,omitempty"`
}

// ScriptedTurn is one line of the mystery shopper's script.
type ScriptedTurn struct {
	TurnID         string   `json:"turn_id"`
	QuestionNumber int      `json:"question_number,omitempty"`
	UserMessage    string   `json:"user_message"`
	ExpectedTopics []string `json:"expected_topics,omitempty"`
}

// Scenario is the full, immutable-for-the-run specification of one mystery
// shopper case.
type Scenario struct {
	ScenarioID      string            `json:"scenario_id"`
	Title           string            `json:"title"`
	EffectiveDate   string            `json:"effective_date"`
	Persona         Persona           `json:"persona"`
	PlanInformation []PlanInformation `json:"plan_information,omitempty"`
	ScriptedTurns   []ScriptedTurn    `json:"scripted_turns"`
	AnswerKey       AnswerKey         `json:"answer_key"`
	ScoringRubric   *Rubric           `json:"scoring_rubric,omitempty"`
	// VariationKnobs carries scenario-specific toggles; only AllowParaphrase
	// is interpreted today, enabling the Questioner's LLM mode (default
	// false: deterministic scripted-turn emission per spec §4.3.1).
	VariationKnobs struct {
		AllowParaphrase bool `json:"allow_paraphrase"`
	} `json:"variation_knobs,omitempty"`
}

// Load reads and validates a scenario file from path.
func Load(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads and validates a scenario document from r.
func Decode(r io.Reader) (Scenario, error) {
	var s Scenario
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("scenario: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate performs the schema/required-field check the orchestrator runs
// at trial start (spec §4.6 step 1): required fields present, and
// required_points ⊆ canonical_facts ids.
func (s Scenario) Validate() error {
	var missing []string
	if s.ScenarioID == "" {
		missing = append(missing, "scenario_id")
	}
	if s.Title == "" {
		missing = append(missing, "title")
	}
	if s.EffectiveDate == "" {
		missing = append(missing, "effective_date")
	}
	if len(s.ScriptedTurns) == 0 {
		missing = append(missing, "scripted_turns")
	}
	if len(missing) > 0 {
		return fmt.Errorf("scenario %s: missing required fields: %s", s.ScenarioID, strings.Join(missing, ", "))
	}

	for i, t := range s.ScriptedTurns {
		if t.TurnID == "" {
			return fmt.Errorf("scenario %s: scripted_turns[%d]: turn_id is required", s.ScenarioID, i)
		}
		if t.UserMessage == "" {
			return fmt.Errorf("scenario %s: scripted_turns[%d]: user_message is required", s.ScenarioID, i)
		}
	}

	factIDs := s.AnswerKey.FactIDs()
	for _, fid := range s.AnswerKey.RequiredPoints {
		if !factIDs[fid] {
			return fmt.Errorf("scenario %s: required_points references unknown fact_id %q", s.ScenarioID, fid)
		}
	}
	for _, f := range s.AnswerKey.CanonicalFacts {
		if f.FactID == "" {
			return fmt.Errorf("scenario %s: canonical_facts contains an entry with no fact_id", s.ScenarioID)
		}
		if err := f.SeverityIfWrong.Validate(); err != nil {
			return fmt.Errorf("scenario %s: canonical_fact %s: %w", s.ScenarioID, f.FactID, err)
		}
	}
	if s.ScoringRubric != nil {
		for cat, ids := range s.ScoringRubric.Categories {
			for _, fid := range ids {
				if !factIDs[fid] {
					return fmt.Errorf("scenario %s: rubric category %q references unknown fact_id %q", s.ScenarioID, cat, fid)
				}
			}
		}
	}
	return nil
}
