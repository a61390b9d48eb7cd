// Package scoring implements the SHIP four-tier Scoring Engine: a pure,
// deterministic rule engine over adjudicated verdicts, the answer key, and
// the scenario's rubric (spec §4.4).
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shipeval/shipeval/scenario"
	"github.com/shipeval/shipeval/score"
	"github.com/shipeval/shipeval/verdict"
)

// tierNotSubstantive and friends name the rubric tier ids spec §4.4 refers
// to by number, kept as constants so the strict-order application below
// reads like the rubric it implements.
const (
	tierIncorrect                = 4
	tierAccurateComplete         = 1
	tierNotSubstantive           = 3
	tierSubstantiveButIncomplete = 2
)

// Score applies spec §4.4's computation and strict-order rubric application
// to produce a score.Result. refusal is the orchestrator's precomputed
// refusal flag (spec §4.6 step 9), since the refusal pattern match happens
// against the raw response text, which this package doesn't see.
func Score(adjudicated []verdict.AdjudicatedVerdict, key scenario.AnswerKey, rubric *scenario.Rubric, refusal bool) score.Result {
	covered := coveredFacts(adjudicated)

	missing := missingRequiredPoints(key.RequiredPoints, covered)
	completeness := score.SafeRatio(len(key.RequiredPoints)-len(missing), len(key.RequiredPoints))

	verifiableCount, supportedCount := 0, 0
	var contradictions []verdict.AdjudicatedVerdict
	for _, a := range adjudicated {
		switch a.Label {
		case verdict.Supported:
			verifiableCount++
			supportedCount++
		case verdict.Contradicted:
			verifiableCount++
			contradictions = append(contradictions, a)
		case verdict.PartiallyCorrect:
			verifiableCount++
		}
	}
	accuracy := score.SafeRatio(supportedCount, verifiableCount)

	hasCriticalError := hasCritical(contradictions)

	result := score.Result{
		CompletenessPercentage: completeness,
		AccuracyPercentage:     accuracy,
		MissingRequiredPoints:  missing,
	}
	if len(contradictions) > 0 {
		result.ErrorCategories = []string{"factual_contradiction"}
	}
	for _, c := range contradictions {
		if c.Severity == verdict.SeverityHigh || c.Severity == verdict.SeverityCritical {
			result.HarmCategories = append(result.HarmCategories, string(c.Severity))
		}
	}

	if rubric == nil {
		result.Justification = fmt.Sprintf("no scoring_rubric supplied; completeness=%.2f accuracy=%.2f missing=%v",
			completeness, accuracy, missing)
		return result
	}

	tier, label := applyRubric(hasCriticalError, len(contradictions) > 0, completeness, refusal, missing, covered, rubric)
	t := tier
	l := label
	result.RubricScore = &t
	result.RubricLabel = &l
	result.Justification = justify(tier, label, completeness, missing)
	return result
}

// Completeness computes spec §4.4 step 3's completeness_percentage in
// isolation from the rest of Score's output. The orchestrator calls this to
// learn completeness before the refusal flag is known, since Score takes
// refusal as an input rather than deriving it (spec §4.6 step 9's refusal
// rule depends on completeness_percentage, creating an ordering the
// Scoring Engine's pure, refusal-aware Score can't resolve on its own).
func Completeness(adjudicated []verdict.AdjudicatedVerdict, requiredPoints []string) float64 {
	covered := coveredFacts(adjudicated)
	missing := missingRequiredPoints(requiredPoints, covered)
	return score.SafeRatio(len(requiredPoints)-len(missing), len(requiredPoints))
}

// coveredFacts is the union of evidence fact_ids across SUPPORTED
// adjudicated verdicts (spec §4.4 step 1).
func coveredFacts(adjudicated []verdict.AdjudicatedVerdict) map[string]bool {
	covered := make(map[string]bool)
	for _, a := range adjudicated {
		if a.Label != verdict.Supported {
			continue
		}
		for _, fid := range a.Evidence {
			covered[fid] = true
		}
	}
	return covered
}

// missingRequiredPoints is required_points \ covered_facts (spec §4.4 step
// 2), returned sorted for deterministic JSON output (spec §4.4 byte-for-byte
// determinism requirement).
func missingRequiredPoints(required []string, covered map[string]bool) []string {
	var missing []string
	for _, fid := range required {
		if !covered[fid] {
			missing = append(missing, fid)
		}
	}
	sort.Strings(missing)
	return missing
}

// hasCritical implements spec §4.4 step 5: a high/critical-severity
// contradiction, or at least two contradictions of any severity.
func hasCritical(contradictions []verdict.AdjudicatedVerdict) bool {
	if len(contradictions) >= 2 {
		return true
	}
	for _, c := range contradictions {
		if c.Severity == verdict.SeverityHigh || c.Severity == verdict.SeverityCritical {
			return true
		}
	}
	return false
}

// noCategoryCoverageCompletenessThreshold is the completeness cutoff below
// which a response with zero rubric-category coverage is scored Not
// Substantive rather than Substantive but Incomplete (spec §4.4 Score 3).
const noCategoryCoverageCompletenessThreshold = 0.30

// applyRubric implements spec §4.4's strict-order tier application: Score 4
// (incorrect), Score 1 (accurate & complete), Score 3 (not substantive),
// else Score 2.
func applyRubric(hasCriticalError, hasAnyContradiction bool, completeness float64, refusal bool, missing []string, covered map[string]bool, rubric *scenario.Rubric) (int, string) {
	if hasCriticalError {
		return tierIncorrect, tierLabel(rubric, tierIncorrect, "Incorrect")
	}
	if !hasAnyContradiction && fullCoverage(missing, covered, rubric) {
		return tierAccurateComplete, tierLabel(rubric, tierAccurateComplete, "Accurate & Complete")
	}
	if refusal || (completeness < noCategoryCoverageCompletenessThreshold && noCategoryCovered(covered, rubric)) {
		return tierNotSubstantive, tierLabel(rubric, tierNotSubstantive, "Not Substantive")
	}
	return tierSubstantiveButIncomplete, tierLabel(rubric, tierSubstantiveButIncomplete, "Substantive but Incomplete")
}

// fullCoverage reports whether the rubric's Score-1 criterion is met: every
// rubric-defined category fully covered when categories are configured
// (spec §4.4: "some rubrics partition required_points into categories...
// and require full coverage of each category"), or simply no missing
// required points in the simpler "typically covered_facts ⊇
// required_points" case.
func fullCoverage(missing []string, covered map[string]bool, rubric *scenario.Rubric) bool {
	if len(rubric.Categories) == 0 {
		return len(missing) == 0
	}
	for _, ids := range rubric.Categories {
		for _, fid := range ids {
			if !covered[fid] {
				return false
			}
		}
	}
	return true
}

// noCategoryCovered reports whether zero facts are covered in any
// rubric-defined category, the second half of the Score 3 condition (spec
// §4.4: "completeness_percentage < 0.30 with no covered facts in any
// rubric-defined category").
func noCategoryCovered(covered map[string]bool, rubric *scenario.Rubric) bool {
	if len(rubric.Categories) == 0 {
		return len(covered) == 0
	}
	for _, ids := range rubric.Categories {
		for _, fid := range ids {
			if covered[fid] {
				return false
			}
		}
	}
	return true
}

func tierLabel(rubric *scenario.Rubric, tier int, fallback string) string {
	if t, ok := rubric.Tiers[fmt.Sprintf("score_%d", tier)]; ok && t.Label != "" {
		return t.Label
	}
	return fallback
}

func justify(tier int, label string, completeness float64, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score %d (%s): completeness=%.0f%%", tier, label, completeness*100)
	if len(missing) > 0 {
		fmt.Fprintf(&b, ", missing required facts: %s", strings.Join(missing, ", "))
	}
	return b.String()
}
