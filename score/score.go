// Package score defines the Scoring Engine's output record (spec §3, §4.4).
package score

// Result is produced by the Scoring Engine from adjudicated verdicts, the
// scenario's answer key, and its rubric.
//
// RubricScore and RubricLabel are nil when the scenario supplies no
// scoring_rubric (spec §4.4 "Generic fallback"); percentages and missing
// points still populate in that case.
type Result struct {
	RubricScore            *int     `json:"rubric_score"`
	RubricLabel            *string  `json:"rubric_label"`
	CompletenessPercentage float64  `json:"completeness_percentage"`
	AccuracyPercentage     float64  `json:"accuracy_percentage"`
	MissingRequiredPoints  []string `json:"missing_required_points"`
	ErrorCategories        []string `json:"error_categories"`
	HarmCategories         []string `json:"harm_categories"`
	Justification          string   `json:"justification"`
}

// Clamp01 clamps v to [0, 1], used for completeness/accuracy percentages
// (spec invariant 6).
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SafeRatio returns num/den clamped to [0, 1], yielding 0 when den is 0
// (spec invariant 6: "division by zero yields 0").
func SafeRatio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return Clamp01(float64(num) / float64(den))
}
