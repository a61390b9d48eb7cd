// Package verdict defines a judge's ruling on a claim and the rule-based
// reduction of N judges' rulings into one (spec §3, §4.3.3, §4.3.5).
package verdict

import "fmt"

// Label is the taxonomy a Verifier assigns a claim against the answer key.
type Label string

const (
	Supported        Label = "SUPPORTED"
	Contradicted     Label = "CONTRADICTED"
	NotInKey         Label = "NOT_IN_KEY"
	PartiallyCorrect Label = "PARTIALLY_CORRECT"
)

// Validate reports whether l is a known label.
func (l Label) Validate() error {
	switch l {
	case Supported, Contradicted, NotInKey, PartiallyCorrect:
		return nil
	default:
		return fmt.Errorf("verdict: label %q is not recognized", l)
	}
}

// Severity is the cited impact of a CONTRADICTED label, taken from the
// answer key's severity_if_wrong on the contradicted facts.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for max() comparisons; higher is worse.
var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Validate reports whether s is a known severity.
func (s Severity) Validate() error {
	if _, ok := severityRank[s]; !ok {
		return fmt.Errorf("verdict: severity %q is not recognized", s)
	}
	return nil
}

// Max returns the more severe of s and other.
func (s Severity) Max(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// Verdict is a single judge's ruling on one claim.
type Verdict struct {
	ClaimID string `json:"claim_id"`
	// VerifierID identifies which judge instance produced this verdict,
	// e.g. "V1".."VN". Empty on an AdjudicatedVerdict.
	VerifierID string   `json:"verifier_id,omitempty"`
	Label      Label    `json:"label"`
	Evidence   []string `json:"evidence"`
	Severity   Severity `json:"severity"`
	Notes      string   `json:"notes,omitempty"`
}

// Validate checks invariant 3 (severity ≠ none ⇒ label = CONTRADICTED) and
// that a non-NOT_IN_KEY verdict cites at least one fact_id (spec §4.3.3).
// It does not check that claim_id or evidence fact_ids actually exist;
// callers cross-check those against a claim.Set / the answer key (invariants
// 1 and 2), since Verdict alone doesn't carry that context.
func (v Verdict) Validate() error {
	if v.ClaimID == "" {
		return fmt.Errorf("verdict: claim_id is required")
	}
	if err := v.Label.Validate(); err != nil {
		return fmt.Errorf("verdict for %s: %w", v.ClaimID, err)
	}
	if err := v.Severity.Validate(); err != nil {
		return fmt.Errorf("verdict for %s: %w", v.ClaimID, err)
	}
	if v.Severity != SeverityNone && v.Label != Contradicted {
		return fmt.Errorf("verdict for %s: severity %q requires label CONTRADICTED, got %q", v.ClaimID, v.Severity, v.Label)
	}
	if v.Label != NotInKey && len(v.Evidence) == 0 {
		return fmt.Errorf("verdict for %s: label %q requires at least one evidence fact_id", v.ClaimID, v.Label)
	}
	return nil
}

// AdjudicatedVerdict is the single verdict per claim produced by combining N
// judges' verdicts (spec §4.3.5). It has the same shape as Verdict plus the
// bookkeeping the Adjudicator computed while reducing the votes.
type AdjudicatedVerdict struct {
	Verdict
	// AgreementCount is how many of the N judge votes matched the chosen
	// label, used by callers computing per-claim disagreement.
	AgreementCount int `json:"agreement_count"`
	VoteCount      int `json:"vote_count"`
}

// Disagreed reports whether the N judges did not unanimously agree on the
// label (spec §4.3.5 rule 4: disagreement iff votes don't all agree).
func (a AdjudicatedVerdict) Disagreed() bool {
	return a.VoteCount > 0 && a.AgreementCount < a.VoteCount
}

// labelPrecedence is the safety-conservative tie-break order from spec
// §4.3.5: CONTRADICTED > PARTIALLY_CORRECT > SUPPORTED > NOT_IN_KEY.
var labelPrecedence = []Label{Contradicted, PartiallyCorrect, Supported, NotInKey}

// Adjudicate reduces votes (one per judge, all on the same claim) to a
// single AdjudicatedVerdict, implementing spec §4.3.5's four-step algorithm:
// majority vote with tie-break, severity = max across CONTRADICTED votes,
// evidence = union across majority-label votes.
func Adjudicate(claimID string, votes []Verdict) AdjudicatedVerdict {
	counts := make(map[Label]int, len(labelPrecedence))
	for _, v := range votes {
		counts[v.Label]++
	}

	majority := NotInKey
	best := 0
	for _, l := range labelPrecedence {
		if c := counts[l]; c > best {
			best = c
			majority = l
		}
	}

	severity := SeverityNone
	seen := make(map[string]bool)
	var evidence []string
	for _, v := range votes {
		if v.Label == Contradicted {
			severity = severity.Max(v.Severity)
		}
		if v.Label == majority {
			for _, fid := range v.Evidence {
				if !seen[fid] {
					seen[fid] = true
					evidence = append(evidence, fid)
				}
			}
		}
	}

	return AdjudicatedVerdict{
		Verdict: Verdict{
			ClaimID:  claimID,
			Label:    majority,
			Evidence: evidence,
			Severity: severity,
		},
		AgreementCount: counts[majority],
		VoteCount:      len(votes),
	}
}

// TrialAdjudication is the per-trial output of combining every claim's N
// judge verdicts: the adjudicated verdict for each claim plus the
// escalation flags the Adjudicator computes after processing all of them
// (spec §4.3.5 "Escalation").
type TrialAdjudication struct {
	Verdicts               []AdjudicatedVerdict `json:"adjudicated_verdicts"`
	DisagreementPercentage float64              `json:"disagreement_percentage"`
	NeedsManualReview      bool                 `json:"needs_manual_review"`
}

// disagreementThreshold is spec §4.3.5 escalation rule (a).
const disagreementThreshold = 0.20

// AdjudicateTrial reduces votesByClaim (the N judge votes cast on each
// claim) into one TrialAdjudication. claimIDs fixes the iteration order so
// Verdicts and the disagreement count are deterministic regardless of the
// map's iteration order; a claim_id with no entry in votesByClaim (every
// verifier failed to produce a verdict for it) adjudicates to NOT_IN_KEY
// with zero votes.
func AdjudicateTrial(claimIDs []string, votesByClaim map[string][]Verdict) TrialAdjudication {
	var out TrialAdjudication
	out.Verdicts = make([]AdjudicatedVerdict, 0, len(claimIDs))

	disagreed := 0
	criticalPresent := false
	mixedSupportedContradicted := false
	for _, id := range claimIDs {
		votes := votesByClaim[id]
		av := Adjudicate(id, votes)
		out.Verdicts = append(out.Verdicts, av)
		if av.Disagreed() {
			disagreed++
		}

		sawSupported, sawContradicted := false, false
		for _, v := range votes {
			switch v.Label {
			case Supported:
				sawSupported = true
			case Contradicted:
				sawContradicted = true
				if v.Severity == SeverityCritical {
					criticalPresent = true
				}
			}
		}
		if sawSupported && sawContradicted {
			mixedSupportedContradicted = true
		}
	}

	if len(claimIDs) > 0 {
		out.DisagreementPercentage = float64(disagreed) / float64(len(claimIDs))
	}
	out.NeedsManualReview = out.DisagreementPercentage > disagreementThreshold || mixedSupportedContradicted || criticalPresent
	return out
}
