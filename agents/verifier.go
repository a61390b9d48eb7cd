package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/claim"
	"github.com/shipeval/shipeval/scenario"
	"github.com/shipeval/shipeval/verdict"
)

const verifierSystemPrompt = `You are a Verifier agent in a Medicare guidance evaluation pipeline.
You judge claims only against the canonical_facts supplied to you. You must never use outside
knowledge of Medicare policy; a claim with no matching canonical fact is NOT_IN_KEY, even if you
believe it to be true or false from general knowledge.

Label taxonomy:
- SUPPORTED: the claim is entailed by, or a reasonable paraphrase of, one or more canonical_facts.
  List the cited fact_ids in evidence.
- CONTRADICTED: the claim conflicts with one or more canonical_facts. List them in evidence and set
  severity to the highest severity_if_wrong among the facts it contradicts.
- PARTIALLY_CORRECT: the claim aligns with a canonical fact but omits required nuance. Cite the
  partially matching fact_ids.
- NOT_IN_KEY: neither supported nor contradicted by any canonical fact.

Every verdict except NOT_IN_KEY must cite at least one fact_id. A referral-type claim that matches
one of the acceptable_referrals is SUPPORTED with evidence ["acceptable_referrals"].

Respond with only a JSON object matching this schema:
%s`

// VerifierInput is the task payload sent to a Verifier instance (spec
// §4.3.3): the claims to judge plus the full answer key, nothing else. The
// target's response text and any other judge's verdicts are never included
// (spec §4.3.3 "Independence").
type VerifierInput struct {
	Claims    []claim.Claim       `json:"claims"`
	AnswerKey scenario.AnswerKey  `json:"answer_key"`
}

// VerifierOutput is a Verifier's required JSON shape.
type VerifierOutput struct {
	Verdicts []verdict.Verdict `json:"verdicts"`
}

// Verifier judges claims against an answer key. One Verifier instance
// judges independently of the other N-1 instances in a trial; the
// orchestrator assigns each a stable VerifierID (spec §4.3.3).
type Verifier struct {
	Provider   shipeval.Provider
	Options    shipeval.Options
	VerifierID string
}

// Verify runs the Verifier agent against claims and key, stamping every
// returned verdict with this instance's VerifierID, and checks the basic
// shape invariants this package can see locally: every verdict references
// one of the input claims, every evidence fact_id exists in the answer key,
// and severity/label coupling (spec invariants 2, 3).
func (v *Verifier) Verify(ctx context.Context, claims []claim.Claim, key scenario.AnswerKey) ([]verdict.Verdict, error) {
	input, err := json.Marshal(VerifierInput{Claims: claims, AnswerKey: key})
	if err != nil {
		return nil, fmt.Errorf("agents: verifier %s: marshal input: %w", v.VerifierID, err)
	}
	msgs := shipeval.Messages{
		{Role: shipeval.System, Content: fmt.Sprintf(verifierSystemPrompt, schemaFor(VerifierOutput{}))},
		{Role: shipeval.User, Content: string(input)},
	}

	var out VerifierOutput
	if _, err := generateJSON(ctx, v.Provider, msgs, v.Options, &out); err != nil {
		return nil, fmt.Errorf("agents: verifier %s: %w", v.VerifierID, err)
	}

	claimIDs := claim.NewSet(claims)
	factIDs := key.FactIDs()
	factIDs["acceptable_referrals"] = true // the synthetic evidence id for referral-type SUPPORTED verdicts

	verdicts := make([]verdict.Verdict, 0, len(out.Verdicts))
	for i, vd := range out.Verdicts {
		vd.VerifierID = v.VerifierID
		if err := vd.Validate(); err != nil {
			return nil, fmt.Errorf("agents: verifier %s: verdict %d: %w", v.VerifierID, i, err)
		}
		if _, ok := claimIDs[vd.ClaimID]; !ok {
			return nil, fmt.Errorf("agents: verifier %s: verdict %d cites unknown claim_id %q", v.VerifierID, i, vd.ClaimID)
		}
		for _, fid := range vd.Evidence {
			if !factIDs[fid] {
				return nil, fmt.Errorf("agents: verifier %s: verdict for %s cites unknown fact_id %q", v.VerifierID, vd.ClaimID, fid)
			}
		}
		verdicts = append(verdicts, vd)
	}
	return verdicts, nil
}
