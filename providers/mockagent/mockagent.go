// Package mockagent implements the credential-free heuristic agent runner
// spec §4.1 calls "mock-agent": a Provider that never calls a real LLM.
// Instead of generating prose, it recognizes the structured task payload the
// agents package embeds in the last user message (an agents.ExtractorInput
// or agents.VerifierInput, marshaled to JSON) and synthesizes a plausible
// JSON response using simple text heuristics, so the orchestrator's full
// six-stage pipeline can run end to end without any provider credentials.
//
// This package intentionally leans on the standard library (encoding/json,
// strings, regexp) for sentence splitting and fact matching: none of the
// pack's third-party dependencies provide lightweight text-similarity or
// sentence-boundary heuristics, and fabricating a dependency around them
// would be worse than a plain stdlib implementation (see DESIGN.md).
package mockagent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/claim"
	"github.com/shipeval/shipeval/scenario"
	"github.com/shipeval/shipeval/verdict"
)

// Provider is a heuristic, offline stand-in for a real LLM-backed agent
// provider. It only understands the two task shapes the agents package
// sends (extraction and verification); any other payload is a fatal error.
type Provider struct{}

// New constructs a mock-agent Provider.
func New() *Provider { return &Provider{} }

// Name implements shipeval.Provider.
func (p *Provider) Name() string { return "mockagent" }

// extractionInput mirrors agents.ExtractorInput's JSON shape; mockagent
// decodes only the wire shape and does not import the agents package.
type extractionInput struct {
	ResponseText string `json:"response_text"`
}

// verificationInput mirrors agents.VerifierInput's JSON shape.
type verificationInput struct {
	Claims    []claim.Claim      `json:"claims"`
	AnswerKey scenario.AnswerKey `json:"answer_key"`
}

// Generate implements shipeval.Provider by inspecting the last user message
// for a recognized task shape and synthesizing the corresponding agent JSON
// output.
func (p *Provider) Generate(ctx context.Context, msgs shipeval.Messages, opts shipeval.Options) (shipeval.ModelResponse, error) {
	if err := msgs.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}
	var task string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == shipeval.User {
			task = msgs[i].Content
			break
		}
	}
	if task == "" {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: fmt.Errorf("mockagent: no user message to dispatch on")}
	}

	var extractProbe struct {
		ResponseText *string `json:"response_text"`
	}
	var verifyProbe struct {
		Claims *[]json.RawMessage `json:"claims"`
	}
	_ = json.Unmarshal([]byte(task), &extractProbe)
	_ = json.Unmarshal([]byte(task), &verifyProbe)

	var content string
	switch {
	case extractProbe.ResponseText != nil:
		var in extractionInput
		if err := json.Unmarshal([]byte(task), &in); err != nil {
			return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
		}
		claims := extractClaims(in.ResponseText)
		b, err := json.Marshal(struct {
			Claims []claim.Claim `json:"claims"`
		}{Claims: claims})
		if err != nil {
			return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
		}
		content = string(b)
	case verifyProbe.Claims != nil:
		var in verificationInput
		if err := json.Unmarshal([]byte(task), &in); err != nil {
			return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
		}
		verdicts := verifyClaims(in.Claims, in.AnswerKey)
		b, err := json.Marshal(struct {
			Verdicts []verdict.Verdict `json:"verdicts"`
		}{Verdicts: verdicts})
		if err != nil {
			return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
		}
		content = string(b)
	default:
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: fmt.Errorf("mockagent: unrecognized task payload")}
	}

	return shipeval.ModelResponse{
		Content:         content,
		ModelIdentifier: "mockagent-v1 [seed-unsupported]",
		Tokens:          shipeval.Usage{Completion: int64(len(content) / 4), Total: int64(len(content) / 4)},
	}, nil
}

var _ shipeval.Provider = (*Provider)(nil)

var sentenceSplitRe = regexp.MustCompile(`(?:[^.!?]|\.\w)+[.!?]*`)

var hedgeWords = []string{"may", "might", "generally", "typically", "in general", "usually", "often", "could", "should check", "not certain", "i'm not fully certain", "i am not fully certain"}

var referralPhrases = []string{"medicare.gov", "1-800-medicare", "contact medicare", "call your plan", "ship counselor", "state health insurance assistance program", "licensed insurance agent", "consult a professional"}

// extractClaims splits text into sentence-sized claims and tags each with a
// heuristic type, hedge flag, and quote span. It is deliberately simple: the
// mock agent exists to exercise the pipeline, not to replace a real
// extractor's judgment.
func extractClaims(text string) []claim.Claim {
	var claims []claim.Claim
	cursor := 0
	n := 1
	for _, raw := range sentenceSplitRe.FindAllString(text, -1) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		start := strings.Index(text[cursor:], sentence)
		if start < 0 {
			start = 0
		} else {
			start += cursor
		}
		end := start + len(sentence)
		cursor = end

		lower := strings.ToLower(sentence)
		t := claim.Factual
		for _, phrase := range referralPhrases {
			if strings.Contains(lower, phrase) {
				t = claim.Referral
				break
			}
		}
		hedged := false
		for _, h := range hedgeWords {
			if strings.Contains(lower, h) {
				hedged = true
				break
			}
		}

		claims = append(claims, claim.Claim{
			ClaimID:    "C" + strconv.Itoa(n),
			Text:       sentence,
			Type:       t,
			Confidence: claim.ConfidenceMedium,
			Verifiable: t != claim.Referral,
			IsHedged:   hedged,
			QuoteSpans: []claim.QuoteSpan{{Start: start, End: end}},
		})
		n++
	}
	return claims
}

// factOverlap scores how many non-trivial words c's text shares with fact's
// statement, a crude but deterministic stand-in for semantic entailment.
func factOverlap(claimText, factStatement string) int {
	claimWords := significantWords(claimText)
	factWords := significantWords(factStatement)
	overlap := 0
	for w := range claimWords {
		if factWords[w] {
			overlap++
		}
	}
	return overlap
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "is": true, "are": true,
	"your": true, "you": true, "to": true, "of": true, "for": true, "in": true, "at": true,
	"under": true, "on": true, "with": true, "this": true, "that": true, "be": true, "can": true,
}

func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" || stopWords[w] || len(w) < 3 {
			continue
		}
		words[w] = true
	}
	return words
}

// matchThreshold is the minimum word-overlap score for a claim to be
// considered matched against a canonical fact at all.
const matchThreshold = 2

// verifyClaims heuristically matches each claim against the answer key's
// canonical facts by word overlap, labeling referral claims against
// acceptable_referrals separately (spec §4.3.3).
func verifyClaims(claims []claim.Claim, key scenario.AnswerKey) []verdict.Verdict {
	verdicts := make([]verdict.Verdict, 0, len(claims))
	for _, c := range claims {
		if c.Type == claim.Referral {
			verdicts = append(verdicts, matchReferral(c, key))
			continue
		}

		best := -1
		var bestFact scenario.CanonicalFact
		for _, f := range key.CanonicalFacts {
			if score := factOverlap(c.Text, f.Statement); score > best {
				best = score
				bestFact = f
			}
		}
		if best < matchThreshold {
			verdicts = append(verdicts, verdict.Verdict{
				ClaimID:  c.ClaimID,
				Label:    verdict.NotInKey,
				Severity: verdict.SeverityNone,
				Notes:    "mockagent: no canonical fact met the overlap threshold",
			})
			continue
		}

		lower := strings.ToLower(c.Text)
		contradicted := strings.Contains(lower, "never") || strings.Contains(lower, "no cost") ||
			strings.Contains(lower, "zero cost") || strings.Contains(lower, "do not need") ||
			strings.Contains(lower, "there is no penalty") || strings.Contains(lower, "not need to enroll")
		if contradicted {
			verdicts = append(verdicts, verdict.Verdict{
				ClaimID:  c.ClaimID,
				Label:    verdict.Contradicted,
				Evidence: []string{bestFact.FactID},
				Severity: bestFact.SeverityIfWrong,
				Notes:    "mockagent: matched absolute/negating language against a qualified canonical fact",
			})
			continue
		}
		verdicts = append(verdicts, verdict.Verdict{
			ClaimID:  c.ClaimID,
			Label:    verdict.Supported,
			Evidence: []string{bestFact.FactID},
			Severity: verdict.SeverityNone,
		})
	}
	return verdicts
}

func matchReferral(c claim.Claim, key scenario.AnswerKey) verdict.Verdict {
	lower := strings.ToLower(c.Text)
	for _, r := range key.AcceptableReferrals {
		if strings.Contains(lower, strings.ToLower(r)) {
			return verdict.Verdict{ClaimID: c.ClaimID, Label: verdict.Supported, Evidence: []string{"acceptable_referrals"}, Severity: verdict.SeverityNone}
		}
	}
	for _, phrase := range referralPhrases {
		if strings.Contains(lower, phrase) {
			return verdict.Verdict{ClaimID: c.ClaimID, Label: verdict.Supported, Evidence: []string{"acceptable_referrals"}, Severity: verdict.SeverityNone}
		}
	}
	return verdict.Verdict{ClaimID: c.ClaimID, Label: verdict.NotInKey, Severity: verdict.SeverityNone, Notes: "mockagent: referral target not recognized"}
}
