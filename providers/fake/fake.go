// Package fake is a canned-response Provider used by the test scenarios in
// spec §8 (T1-T4) and anywhere a deterministic target is needed without an
// API key.
package fake

import (
	"context"
	"fmt"

	"github.com/shipeval/shipeval"
)

// Canned holds the built-in response profiles. New copies from this map;
// callers may also supply their own text via Provider.Response.
var Canned = map[string]string{
	"perfect": "Your plan covers all preventive care visits at no cost, and your annual wellness visit is fully covered under Medicare Part B. " +
		"Part D covers your formulary drugs at the listed copay tiers. Your out-of-pocket maximum applies to all Medicare Advantage in-network " +
		"services. Your plan's service area includes your current doctor. You are eligible to keep your current primary care physician under this plan. " +
		"Premiums are billed monthly and are due regardless of usage. Referrals for specialist visits outside your network require prior authorization. " +
		"If you disagree with a coverage decision, you can file an appeal within 60 days. You can also contact 1-800-MEDICARE or visit Medicare.gov " +
		"for help comparing plans during the annual enrollment period. Original Medicare Part A covers inpatient hospital stays, and Part B covers " +
		"outpatient and physician services. The Part B annual deductible applies before coinsurance begins. Late enrollment in Part D can result in " +
		"a permanent premium penalty. You are covered under Medicare starting the first day of the month you turn 65, assuming you enroll during " +
		"your Initial Enrollment Period.",
	"incomplete": "Your plan covers preventive care visits at no cost, and Part B covers your annual wellness visit. " +
		"I'm not fully certain about the details of your drug coverage tiers or service area restrictions, but you should check your plan documents.",
	"refusal": "I cannot provide specific guidance on your individual Medicare coverage question. Please consult a professional, such as a licensed " +
		"insurance agent or your State Health Insurance Assistance Program counselor, who can review your specific situation.",
	"incorrect": "Your plan covers all prescription drugs at zero cost with no deductible, and Medicare Advantage plans never require prior " +
		"authorization for any service. You do not need to enroll in Part B if you already have Part A, and there is no penalty for enrolling late.",
}

// Provider returns Canned[Profile] verbatim for every Generate call,
// regardless of the conversation so far — the mystery-shopper target is
// meant to be static per profile, not conversational, for test purposes.
type Provider struct {
	Profile string
	// Response overrides Canned[Profile] when set, for callers supplying a
	// scenario-specific canned text instead of one of the built-ins.
	Response string
}

// New constructs a fake Provider for the given profile. If profile isn't one
// of the built-ins and Response is left empty, Generate returns an error.
func New(profile string) *Provider {
	return &Provider{Profile: profile, Response: Canned[profile]}
}

// Name implements shipeval.Provider.
func (p *Provider) Name() string { return "fake" }

// Generate implements shipeval.Provider by returning the canned response
// text, ignoring the conversation and options (aside from validating them).
func (p *Provider) Generate(ctx context.Context, msgs shipeval.Messages, opts shipeval.Options) (shipeval.ModelResponse, error) {
	if err := msgs.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}
	if err := opts.Validate(); err != nil {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{Provider: p.Name(), Err: err}
	}
	text := p.Response
	if text == "" {
		text = Canned[p.Profile]
	}
	if text == "" {
		return shipeval.ModelResponse{}, &shipeval.ProviderFatal{
			Provider: p.Name(),
			Err:      fmt.Errorf("fake: no canned response for profile %q", p.Profile),
		}
	}
	return shipeval.ModelResponse{
		Content:         text,
		ModelIdentifier: fmt.Sprintf("fake-%s [seed-unsupported]", p.Profile),
		Tokens:          shipeval.Usage{Prompt: int64(len(msgs)), Completion: int64(len(text) / 4), Total: int64(len(msgs)) + int64(len(text)/4)},
		LatencyMS:       0,
	}, nil
}

var _ shipeval.Provider = (*Provider)(nil)
