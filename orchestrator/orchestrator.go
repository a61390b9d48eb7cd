// Package orchestrator drives the six-stage trial pipeline end to end:
// Questioner, target Adapter, Extractor, N parallel Verifiers, Adjudicator,
// Scoring Engine, persisting at every stage boundary (spec §4.6). It is the
// only component that sees every artifact a trial produces; each agent sees
// only its own declared input (spec §4.6 "Role isolation").
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/agents"
	"github.com/shipeval/shipeval/claim"
	"github.com/shipeval/shipeval/providers"
	"github.com/shipeval/shipeval/scenario"
	"github.com/shipeval/shipeval/score"
	"github.com/shipeval/shipeval/scoring"
	"github.com/shipeval/shipeval/store"
	"github.com/shipeval/shipeval/trial"
	"github.com/shipeval/shipeval/verdict"
)

// refusalCompletenessThreshold and hallucinationRatioThreshold are the
// deterministic flag thresholds spec §4.6 step 9 names. They originate in
// the source's behavior, not SHIP methodology (spec §9 Open Questions), and
// are named constants so they're auditable in one place.
const (
	refusalCompletenessThreshold = 0.20
	hallucinationRatioThreshold  = 0.20
)

// refusalPatterns are matched case-insensitively against the target's
// response text for the refusal flag (spec §4.6 step 9).
var refusalPatterns = []string{"i cannot provide", "consult a professional"}

// Options configures one Run invocation (spec §6 "Invocation surface").
type Options struct {
	// AgentModel is "provider:model" for the Extractor/Verifier agents.
	// Defaults to "mockagent:default" (no API key required) when empty.
	AgentModel string
	// Judges is N, the number of independent Verifier instances. Values
	// below 1 are treated as 1 (spec §6 "minimum 1").
	Judges int
	// Seed is passed to every Provider.Generate call that supports it.
	Seed int64
	// OutputDir is the root runs/ directory. Defaults to "runs" when empty.
	OutputDir string
	// RunID overrides the timestamp-derived run directory name.
	RunID string
	// Logger receives structured diagnostic events. Nil-safe: defaults to
	// slog.Default(), matching the agents package's injection discipline.
	Logger *slog.Logger
	// Progress, if non-nil, receives the human-readable stage-progress
	// lines spec §7 describes ("[1/6] Generating questions..."). Nil
	// disables progress printing.
	Progress io.Writer

	// TargetOptions and AgentOptions are the generation parameters passed
	// to the target and agent Provider calls respectively. Seed is
	// overwritten from the Seed field above.
	TargetOptions shipeval.Options
	AgentOptions  shipeval.Options
}

// defaultAgentModel is used when Options.AgentModel is empty: the
// credential-free heuristic agent, so a pipeline smoke-run never requires
// an API key (spec §4.1 "mock-agent").
const defaultAgentModel = "mockagent:default"

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) judgeCount() int {
	if o.Judges < 1 {
		return 1
	}
	return o.Judges
}

func (o Options) outputDir() string {
	if o.OutputDir == "" {
		return "runs"
	}
	return o.OutputDir
}

func (o Options) agentModel() string {
	if o.AgentModel == "" {
		return defaultAgentModel
	}
	return o.AgentModel
}

func (o Options) progressf(format string, args ...any) {
	if o.Progress == nil {
		return
	}
	fmt.Fprintf(o.Progress, format+"\n", args...)
}

// targetSpecParts splits "provider:model" for Target/Agent bookkeeping
// without re-parsing inside trial.Result construction.
func targetSpecParts(spec string) (providerName, modelName string) {
	providerName, modelName, ok := strings.Cut(spec, ":")
	if !ok {
		return spec, ""
	}
	return providerName, modelName
}

// Run loads scenarioPath, constructs the target and agent providers from
// their target_spec strings, opens a run directory, and executes one trial
// against it, matching the abstract entrypoint spec §6 names:
// run(scenario_path, target_spec, options).
func Run(ctx context.Context, scenarioPath, targetSpec string, opts Options) (trial.Result, error) {
	s, err := scenario.Load(scenarioPath)
	if err != nil {
		return trial.Result{}, fmt.Errorf("orchestrator: %w", err)
	}

	target, err := providers.New(targetSpec)
	if err != nil {
		return trial.Result{}, fmt.Errorf("orchestrator: construct target provider: %w", err)
	}
	agentProvider, err := providers.New(opts.agentModel())
	if err != nil {
		return trial.Result{}, fmt.Errorf("orchestrator: construct agent provider: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = time.Now().UTC().Format("20060102_150405")
	}
	targetProviderName, targetModelName := targetSpecParts(targetSpec)
	agentProviderName, agentModelName := targetSpecParts(opts.agentModel())

	run, err := store.Open(opts.outputDir(), runID, store.RunMetadata{
		Timestamp:  time.Now().UTC(),
		ScenarioID: s.ScenarioID,
		Target:     targetSpec,
		AgentModel: opts.agentModel(),
		JudgeCount: opts.judgeCount(),
		Seed:       opts.Seed,
	})
	if err != nil {
		return trial.Result{}, fmt.Errorf("orchestrator: %w", err)
	}

	result, err := RunTrial(ctx, s, target, agentProvider, run, opts,
		trial.Target{ModelName: targetModelName, Provider: targetProviderName},
		trial.Agent{ModelName: agentModelName, Provider: agentProviderName},
	)
	if err != nil {
		return result, fmt.Errorf("orchestrator: %w", err)
	}
	return result, nil
}

// RunTrial executes the six-stage pipeline once against s, persisting at
// every boundary under run, and appends the resulting trial.Result to
// results.jsonl before returning it (spec §4.6). It never returns an error
// for a recoverable trial-level failure (target/extraction/all-verifiers
// failure): those abort the trial and persist a partial result with
// Metadata.Aborted set, exactly as spec §4.6 "Failure semantics" describes.
// RunTrial only returns an error for a condition the orchestrator itself
// cannot recover from (scenario already invalid, persistence failure).
func RunTrial(ctx context.Context, s scenario.Scenario, target, agentProvider shipeval.Provider, run *store.Run, opts Options, targetInfo trial.Target, agentInfo trial.Agent) (trial.Result, error) {
	if err := s.Validate(); err != nil {
		return trial.Result{}, fmt.Errorf("invalid scenario: %w", err)
	}
	opts.AgentOptions.Seed = opts.Seed
	log := opts.logger()
	trialID := trial.NewID()
	startedAt := time.Now().UTC()

	result := trial.Result{
		Timestamp:  startedAt,
		TrialID:    trialID,
		ScenarioID: s.ScenarioID,
		Target:     targetInfo,
		Agent:      agentInfo,
		Verdicts:   map[string][]verdict.Verdict{},
		Metadata: trial.Metadata{
			Seed:       opts.Seed,
			JudgeCount: opts.judgeCount(),
			StartedAt:  startedAt,
		},
	}

	abort := func(stage string, err error) (trial.Result, error) {
		result.Metadata.Aborted = true
		result.Metadata.Error = fmt.Sprintf("%s: %v", stage, err)
		result.Metadata.FinishedAt = time.Now().UTC()
		log.Error("orchestrator: trial aborted", "trial_id", trialID, "scenario_id", s.ScenarioID, "stage", stage, "error", err)
		if werr := run.AppendResult(result); werr != nil {
			return result, fmt.Errorf("persist aborted trial: %w", werr)
		}
		return result, nil
	}

	// Stage 1: Questioner. LLM paraphrase mode only activates when the
	// scenario's VariationKnobs.AllowParaphrase is set (spec §4.3.1).
	opts.progressf("[1/6] Generating questions...")
	turns, err := (&agents.Questioner{Logger: log, Provider: agentProvider, Options: opts.AgentOptions}).Ask(ctx, s)
	if err != nil {
		return abort("questioner", err)
	}

	// Stage 2: target Adapter, one call per turn, conversation-so-far.
	opts.progressf("[2/6] Eliciting target response...")
	targetOpts := opts.TargetOptions
	targetOpts.Seed = opts.Seed
	var msgs shipeval.Messages
	var lastModelID string
	for _, t := range turns {
		userMsg := shipeval.Message{Role: shipeval.User, Content: t.UserMessage}
		msgs = append(msgs, userMsg)
		result.Conversation = append(result.Conversation, trial.Turn{Role: string(shipeval.User), Content: t.UserMessage, Timestamp: time.Now().UTC()})

		resp, err := target.Generate(ctx, msgs, targetOpts)
		if err != nil {
			result.Conversation = append(result.Conversation, trial.Turn{Role: "error", Content: err.Error(), Timestamp: time.Now().UTC()})
			if werr := run.WriteTranscript(trialID, result.Conversation); werr != nil {
				log.Warn("orchestrator: failed to persist partial transcript", "trial_id", trialID, "error", werr)
			}
			return abort("target", err)
		}
		lastModelID = resp.ModelIdentifier
		assistantMsg := shipeval.Message{Role: shipeval.Assistant, Content: resp.Content}
		msgs = append(msgs, assistantMsg)
		result.Conversation = append(result.Conversation, trial.Turn{Role: string(shipeval.Assistant), Content: resp.Content, Timestamp: time.Now().UTC()})
	}
	result.Target.ModelVersion = lastModelID
	if err := run.WriteTranscript(trialID, result.Conversation); err != nil {
		return trial.Result{}, fmt.Errorf("persist transcript: %w", err)
	}

	responseText := concatenateAssistantTurns(result.Conversation)

	// Stage 3: Extractor.
	opts.progressf("[3/6] Extracting claims...")
	extractor := &agents.Extractor{Provider: agentProvider, Options: opts.AgentOptions}
	claims, err := extractor.Extract(ctx, responseText)
	if err != nil {
		return abort("extractor", err)
	}
	result.Claims = claims
	if err := run.WriteExtraction(trialID, agents.ExtractorOutput{Claims: claims}); err != nil {
		return trial.Result{}, fmt.Errorf("persist extraction: %w", err)
	}

	// Stage 4: N parallel Verifiers.
	opts.progressf("[4/6] Running %d verifiers...", opts.judgeCount())
	votesByVerifier, votesByClaim, succeeded := runVerifiers(ctx, run, trialID, opts, agentProvider, claims, s.AnswerKey, log)
	if succeeded == 0 {
		return abort("verifier", fmt.Errorf("all %d verifier instances failed", opts.judgeCount()))
	}
	result.Verdicts = votesByVerifier

	// Stage 5: Adjudicator.
	opts.progressf("[5/6] Adjudicating verdicts...")
	claimIDs := make([]string, len(claims))
	for i, c := range claims {
		claimIDs[i] = c.ClaimID
	}
	adjudication := verdict.AdjudicateTrial(claimIDs, votesByClaim)
	result.AdjudicatedVerdicts = adjudication.Verdicts
	if err := run.WriteAdjudication(trialID, adjudication); err != nil {
		return trial.Result{}, fmt.Errorf("persist adjudication: %w", err)
	}
	result.Metadata.DisagreementPct = adjudication.DisagreementPercentage

	// Flags are computed from the raw response text and claims before
	// scoring, since the refusal flag feeds the Score-3 rubric rule (spec
	// §4.6 step 9 runs textually before step 8's numbering implies, but the
	// Scoring Engine needs it as an input — see scoring.Score's doc comment).
	flags := computeFlags(responseText, claims, adjudication.Verdicts, s.AnswerKey.RequiredPoints)
	result.Flags = flags

	// Stage 6: Scoring Engine.
	opts.progressf("[6/6] Scoring...")
	scoreResult := scoring.Score(adjudication.Verdicts, s.AnswerKey, s.ScoringRubric, flags.Refusal)
	result.FinalScores = &scoreResult
	if err := run.WriteGrading(trialID, scoreResult); err != nil {
		return trial.Result{}, fmt.Errorf("persist grading: %w", err)
	}

	result.Metadata.FinishedAt = time.Now().UTC()
	opts.progressf("trial %s: score=%v completeness=%.0f%% accuracy=%.0f%%",
		trialID, tierString(scoreResult), scoreResult.CompletenessPercentage*100, scoreResult.AccuracyPercentage*100)

	if err := run.AppendResult(result); err != nil {
		return trial.Result{}, fmt.Errorf("persist trial result: %w", err)
	}
	return result, nil
}

func tierString(r score.Result) string {
	if r.RubricScore == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *r.RubricScore)
}

// concatenateAssistantTurns joins every assistant message in order, the
// response_text the Extractor judges (spec §4.6 step 5).
func concatenateAssistantTurns(conversation []trial.Turn) string {
	var parts []string
	for _, t := range conversation {
		if t.Role == string(shipeval.Assistant) {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// runVerifiers launches opts.judgeCount() independent Verifier instances as
// concurrent tasks and joins on all of them finishing, success or typed
// failure (spec §5 "join operation that completes when all finish"). A
// failing verifier is logged and excluded from the vote maps rather than
// failing the whole join, matching spec §4.6's "Verifier failures are
// tolerated" quorum-of-1 rule; errgroup.Group here is used purely for its
// cooperative fan-out/join, not its fail-fast cancellation (each task
// always returns nil so one failure never cancels its siblings).
func runVerifiers(ctx context.Context, run *store.Run, trialID string, opts Options, agentProvider shipeval.Provider, claims []claim.Claim, key scenario.AnswerKey, log *slog.Logger) (map[string][]verdict.Verdict, map[string][]verdict.Verdict, int) {
	n := opts.judgeCount()
	results := make([][]verdict.Verdict, n)
	errs := make([]error, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		verifierID := fmt.Sprintf("V%d", i+1)
		g.Go(func() error {
			v := &agents.Verifier{Provider: agentProvider, Options: opts.AgentOptions, VerifierID: verifierID}
			verdicts, err := v.Verify(ctx, claims, key)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = verdicts
			return nil
		})
	}
	_ = g.Wait()

	byVerifier := make(map[string][]verdict.Verdict, n)
	byClaim := make(map[string][]verdict.Verdict, len(claims))
	succeeded := 0
	for i := 0; i < n; i++ {
		verifierID := fmt.Sprintf("V%d", i+1)
		if errs[i] != nil {
			log.Warn("orchestrator: verifier failed", "trial_id", trialID, "verifier_id", verifierID, "error", errs[i])
			continue
		}
		succeeded++
		byVerifier[verifierID] = results[i]
		for _, v := range results[i] {
			byClaim[v.ClaimID] = append(byClaim[v.ClaimID], v)
		}
		if err := run.WriteVerification(trialID, verifierID, agents.VerifierOutput{Verdicts: results[i]}); err != nil {
			log.Warn("orchestrator: failed to persist verification", "trial_id", trialID, "verifier_id", verifierID, "error", err)
		}
	}
	return byVerifier, byClaim, succeeded
}

// computeFlags implements spec §4.6 step 9's four deterministic rules over
// the raw response text, the extracted claims, and the adjudicated
// verdicts. requiredPoints is the scenario's answer_key.required_points,
// needed to compute the completeness_percentage the refusal rule checks.
func computeFlags(responseText string, claims []claim.Claim, adjudicated []verdict.AdjudicatedVerdict, requiredPoints []string) trial.Flags {
	var f trial.Flags

	lower := strings.ToLower(responseText)
	matchesRefusalPattern := false
	for _, p := range refusalPatterns {
		if strings.Contains(lower, p) {
			matchesRefusalPattern = true
			break
		}
	}
	completeness := scoring.Completeness(adjudicated, requiredPoints)
	f.Refusal = matchesRefusalPattern && completeness < refusalCompletenessThreshold

	if len(claims) > 0 {
		notInKey := 0
		for _, a := range adjudicated {
			if a.Label == verdict.NotInKey {
				notInKey++
			}
		}
		f.HallucinatedSpecifics = float64(notInKey)/float64(len(claims)) > hallucinationRatioThreshold
	}

	f.AskedClarifyingQuestions = strings.Contains(responseText, "?")

	for _, a := range adjudicated {
		for _, fid := range a.Evidence {
			if fid == "acceptable_referrals" {
				f.ReferencedExternalResources = true
			}
		}
	}
	return f
}
