// Command shipeval runs a single mystery-shopper trial against a target
// model and records the scored result to an artifact run directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/orchestrator"
)

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	scenarioPath := flag.String("scenario", "", "path to a scenario JSON file")
	target := flag.String("target", "", "target_spec of the model under test, e.g. \"openai:gpt-4-turbo\"")
	agentModel := flag.String("agent-model", "", "target_spec used for the Questioner/Extractor/Verifier agents (default mockagent:default)")
	judges := flag.Int("judges", 2, "number of parallel Verifier instances")
	seed := flag.Int64("seed", 42, "trial seed")
	outputDir := flag.String("output", "runs", "directory to write run artifacts under")
	verbose := flag.Bool("verbose", false, "emit debug-level logs")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected arguments")
	}
	if *scenarioPath == "" {
		return errors.New("-scenario is required")
	}
	if *target == "" {
		return errors.New("-target is required")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	result, err := orchestrator.Run(ctx, *scenarioPath, *target, orchestrator.Options{
		AgentModel:    *agentModel,
		Judges:        *judges,
		Seed:          *seed,
		OutputDir:     *outputDir,
		Logger:        logger,
		Progress:      os.Stderr,
		TargetOptions: shipeval.Options{Seed: *seed},
	})
	if err != nil {
		return err
	}

	tier := "n/a"
	if result.FinalScores != nil && result.FinalScores.RubricScore != nil {
		tier = fmt.Sprintf("%d (%s)", *result.FinalScores.RubricScore, *result.FinalScores.RubricLabel)
	}
	fmt.Printf("trial %s: scenario=%s aborted=%v score=%s\n", result.TrialID, result.ScenarioID, result.Metadata.Aborted, tier)
	if result.Metadata.Aborted {
		// An aborted trial is still persisted to results.jsonl, so it's not a
		// startup failure: exit 0, with the reason visible on stderr.
		fmt.Fprintf(os.Stderr, "shipeval: trial aborted: %s\n", result.Metadata.Error)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		if err != context.Canceled {
			fmt.Fprintf(os.Stderr, "shipeval: %s\n", err)
		}
		os.Exit(1)
	}
}
