package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shipeval/shipeval/trial"
)

// ListRuns enumerates immediate subdirectories of outputDir, the reader
// contract's discovery mechanism (spec §4.5 "Reader contract").
func ListRuns(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	return runs, nil
}

// ReadResults parses runs/<runID>/results.jsonl line by line, skipping (and
// logging via logger, which defaults to slog.Default() when nil) any line
// that fails to parse, rather than aborting the whole read (spec §4.5:
// "tolerate and skip malformed lines (logging, never mutating)").
func ReadResults(outputDir, runID string, logger *slog.Logger) ([]trial.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(outputDir, runID, "results.jsonl")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	defer f.Close()

	var results []trial.Result
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r trial.Result
		if err := json.Unmarshal(line, &r); err != nil {
			logger.Warn("store: skipping malformed results.jsonl line",
				"run_id", runID, "line", lineNo, "error", err)
			continue
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return results, fmt.Errorf("store: scan %s: %w", path, err)
	}
	return results, nil
}
