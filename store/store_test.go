package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval/store"
	"github.com/shipeval/shipeval/trial"
)

func TestOpen_CreatesLayoutAndMetadata(t *testing.T) {
	dir := t.TempDir()
	meta := store.RunMetadata{Timestamp: time.Now(), ScenarioID: "SHIP-Q3", Target: "fake:perfect", JudgeCount: 2, Seed: 42}
	r, err := store.Open(dir, "20260101_000000", meta)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(dir, "20260101_000000", "transcripts"))
	assert.DirExists(t, filepath.Join(dir, "20260101_000000", "intermediate"))
	assert.FileExists(t, filepath.Join(r.Dir, "run_metadata.json"))
}

func TestRun_WriteOnceRejectsSecondWrite(t *testing.T) {
	dir := t.TempDir()
	r, err := store.Open(dir, "run1", store.RunMetadata{})
	require.NoError(t, err)

	require.NoError(t, r.WriteExtraction("trial-1", map[string]string{"a": "b"}))
	err = r.WriteExtraction("trial-1", map[string]string{"a": "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_AppendResult_AndReadResults(t *testing.T) {
	dir := t.TempDir()
	r, err := store.Open(dir, "run1", store.RunMetadata{})
	require.NoError(t, err)

	require.NoError(t, r.AppendResult(trial.Result{TrialID: "t1", ScenarioID: "SHIP-Q3", FinalScores: nil}))
	require.NoError(t, r.AppendResult(trial.Result{TrialID: "t2", ScenarioID: "SHIP-Q3"}))

	results, err := store.ReadResults(dir, "run1", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "t1", results[0].TrialID)
	assert.Equal(t, "t2", results[1].TrialID)
}

func TestReadResults_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	r, err := store.Open(dir, "run1", store.RunMetadata{})
	require.NoError(t, err)
	require.NoError(t, r.AppendResult(trial.Result{TrialID: "good"}))

	// Append a malformed line directly, simulating a torn write the reader
	// must tolerate without failing the whole scan (spec §4.5).
	f, err := os.OpenFile(filepath.Join(r.Dir, "results.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not valid json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	results, err := store.ReadResults(dir, "run1", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].TrialID)
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()
	_, err := store.Open(dir, "run1", store.RunMetadata{})
	require.NoError(t, err)
	_, err = store.Open(dir, "run2", store.RunMetadata{})
	require.NoError(t, err)

	runs, err := store.ListRuns(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run1", "run2"}, runs)
}
