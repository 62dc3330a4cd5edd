package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/valery-judah/semantic-shelf/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestReadRunMetadata(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadRunMetadata(filepath.Join(dir, "nope.json"))
		require.ErrorIs(t, err, ErrArtifactMissing)
		var artErr *ArtifactError
		require.ErrorAs(t, err, &artErr)
		require.Contains(t, artErr.Error(), "nope.json")
	})

	t.Run("version mismatch is rejected", func(t *testing.T) {
		path := filepath.Join(dir, "old.json")
		writeFile(t, path, `{"run_id":"r","run_schema_version":"0.9","scenario_id":"s","dataset_id":"d","seed":1,"anchor_count":2}`)
		_, err := ReadRunMetadata(path)
		var verErr *SchemaVersionError
		require.ErrorAs(t, err, &verErr)
		require.Equal(t, "0.9", verErr.Got)
		require.Equal(t, model.RunSchemaVersion, verErr.Want)
		require.Contains(t, err.Error(), `expected "1.0"`)
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "run.json")
		require.NoError(t, WriteJSON(path, model.RunMetadata{
			RunID:            "run_1",
			RunSchemaVersion: model.RunSchemaVersion,
			ScenarioID:       "similar_books_smoke",
			DatasetID:        "local_dev",
			Seed:             42,
			AnchorCount:      6,
		}))
		run, err := ReadRunMetadata(path)
		require.NoError(t, err)
		require.Equal(t, "run_1", run.RunID)
		require.Equal(t, 6, run.AnchorCount)
	})
}

func TestScanRequests(t *testing.T) {
	dir := t.TempDir()

	t.Run("reports line of malformed record", func(t *testing.T) {
		path := filepath.Join(dir, "bad.jsonl")
		writeFile(t, path, `{"requests_schema_version":"1.0","run_id":"r","request_id":"a","anchor_id":"1","latency_ms":1,"passed":true}

{not json}
`)
		var seen int
		err := ScanRequests(path, func(line int, rec model.RequestRecord) error {
			seen++
			return nil
		})
		var artErr *ArtifactError
		require.ErrorAs(t, err, &artErr)
		require.Equal(t, 3, artErr.Line)
		require.Equal(t, 1, seen)
	})

	t.Run("version mismatch carries line", func(t *testing.T) {
		path := filepath.Join(dir, "ver.jsonl")
		writeFile(t, path, `{"requests_schema_version":"2.0","run_id":"r","request_id":"a","anchor_id":"1"}`+"\n")
		err := ScanRequests(path, func(int, model.RequestRecord) error { return nil })
		var verErr *SchemaVersionError
		require.ErrorAs(t, err, &verErr)
		require.Equal(t, 1, verErr.Line)
	})

	t.Run("missing phase defaults to steady state", func(t *testing.T) {
		path := filepath.Join(dir, "legacy.jsonl")
		writeFile(t, path, `{"requests_schema_version":"1.0","run_id":"r","request_id":"a","anchor_id":"1","latency_ms":3,"passed":true}`+"\n")
		var got []model.RequestRecord
		require.NoError(t, ScanRequests(path, func(_ int, rec model.RequestRecord) error {
			got = append(got, rec)
			return nil
		}))
		require.Len(t, got, 1)
		require.Equal(t, model.PhaseSteadyState, got[0].Phase)
	})
}

func TestReadFailures(t *testing.T) {
	dir := t.TempDir()

	failures, err := ReadFailures(filepath.Join(dir, "missing.jsonl"))
	require.NoError(t, err)
	require.Empty(t, failures)

	path := filepath.Join(dir, "failures.jsonl")
	writeFile(t, path, `{"failures_schema_version":"1.0","run_id":"r","request_id":"a","anchor_id":"1","failure_type":"nope"}`+"\n")
	_, err = ReadFailures(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown failure_type")
}

func TestJSONLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "out.jsonl")
	w, err := CreateJSONL(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(map[string]string{"a": "<b>"}))
	require.NoError(t, w.Append(map[string]int{"n": 1}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\"a\":\"<b>\"}\n{\"n\":1}\n", string(data))
}

func TestLoadEntries(t *testing.T) {
	layout := NewLayout(t.TempDir())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run_old", "run_new"} {
		require.NoError(t, WriteJSON(layout.Run(id).RunJSON, model.RunMetadata{
			RunID:            id,
			RunSchemaVersion: model.RunSchemaVersion,
			CreatedAt:        base.Add(time.Duration(i) * time.Hour),
			ScenarioID:       "s",
			DatasetID:        "d",
		}))
	}
	writeFile(t, layout.Run("run_broken").RunJSON, "{")
	require.NoError(t, WriteJSON(layout.Run("run_new").Summary, model.RunSummary{
		RunID:                "run_new",
		SummarySchemaVersion: model.SummarySchemaVersion,
		Counts:               model.EvaluationCounts{FailedRequests: 2},
	}))

	entries, err := LoadEntries(zerolog.Nop(), layout)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "run_new", entries[0].Run.RunID)
	require.True(t, entries[0].Failed())
	require.Equal(t, "run_old", entries[1].Run.RunID)
	require.Nil(t, entries[1].Summary)
}

func TestLoadEntriesWithoutEvalDir(t *testing.T) {
	entries, err := LoadEntries(zerolog.Nop(), NewLayout(filepath.Join(t.TempDir(), "none")))
	require.NoError(t, err)
	require.Empty(t, entries)
	require.False(t, errors.Is(err, ErrArtifactMissing))
}
