package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ingestImpression(runID, requestID string) model.IngestEvent {
	return model.IngestEvent{
		TelemetrySchemaVersion: model.TelemetrySchemaVersion,
		EventName:              model.EventImpression,
		TS:                     time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		RequestID:              requestID,
		RunID:                  runID,
		Surface:                "similar_books",
		Arm:                    "unknown",
		AnchorID:               "1",
		IsSynthetic:            true,
		IdempotencyKey:         "imp_" + requestID,
		AlgoID:                 "stub",
		RecsVersion:            "v0",
		ShownIDs:               []string{"2", "3"},
		Positions:              []int{0, 1},
	}
}

func ingestClick(runID, requestID string) model.IngestEvent {
	pos := 0
	ev := ingestImpression(runID, requestID)
	ev.EventName = model.EventClick
	ev.IdempotencyKey = "click_" + requestID
	ev.ShownIDs = nil
	ev.Positions = nil
	ev.ClickedID = "2"
	ev.Position = &pos
	return ev
}

func TestSQLiteStoreIdempotentInsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	inserted, dups, err := store.InsertBatch(ctx, []model.IngestEvent{
		ingestImpression("run_1", "req-1"),
		ingestClick("run_1", "req-1"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
	require.Equal(t, 0, dups)

	inserted, dups, err = store.InsertBatch(ctx, []model.IngestEvent{
		ingestImpression("run_1", "req-1"),
		ingestImpression("run_1", "req-2"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.Equal(t, 1, dups)
}

func TestSQLiteStoreExportRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _, err := store.InsertBatch(ctx, []model.IngestEvent{
		ingestImpression("run_1", "req-1"),
		ingestImpression("run_other", "req-9"),
		ingestClick("run_1", "req-1"),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "raw", "telemetry_extract.jsonl")
	n, err := store.ExportRun(ctx, "run_1", path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	events, err := artifacts.ReadTelemetryExtract(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.Equal(t, model.EventImpression, events[0].Kind)
	require.Equal(t, []string{"2", "3"}, events[0].Payload.ShownIDs)
	require.Equal(t, []int{0, 1}, events[0].Payload.Positions)
	require.Nil(t, events[0].Payload.Position)
	require.True(t, events[0].IsSynthetic)

	require.Equal(t, model.EventClick, events[1].Kind)
	require.Equal(t, "2", events[1].Payload.ClickedID)
	require.Equal(t, 0, *events[1].Payload.Position)
	require.Equal(t, "click_req-1", events[1].Payload.IdempotencyKey)

	qm := ComputeQualityMetrics(events, DefaultK)
	require.Equal(t, 1.0, *qm.ByTrafficType[model.BucketSynthetic].CTRAtK)
}
