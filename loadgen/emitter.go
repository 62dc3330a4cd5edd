package loadgen

// This file contains the synthetic telemetry emitter.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/scenario"
)

// DefaultTelemetryQueueSize bounds the number of pending batches.
const DefaultTelemetryQueueSize = 1000

const telemetrySurface = "similar_books"

// Emitter posts event batches to the telemetry endpoint from a single
// goroutine. Enqueue never blocks: a full queue drops the batch.
type Emitter struct {
	logger zerolog.Logger
	url    string
	runID  string
	client *http.Client
	queue  chan model.EventBatch
	done   chan struct{}

	mu    sync.Mutex
	stats model.TelemetryStats
}

// NewEmitter returns an emitter posting to {apiURL}/telemetry/events.
func NewEmitter(logger zerolog.Logger, apiURL, runID string, queueSize int) *Emitter {
	if queueSize <= 0 {
		queueSize = DefaultTelemetryQueueSize
	}
	return &Emitter{
		logger: logger,
		url:    strings.TrimRight(apiURL, "/") + "/telemetry/events",
		runID:  runID,
		client: &http.Client{Timeout: 5 * time.Second},
		queue:  make(chan model.EventBatch, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the sender. It stops after Close once the queue drains.
func (e *Emitter) Start(ctx context.Context) {
	go func() {
		defer close(e.done)
		for batch := range e.queue {
			e.send(ctx, batch)
		}
	}()
}

// Enqueue queues a batch and reports whether it was accepted.
func (e *Emitter) Enqueue(batch model.EventBatch) bool {
	select {
	case e.queue <- batch:
		e.mu.Lock()
		e.stats.Enqueued++
		e.mu.Unlock()
		return true
	default:
		e.mu.Lock()
		e.stats.Dropped++
		e.mu.Unlock()
		return false
	}
}

// Close waits for queued batches to be sent and returns the stats. No
// Enqueue may follow.
func (e *Emitter) Close() model.TelemetryStats {
	close(e.queue)
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Emitter) send(ctx context.Context, batch model.EventBatch) {
	resp, err := e.post(ctx, batch)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.stats.FailedBatches++
		e.logger.Warn().Err(err).Int("events", len(batch.Events)).Msg("Failed to send telemetry batch")
		return
	}
	e.stats.SentBatches++
	e.stats.Inserted += resp.InsertedCount
	e.stats.Duplicates += resp.DuplicateCount
}

func (e *Emitter) post(ctx context.Context, batch model.EventBatch) (*model.EventBatchResponse, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Eval-Run-Id", e.runID)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("telemetry endpoint returned %d", resp.StatusCode)
	}
	var out model.EventBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry response: %w", err)
	}
	return &out, nil
}

// buildEvents returns the impression of a passing response and, depending
// on the click model, one click.
func buildEvents(cfg scenario.Telemetry, runID, requestID, anchorID string, arm model.Arm, o outcome, rng *rand.Rand, now time.Time) []model.IngestEvent {
	armName := string(arm)
	if armName == "" {
		armName = "unknown"
	}
	base := model.IngestEvent{
		TelemetrySchemaVersion: model.TelemetrySchemaVersion,
		TS:                     now.UTC(),
		RequestID:              requestID,
		RunID:                  runID,
		Surface:                telemetrySurface,
		Arm:                    armName,
		AnchorID:               anchorID,
		IsSynthetic:            true,
		AlgoID:                 o.algoID,
		RecsVersion:            o.recsVersion,
	}

	imp := base
	imp.EventName = model.EventImpression
	imp.IdempotencyKey = "imp_" + requestID
	imp.ShownIDs = append([]string{}, o.ids...)
	imp.Positions = make([]int, len(o.ids))
	for i := range imp.Positions {
		imp.Positions[i] = i
	}
	events := []model.IngestEvent{imp}

	if len(o.ids) == 0 {
		return events
	}
	position := -1
	switch cfg.ClickModel {
	case scenario.ClickModelFirstResult:
		position = 0
	case scenario.ClickModelFixedCTR:
		if cfg.FixedCTR != nil && rng.Float64() < *cfg.FixedCTR {
			position = rng.IntN(len(o.ids))
		}
	}
	if position < 0 {
		return events
	}
	click := base
	click.EventName = model.EventClick
	click.IdempotencyKey = "click_" + requestID
	click.ClickedID = o.ids[position]
	click.Position = &position
	return append(events, click)
}
