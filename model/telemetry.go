package model

import "time"

// EventKind is the tag of a telemetry event.
type EventKind string

const (
	EventImpression EventKind = "similar_impression"
	EventClick      EventKind = "similar_click"
)

// TelemetryPayload carries the join keys and kind specific fields.
type TelemetryPayload struct {
	RequestID      string   `json:"request_id"`
	IdempotencyKey string   `json:"idempotency_key"`
	AnchorID       string   `json:"anchor_book_id,omitempty"`
	ClickedID      string   `json:"clicked_book_id,omitempty"`
	Position       *int     `json:"position,omitempty"`
	ShownIDs       []string `json:"shown_book_ids,omitempty"`
	Positions      []int    `json:"positions,omitempty"`
	Surface        string   `json:"surface,omitempty"`
	Arm            string   `json:"arm,omitempty"`
}

// TelemetryEvent is one line of raw/telemetry_extract.jsonl.
type TelemetryEvent struct {
	ExtractSchemaVersion string           `json:"extract_schema_version"`
	Kind                 EventKind        `json:"event_name"`
	RunID                string           `json:"run_id"`
	IsSynthetic          bool             `json:"is_synthetic"`
	TS                   time.Time        `json:"ts"`
	Payload              TelemetryPayload `json:"payload"`
}

// IngestEvent is the flat event shape posted to the telemetry endpoint.
type IngestEvent struct {
	TelemetrySchemaVersion string    `json:"telemetry_schema_version"`
	EventName              EventKind `json:"event_name"`
	TS                     time.Time `json:"ts"`
	RequestID              string    `json:"request_id"`
	RunID                  string    `json:"run_id"`
	Surface                string    `json:"surface"`
	Arm                    string    `json:"arm"`
	AnchorID               string    `json:"anchor_book_id"`
	IsSynthetic            bool      `json:"is_synthetic"`
	IdempotencyKey         string    `json:"idempotency_key"`
	AlgoID                 string    `json:"algo_id"`
	RecsVersion            string    `json:"recs_version"`
	ShownIDs               []string  `json:"shown_book_ids,omitempty"`
	Positions              []int     `json:"positions,omitempty"`
	ClickedID              string    `json:"clicked_book_id,omitempty"`
	Position               *int      `json:"position,omitempty"`
}

// EventBatch is the body of POST /telemetry/events.
type EventBatch struct {
	Events []IngestEvent `json:"events"`
}

// EventBatchResponse is the reply of POST /telemetry/events.
type EventBatchResponse struct {
	Status         string `json:"status"`
	InsertedCount  int    `json:"inserted_count"`
	DuplicateCount int    `json:"duplicate_count"`
}
