package model

import "time"

// Phase names a traffic phase of the load generator.
type Phase string

const (
	PhaseWarmup      Phase = "warmup"
	PhaseSteadyState Phase = "steady_state"
)

// Arm names the side of a paired request.
type Arm string

const (
	ArmNone      Arm = ""
	ArmBaseline  Arm = "baseline"
	ArmCandidate Arm = "candidate"
)

// FailureKind classifies a failed request.
type FailureKind string

const (
	FailureStatusCodeMismatch FailureKind = "status_code_mismatch"
	FailureInvalidJSON        FailureKind = "invalid_json"
	FailureMissingKey         FailureKind = "missing_key"
	FailureDuplicateIDs       FailureKind = "duplicate_ids"
	FailureAnchorInResults    FailureKind = "anchor_in_results"
	FailureTimeout            FailureKind = "timeout"
	FailureConnectionError    FailureKind = "connection_error"
)

// IsTransport reports whether the failure happened before a response was read.
func (k FailureKind) IsTransport() bool {
	switch k {
	case FailureTimeout, FailureConnectionError:
		return true
	case FailureStatusCodeMismatch, FailureInvalidJSON, FailureMissingKey,
		FailureDuplicateIDs, FailureAnchorInResults:
		return false
	}
	return false
}

// Known reports whether k is one of the declared kinds.
func (k FailureKind) Known() bool {
	switch k {
	case FailureStatusCodeMismatch, FailureInvalidJSON, FailureMissingKey,
		FailureDuplicateIDs, FailureAnchorInResults, FailureTimeout, FailureConnectionError:
		return true
	}
	return false
}

// RequestRecord is one line of raw/requests.jsonl.
type RequestRecord struct {
	RequestsSchemaVersion string `json:"requests_schema_version"`
	RunID                 string `json:"run_id"`
	RequestID             string `json:"request_id"`
	ScenarioID            string `json:"scenario_id"`
	AnchorID              string `json:"anchor_id"`
	// Method and Path are optional for older record files.
	Method       string       `json:"method,omitempty"`
	Path         string       `json:"path,omitempty"`
	StatusCode   *int         `json:"status_code"`
	LatencyMS    float64      `json:"latency_ms"`
	Passed       bool         `json:"passed"`
	FailureType  *FailureKind `json:"failure_type"`
	ResponseBody *string      `json:"response_body"`
	Timestamp    time.Time    `json:"timestamp"`
	Phase        Phase        `json:"phase"`
	Arm          Arm          `json:"arm,omitempty"`
	PairedKey    string       `json:"paired_key,omitempty"`
}

// Failure returns the failure kind, or "" for passing records.
func (r RequestRecord) Failure() FailureKind {
	if r.FailureType == nil {
		return ""
	}
	return *r.FailureType
}

// ValidationFailure is one line of raw/validation_failures.jsonl.
type ValidationFailure struct {
	FailuresSchemaVersion string      `json:"failures_schema_version"`
	RunID                 string      `json:"run_id"`
	RequestID             string      `json:"request_id"`
	AnchorID              string      `json:"anchor_id"`
	FailureType           FailureKind `json:"failure_type"`
	StatusCode            *int        `json:"status_code"`
	ErrorDetail           string      `json:"error_detail"`
	LatencyMS             float64     `json:"latency_ms"`
	Timestamp             time.Time   `json:"timestamp"`
	Phase                 Phase       `json:"phase"`
	Arm                   Arm         `json:"arm,omitempty"`
}

// FailureFromRecord projects a failed record. The second value is false
// for passing records.
func FailureFromRecord(r RequestRecord, detail string) (ValidationFailure, bool) {
	if r.Passed || r.FailureType == nil {
		return ValidationFailure{}, false
	}
	return ValidationFailure{
		FailuresSchemaVersion: FailuresSchemaVersion,
		RunID:                 r.RunID,
		RequestID:             r.RequestID,
		AnchorID:              r.AnchorID,
		FailureType:           *r.FailureType,
		StatusCode:            r.StatusCode,
		ErrorDetail:           detail,
		LatencyMS:             r.LatencyMS,
		Timestamp:             r.Timestamp,
		Phase:                 r.Phase,
		Arm:                   r.Arm,
	}, true
}

// LoadgenLatency holds steady-state percentiles in milliseconds.
type LoadgenLatency struct {
	P50 *float64 `json:"p50"`
	P95 *float64 `json:"p95"`
	P99 *float64 `json:"p99"`
}

// TelemetryStats counts what the synthetic telemetry emitter did.
type TelemetryStats struct {
	Enqueued      int `json:"enqueued"`
	Dropped       int `json:"dropped"`
	SentBatches   int `json:"sent_batches"`
	FailedBatches int `json:"failed_batches"`
	Inserted      int `json:"inserted"`
	Duplicates    int `json:"duplicates"`
}

// LoadgenResults summarizes the steady-state phase (raw/loadgen_results.json).
type LoadgenResults struct {
	SchemaVersion          string          `json:"schema_version"`
	TotalRequests          int             `json:"total_requests"`
	PassedRequests         int             `json:"passed_requests"`
	FailedRequests         int             `json:"failed_requests"`
	StatusCodeDistribution map[string]int  `json:"status_code_distribution"`
	LatencyMS              LoadgenLatency  `json:"latency_ms"`
	Telemetry              *TelemetryStats `json:"telemetry,omitempty"`
}
