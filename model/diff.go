package model

import "time"

// MetricStatus is the outcome of one gated metric.
type MetricStatus string

const (
	StatusPass MetricStatus = "PASS"
	StatusFail MetricStatus = "FAIL"
	StatusInfo MetricStatus = "INFO"
)

// GateType says how a metric participates in the overall verdict.
type GateType string

const (
	GateHard GateType = "hard"
	GateSoft GateType = "soft"
	GateInfo GateType = "info"
)

// Threshold configures one metric gate. Exactly one field is set.
type Threshold struct {
	Max              *float64 `json:"max,omitempty"`
	MaxIncrease      *float64 `json:"max_increase,omitempty"`
	MaxIncreaseRatio *float64 `json:"max_increase_ratio,omitempty"`
}

// MetricDiff is the comparison of one metric between two runs.
type MetricDiff struct {
	Metric         string       `json:"metric"`
	BaselineValue  *float64     `json:"baseline_value"`
	CandidateValue *float64     `json:"candidate_value"`
	AbsoluteDelta  *float64     `json:"absolute_delta"`
	RelativeDelta  *float64     `json:"relative_delta"`
	Status         MetricStatus `json:"status"`
	GateType       GateType     `json:"gate_type"`
	Threshold      Threshold    `json:"threshold"`
}

// DiffReport is the comparator output written under the candidate run.
type DiffReport struct {
	DiffSchemaVersion string       `json:"diff_schema_version"`
	ScenarioID        string       `json:"scenario_id"`
	BaselineRunID     string       `json:"baseline_run_id"`
	CandidateRunID    string       `json:"candidate_run_id"`
	GeneratedAt       time.Time    `json:"generated_at"`
	OverallStatus     MetricStatus `json:"overall_status"`
	Metrics           []MetricDiff `json:"metrics"`
}
