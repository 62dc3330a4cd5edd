package model

// EvaluationCounts are the aggregate counts of a run or a slice.
type EvaluationCounts struct {
	TotalRequests          int            `json:"total_requests"`
	SuccessfulRequests     int            `json:"successful_requests"`
	FailedRequests         int            `json:"failed_requests"`
	ErrorRate              float64        `json:"error_rate"`
	Timeouts               int            `json:"timeouts"`
	CorrectnessFailures    int            `json:"correctness_failures"`
	FailuresByType         map[string]int `json:"failures_by_type"`
	StatusCodeDistribution map[string]int `json:"status_code_distribution"`
}

// LatencyMetrics are latency percentiles in milliseconds; nil means no data.
type LatencyMetrics struct {
	P50MS *float64 `json:"p50_ms"`
	P95MS *float64 `json:"p95_ms"`
	P99MS *float64 `json:"p99_ms"`
}

// SliceMetrics are the metrics of one slice of anchors.
type SliceMetrics struct {
	SliceID    string           `json:"slice_id"`
	SampleSize int              `json:"sample_size"`
	Counts     EvaluationCounts `json:"counts"`
	Latency    LatencyMetrics   `json:"latency"`
}

// Traffic buckets of the quality metrics.
const (
	BucketSynthetic = "synthetic"
	BucketReal      = "real"
	BucketCombined  = "combined"
)

// Coverage counter names of a MetricBucket.
const (
	CoverageImpressionsLtK          = "impressions_with_position_lt_k"
	CoverageMatchedClicks           = "matched_clicks"
	CoverageMatchedClicksAtLtK      = "matched_clicks_at_positions_lt_k"
	DataSufficiencyImpressionsFloor = 100
)

// MetricBucket holds click-through metrics for one traffic bucket.
type MetricBucket struct {
	Impressions   int             `json:"impressions"`
	Clicks        int             `json:"clicks"`
	CTRAtK        *float64        `json:"ctr_at_k"`
	CTRByPosition map[int]float64 `json:"ctr_by_position"`
	Coverage      map[string]int  `json:"coverage"`
}

// QualityMetrics are the telemetry derived metrics of a run.
type QualityMetrics struct {
	K             int                     `json:"k"`
	ByTrafficType map[string]MetricBucket `json:"by_traffic_type"`
}

// QualityMetricsStatus records where the quality metrics came from.
type QualityMetricsStatus string

const (
	QualityFromExtract        QualityMetricsStatus = "computed_from_extract"
	QualityFromDBThenExported QualityMetricsStatus = "computed_from_db_then_exported"
	QualityNoTelemetry        QualityMetricsStatus = "no_telemetry"
)

// RunSummary is summary/summary.json.
type RunSummary struct {
	RunID                string               `json:"run_id"`
	SummarySchemaVersion string               `json:"summary_schema_version"`
	Counts               EvaluationCounts     `json:"counts"`
	Latency              LatencyMetrics       `json:"latency"`
	Slices               []SliceMetrics       `json:"slices"`
	QualityMetrics       *QualityMetrics      `json:"quality_metrics"`
	QualityMetricsStatus QualityMetricsStatus `json:"quality_metrics_status,omitempty"`
	QualityMetricsNotes  []string             `json:"quality_metrics_notes"`
}

// PairedDelta compares the two arms of one paired key.
type PairedDelta struct {
	AnchorID         string  `json:"anchor_id"`
	PairedKey        string  `json:"paired_key"`
	BaselineLatency  float64 `json:"baseline_latency"`
	CandidateLatency float64 `json:"candidate_latency"`
	LatencyDeltaMS   float64 `json:"latency_delta_ms"`
	BaselinePassed   bool    `json:"baseline_passed"`
	CandidatePassed  bool    `json:"candidate_passed"`
	PassedDelta      int     `json:"passed_delta"`
}

// PairedStats aggregates paired deltas.
type PairedStats struct {
	Count             int     `json:"count"`
	AvgLatencyDeltaMS float64 `json:"avg_latency_delta_ms"`
	// Regressions is the paired gate count: candidate failures minus
	// baseline failures, floored at zero.
	Regressions int `json:"regressions"`
}

// PairedDeltas is summary/deltas.json of a paired run.
type PairedDeltas struct {
	PairedDeltasSchemaVersion string        `json:"paired_deltas_schema_version"`
	RunID                     string        `json:"run_id"`
	PairedDeltas              []PairedDelta `json:"paired_deltas"`
	Stats                     PairedStats   `json:"stats"`
}
