package model

import "time"

// Schema versions for every artifact kind. Readers compare them by exact
// string equality.
const (
	RunSchemaVersion          = "1.0"
	AnchorsSchemaVersion      = "2.0"
	LoadgenSchemaVersion      = "1.0.0"
	RequestsSchemaVersion     = "1.0"
	FailuresSchemaVersion     = "1.0"
	SummarySchemaVersion      = "1.1.0"
	PairedDeltasSchemaVersion = "1.0"
	DiffSchemaVersion         = "1.0.0"
	ExtractSchemaVersion      = "1.0"
	TelemetrySchemaVersion    = "1.0.0"
)

// RunMetadata is written once per run by the orchestrator (run.json).
type RunMetadata struct {
	RunID            string    `json:"run_id"`
	RunSchemaVersion string    `json:"run_schema_version"`
	CreatedAt        time.Time `json:"created_at"`
	ScenarioID       string    `json:"scenario_id"`
	ScenarioVersion  string    `json:"scenario_version"`
	GitSHA           string    `json:"git_sha,omitempty"`
	DatasetID        string    `json:"dataset_id"`
	Seed             int64     `json:"seed"`
	// Configured number of anchors, which may exceed the size of the pool.
	AnchorCount int `json:"anchor_count"`
}

// Anchor is a request target plus optional metadata used for slicing.
type Anchor struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AnchorSelection is the ordered anchor list for one run (raw/anchors.json).
type AnchorSelection struct {
	AnchorsSchemaVersion string `json:"anchors_schema_version"`
	RunID                string `json:"run_id"`
	ScenarioID           string `json:"scenario_id"`
	DatasetID            string `json:"dataset_id"`
	Seed                 int64  `json:"seed"`
	// RequestedCount mirrors RunMetadata.AnchorCount.
	RequestedCount int      `json:"requested_count"`
	Anchors        []Anchor `json:"anchors"`
}

// IDs returns the anchor ids in selection order.
func (s AnchorSelection) IDs() []string {
	ids := make([]string, len(s.Anchors))
	for i, a := range s.Anchors {
		ids[i] = a.ID
	}
	return ids
}

// HasMetadata reports whether any anchor carries slicing metadata.
func (s AnchorSelection) HasMetadata() bool {
	for _, a := range s.Anchors {
		if len(a.Metadata) > 0 {
			return true
		}
	}
	return false
}

// GoldenAnchor is one entry of a frozen golden set.
type GoldenAnchor struct {
	AnchorID string         `json:"anchor_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GoldenSet is a frozen, versioned reference list of anchors.
type GoldenSet struct {
	GoldenID   string         `json:"golden_id"`
	Version    string         `json:"version"`
	ScenarioID string         `json:"scenario_id"`
	DatasetID  string         `json:"dataset_id"`
	Seed       int64          `json:"seed"`
	CreatedAt  time.Time      `json:"created_at"`
	Anchors    []GoldenAnchor `json:"anchors"`
}

// BaselinePointer records which run is the promoted baseline of a scenario.
type BaselinePointer struct {
	RunID      string    `json:"run_id"`
	ScenarioID string    `json:"scenario_id"`
	PromotedAt time.Time `json:"promoted_at"`
}
