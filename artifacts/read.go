package artifacts

// This file contains the strict readers for run artifacts. Every reader
// checks the schema version field by exact string equality.

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/valery-judah/semantic-shelf/model"
)

const maxLineSize = 4 * 1024 * 1024

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ArtifactError{Path: path, Err: ErrArtifactMissing}
		}
		return &ArtifactError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ArtifactError{Path: path, Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	return nil
}

// ReadRunMetadata loads run.json.
func ReadRunMetadata(path string) (model.RunMetadata, error) {
	var m model.RunMetadata
	if err := readJSON(path, &m); err != nil {
		return m, err
	}
	if err := checkVersion(path, 0, "run_schema_version", m.RunSchemaVersion, model.RunSchemaVersion); err != nil {
		return m, err
	}
	if m.RunID == "" || m.ScenarioID == "" || m.DatasetID == "" {
		return m, &ArtifactError{Path: path, Err: errors.New("run_id, scenario_id and dataset_id are required")}
	}
	if m.Seed < 0 || m.AnchorCount < 0 {
		return m, &ArtifactError{Path: path, Err: errors.New("seed and anchor_count must not be negative")}
	}
	return m, nil
}

// ReadAnchorSelection loads raw/anchors.json.
func ReadAnchorSelection(path string) (model.AnchorSelection, error) {
	var s model.AnchorSelection
	if err := readJSON(path, &s); err != nil {
		return s, err
	}
	if err := checkVersion(path, 0, "anchors_schema_version", s.AnchorsSchemaVersion, model.AnchorsSchemaVersion); err != nil {
		return s, err
	}
	for i, a := range s.Anchors {
		if a.ID == "" {
			return s, &ArtifactError{Path: path, Err: fmt.Errorf("anchor %d has an empty id", i)}
		}
	}
	return s, nil
}

// ReadLoadgenResults loads raw/loadgen_results.json.
func ReadLoadgenResults(path string) (model.LoadgenResults, error) {
	var r model.LoadgenResults
	if err := readJSON(path, &r); err != nil {
		return r, err
	}
	if err := checkVersion(path, 0, "schema_version", r.SchemaVersion, model.LoadgenSchemaVersion); err != nil {
		return r, err
	}
	return r, nil
}

// ReadSummary loads summary/summary.json.
func ReadSummary(path string) (model.RunSummary, error) {
	var s model.RunSummary
	if err := readJSON(path, &s); err != nil {
		return s, err
	}
	if err := checkVersion(path, 0, "summary_schema_version", s.SummarySchemaVersion, model.SummarySchemaVersion); err != nil {
		return s, err
	}
	return s, nil
}

// ReadBaselinePointer loads a baseline pointer file.
func ReadBaselinePointer(path string) (model.BaselinePointer, error) {
	var p model.BaselinePointer
	if err := readJSON(path, &p); err != nil {
		return p, err
	}
	if p.RunID == "" {
		return p, &ArtifactError{Path: path, Err: errors.New("run_id is required")}
	}
	return p, nil
}

// scanLines calls fn for every non-blank line with its 1-based number.
func scanLines(path string, fn func(line int, data []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ArtifactError{Path: path, Err: ErrArtifactMissing}
		}
		return &ArtifactError{Path: path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &ArtifactError{Path: path, Line: line + 1, Err: err}
	}
	return nil
}

// ScanRequests streams raw/requests.jsonl. Records without a phase are
// treated as steady state.
func ScanRequests(path string, fn func(line int, rec model.RequestRecord) error) error {
	return scanLines(path, func(line int, data []byte) error {
		var rec model.RequestRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return &ArtifactError{Path: path, Line: line, Err: fmt.Errorf("malformed JSON: %w", err)}
		}
		if err := checkVersion(path, line, "requests_schema_version", rec.RequestsSchemaVersion, model.RequestsSchemaVersion); err != nil {
			return err
		}
		if rec.AnchorID == "" || rec.RequestID == "" {
			return &ArtifactError{Path: path, Line: line, Err: errors.New("anchor_id and request_id are required")}
		}
		if rec.Phase == "" {
			rec.Phase = model.PhaseSteadyState
		}
		return fn(line, rec)
	})
}

// ReadFailures loads raw/validation_failures.jsonl. A missing file means
// zero failures.
func ReadFailures(path string) ([]model.ValidationFailure, error) {
	if !Exists(path) {
		return nil, nil
	}
	var failures []model.ValidationFailure
	err := scanLines(path, func(line int, data []byte) error {
		var f model.ValidationFailure
		if err := json.Unmarshal(data, &f); err != nil {
			return &ArtifactError{Path: path, Line: line, Err: fmt.Errorf("malformed JSON: %w", err)}
		}
		if err := checkVersion(path, line, "failures_schema_version", f.FailuresSchemaVersion, model.FailuresSchemaVersion); err != nil {
			return err
		}
		if !f.FailureType.Known() {
			return &ArtifactError{Path: path, Line: line, Err: fmt.Errorf("unknown failure_type %q", f.FailureType)}
		}
		if f.Phase == "" {
			f.Phase = model.PhaseSteadyState
		}
		failures = append(failures, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failures, nil
}

// ReadTelemetryExtract loads raw/telemetry_extract.jsonl. A missing file
// yields no events.
func ReadTelemetryExtract(path string) ([]model.TelemetryEvent, error) {
	if !Exists(path) {
		return nil, nil
	}
	var events []model.TelemetryEvent
	err := scanLines(path, func(line int, data []byte) error {
		var ev model.TelemetryEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return &ArtifactError{Path: path, Line: line, Err: fmt.Errorf("malformed JSON: %w", err)}
		}
		if err := checkVersion(path, line, "extract_schema_version", ev.ExtractSchemaVersion, model.ExtractSchemaVersion); err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
