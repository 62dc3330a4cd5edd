package evaluator

// This file contains debug sample extraction.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
)

// ExtractSamples copies up to sampleCap records of every target anchor
// into raw/sample_requests/<anchor>/<request_id>.json, first seen first.
// Both ids are escaped with artifacts.SampleName.
// A name already used in the anchor directory, for instance by a repeated
// request id, is written as <request_id>__N.json with the smallest free N.
// The sample directory is recreated on every call. Returned paths are
// relative to the run directory.
func ExtractSamples(paths artifacts.RunPaths, targets []string, sampleCap int) ([]string, error) {
	if err := os.RemoveAll(paths.SampleRequests); err != nil {
		return nil, fmt.Errorf("failed to clear samples: %w", err)
	}
	if len(targets) == 0 || sampleCap <= 0 {
		return []string{}, nil
	}

	remaining := make(map[string]int, len(targets))
	for _, id := range targets {
		remaining[id] = sampleCap
	}
	// used file names per anchor directory
	used := make(map[string]map[string]bool)
	files := []string{}

	err := artifacts.ScanRequests(paths.Requests, func(_ int, rec model.RequestRecord) error {
		left, ok := remaining[rec.AnchorID]
		if !ok {
			return nil
		}
		names := used[rec.AnchorID]
		if names == nil {
			names = make(map[string]bool)
			used[rec.AnchorID] = names
		}
		name := uniqueName(names, artifacts.SampleName(rec.RequestID))
		path := filepath.Join(paths.SampleDir(rec.AnchorID), name+".json")
		if err := writeSample(path, rec); err != nil {
			return err
		}
		files = append(files, paths.Rel(path))

		if left--; left == 0 {
			delete(remaining, rec.AnchorID)
			if len(remaining) == 0 {
				return errDone
			}
		} else {
			remaining[rec.AnchorID] = left
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDone) {
		return nil, err
	}
	return files, nil
}

// errDone stops the scan once every target is capped.
var errDone = errors.New("all samples extracted")

func writeSample(path string, rec model.RequestRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// uniqueName returns base, or base__N with the smallest free N >= 2, and
// marks the result as used.
func uniqueName(used map[string]bool, base string) string {
	name := base
	for n := 2; used[name]; n++ {
		name = base + "__" + strconv.Itoa(n)
	}
	used[name] = true
	return name
}
