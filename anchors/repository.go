package anchors

// This file contains the anchor sources: file-backed golden sets and the
// built-in catalog.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/valery-judah/semantic-shelf/model"
)

var (
	// ErrAnchorsNotFound means neither a golden set nor a catalog entry
	// exists for the requested dataset and scenario.
	ErrAnchorsNotFound = errors.New("anchors not found")
	// ErrGoldenSetNotFound means no golden set file exists for a dataset.
	ErrGoldenSetNotFound = fmt.Errorf("golden set not found: %w", ErrAnchorsNotFound)
	// ErrScenarioMismatch means a golden set was recorded for another
	// scenario. It never wraps ErrAnchorsNotFound.
	ErrScenarioMismatch = errors.New("scenario mismatch")
)

// GoldenRepository loads frozen golden sets.
type GoldenRepository interface {
	// Load returns the golden set of datasetID, or an error wrapping
	// ErrGoldenSetNotFound.
	Load(datasetID string) (*model.GoldenSet, error)
}

// Catalog lists anchor ids per dataset and scenario.
type Catalog interface {
	Lookup(datasetID, scenarioID string) ([]string, bool)
}

// FileGoldenRepository reads <dir>/<dataset_id>.json.
type FileGoldenRepository struct {
	Dir string
}

// NewFileGoldenRepository returns a repository rooted at dir
// (usually scenarios/goldens).
func NewFileGoldenRepository(dir string) *FileGoldenRepository {
	return &FileGoldenRepository{Dir: dir}
}

func (r *FileGoldenRepository) path(datasetID string) string {
	return filepath.Join(r.Dir, datasetID+".json")
}

func (r *FileGoldenRepository) Load(datasetID string) (*model.GoldenSet, error) {
	path := r.path(datasetID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrGoldenSetNotFound, path)
		}
		return nil, fmt.Errorf("failed to read golden set %s: %w", path, err)
	}
	var set model.GoldenSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse golden set %s: %w", path, err)
	}
	if len(set.Anchors) == 0 {
		return nil, fmt.Errorf("golden set %s has no anchors", path)
	}
	for i, a := range set.Anchors {
		if a.AnchorID == "" {
			return nil, fmt.Errorf("golden set %s: anchor %d has an empty anchor_id", path, i)
		}
	}
	return &set, nil
}

// StaticCatalog is an immutable dataset -> scenario -> ids table.
type StaticCatalog map[string]map[string][]string

func (c StaticCatalog) Lookup(datasetID, scenarioID string) ([]string, bool) {
	scenarios, ok := c[datasetID]
	if !ok {
		return nil, false
	}
	ids, ok := scenarios[scenarioID]
	return ids, ok
}

// BuiltinCatalog returns the catalog used when no golden set exists.
func BuiltinCatalog() StaticCatalog {
	return StaticCatalog{
		"local_dev": {
			"similar_books_smoke": {"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"},
		},
	}
}
