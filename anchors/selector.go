package anchors

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/valery-judah/semantic-shelf/model"
)

// Selector draws a deterministic anchor sample.
type Selector struct {
	goldens GoldenRepository
	catalog Catalog
}

// NewSelector returns a selector that prefers golden sets over the catalog.
// Either source may be nil.
func NewSelector(goldens GoldenRepository, catalog Catalog) *Selector {
	return &Selector{goldens: goldens, catalog: catalog}
}

// Select returns up to count anchors. The result depends only on the
// arguments and the pool contents, never on the run or on wall time.
func (s *Selector) Select(datasetID, scenarioID string, seed int64, count int) ([]model.Anchor, error) {
	if count <= 0 {
		return []model.Anchor{}, nil
	}

	pool, err := s.pool(datasetID, scenarioID)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}
	shuffle(newRNG(datasetID, scenarioID, seed), idx)

	if count > len(idx) {
		count = len(idx)
	}
	out := make([]model.Anchor, count)
	for i := 0; i < count; i++ {
		out[i] = pool[idx[i]]
	}
	return out, nil
}

func (s *Selector) pool(datasetID, scenarioID string) ([]model.Anchor, error) {
	if s.goldens != nil {
		set, err := s.goldens.Load(datasetID)
		switch {
		case err == nil:
			if set.ScenarioID != scenarioID {
				return nil, fmt.Errorf("%w: golden set %q of dataset %q is for scenario %q, not %q",
					ErrScenarioMismatch, set.GoldenID, datasetID, set.ScenarioID, scenarioID)
			}
			pool := make([]model.Anchor, len(set.Anchors))
			for i, a := range set.Anchors {
				pool[i] = model.Anchor{ID: a.AnchorID, Metadata: a.Metadata}
			}
			return pool, nil
		case !errors.Is(err, ErrGoldenSetNotFound):
			return nil, err
		}
	}

	if s.catalog != nil {
		if ids, ok := s.catalog.Lookup(datasetID, scenarioID); ok {
			pool := make([]model.Anchor, len(ids))
			for i, id := range ids {
				pool[i] = model.Anchor{ID: id}
			}
			return pool, nil
		}
	}
	return nil, fmt.Errorf("%w: dataset %q scenario %q", ErrAnchorsNotFound, datasetID, scenarioID)
}

// newRNG seeds a PCG generator from SHA-256("{dataset}:{scenario}:{seed}").
func newRNG(datasetID, scenarioID string, seed int64) *rand.PCG {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", datasetID, scenarioID, seed)))
	return rand.NewPCG(binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16]))
}

// shuffle is a Fisher-Yates shuffle driven only by PCG output, so the
// order stays fixed across Go releases.
func shuffle(src *rand.PCG, idx []int) {
	for i := len(idx) - 1; i > 0; i-- {
		j := int(src.Uint64() % uint64(i+1))
		idx[i], idx[j] = idx[j], idx[i]
	}
}
