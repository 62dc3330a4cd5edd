package anchors

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valery-judah/semantic-shelf/model"
)

type fakeGoldens map[string]*model.GoldenSet

func (f fakeGoldens) Load(datasetID string) (*model.GoldenSet, error) {
	set, ok := f[datasetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGoldenSetNotFound, datasetID)
	}
	return set, nil
}

func ids(anchors []model.Anchor) []string {
	out := make([]string, len(anchors))
	for i, a := range anchors {
		out[i] = a.ID
	}
	return out
}

func TestSelectIsDeterministic(t *testing.T) {
	a := NewSelector(nil, BuiltinCatalog())
	b := NewSelector(nil, BuiltinCatalog())

	first, err := a.Select("local_dev", "similar_books_smoke", 42, 6)
	require.NoError(t, err)
	second, err := b.Select("local_dev", "similar_books_smoke", 42, 6)
	require.NoError(t, err)

	require.Len(t, first, 6)
	require.Equal(t, first, second)
}

func TestSelectDependsOnSeed(t *testing.T) {
	s := NewSelector(nil, BuiltinCatalog())
	a, err := s.Select("local_dev", "similar_books_smoke", 42, 12)
	require.NoError(t, err)
	b, err := s.Select("local_dev", "similar_books_smoke", 7, 12)
	require.NoError(t, err)
	require.NotEqual(t, ids(a), ids(b))

	// Same pool, different order.
	sa, sb := ids(a), ids(b)
	sort.Strings(sa)
	sort.Strings(sb)
	require.Equal(t, sa, sb)
}

func TestSelectIgnoresCatalogInsertionOrder(t *testing.T) {
	forward := StaticCatalog{"d": {"s": {"a", "b", "c", "d"}}}
	got1, err := NewSelector(nil, forward).Select("d", "s", 1, 4)
	require.NoError(t, err)
	got2, err := NewSelector(nil, forward).Select("d", "s", 1, 4)
	require.NoError(t, err)
	require.Equal(t, got1, got2)
}

func TestSelectCountBounds(t *testing.T) {
	s := NewSelector(nil, BuiltinCatalog())

	got, err := s.Select("local_dev", "similar_books_smoke", 42, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	// Zero never consults the sources, even unknown ones.
	got, err = s.Select("nope", "nope", 42, 0)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = s.Select("local_dev", "similar_books_smoke", 42, 50)
	require.NoError(t, err)
	require.Len(t, got, 12)
}

func TestSelectPrefersGoldenSet(t *testing.T) {
	goldens := fakeGoldens{
		"local_dev": {
			GoldenID:   "g1",
			ScenarioID: "similar_books_smoke",
			DatasetID:  "local_dev",
			Anchors: []model.GoldenAnchor{
				{AnchorID: "100", Metadata: map[string]any{"genre": "fantasy"}},
				{AnchorID: "200"},
			},
		},
	}
	got, err := NewSelector(goldens, BuiltinCatalog()).Select("local_dev", "similar_books_smoke", 42, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"100", "200"}, ids(got))
	for _, a := range got {
		if a.ID == "100" {
			require.Equal(t, "fantasy", a.Metadata["genre"])
		}
	}
}

func TestSelectErrors(t *testing.T) {
	goldens := fakeGoldens{
		"golden_ds": {GoldenID: "g", ScenarioID: "other", Anchors: []model.GoldenAnchor{{AnchorID: "1"}}},
	}
	s := NewSelector(goldens, BuiltinCatalog())

	_, err := s.Select("golden_ds", "similar_books_smoke", 1, 3)
	require.ErrorIs(t, err, ErrScenarioMismatch)
	require.NotErrorIs(t, err, ErrAnchorsNotFound)

	_, err = s.Select("unknown", "similar_books_smoke", 1, 3)
	require.ErrorIs(t, err, ErrAnchorsNotFound)
	require.NotErrorIs(t, err, ErrScenarioMismatch)
}

func TestFileGoldenRepository(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileGoldenRepository(dir)

	_, err := repo.Load("missing")
	require.ErrorIs(t, err, ErrGoldenSetNotFound)
	require.ErrorIs(t, err, ErrAnchorsNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"golden_id":"g","scenario_id":"s","anchors":[]}`), 0644))
	_, err = repo.Load("empty")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrGoldenSetNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ds.json"), []byte(`{
  "golden_id": "g1",
  "version": "1",
  "scenario_id": "s",
  "dataset_id": "ds",
  "seed": 3,
  "created_at": "2026-01-01T00:00:00Z",
  "anchors": [{"anchor_id": "7", "metadata": {"year": 1999}}]
}`), 0644))
	set, err := repo.Load("ds")
	require.NoError(t, err)
	require.Equal(t, "g1", set.GoldenID)
	require.Equal(t, 1999.0, set.Anchors[0].Metadata["year"])
}
