package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valery-judah/semantic-shelf/model"
)

const smokeYAML = `
schema_version: "1.0.0"
scenario_id: similar_books_smoke
scenario_version: "1.0"
traffic:
  concurrency: 4
  request_count: 40
  ramp_up_seconds: 1.5
  warmup_request_count: 8
anchors:
  anchor_count: 6
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(smokeYAML), "smoke.yaml")
	require.NoError(t, err)

	require.Equal(t, "similar_books_smoke", cfg.ScenarioID)
	require.Equal(t, 200, cfg.Validations.StatusCode)
	require.Equal(t, []string{"similar_book_ids"}, cfg.Validations.ResponseHasKeys)
	require.True(t, cfg.Validations.NoDuplicates)
	require.True(t, cfg.Validations.AnchorNotInResults)
	require.Equal(t, DefaultResultsKey, cfg.Validations.ResultsPath)
	require.Equal(t, 10, cfg.Request.Limit)
	require.Equal(t, 5*time.Second, cfg.Traffic.RequestTimeout())
	require.Equal(t, 1500*time.Millisecond, cfg.Traffic.RampUp())
	require.False(t, cfg.Telemetry.Enabled())
	require.Equal(t, "request_count=40", cfg.Mode())

	phases := cfg.Phases()
	require.Equal(t, []PhasePlan{
		{Phase: model.PhaseWarmup, RequestCount: 8},
		{Phase: model.PhaseSteadyState, RequestCount: 40},
	}, phases)
}

func TestParseExplicitOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
schema_version: "1.0.0"
scenario_id: s
traffic:
  concurrency: 1
  duration_seconds: 2.5
anchors:
  anchor_count: 1
validations:
  status_code: 201
  response_has_keys: [items, meta]
  no_duplicates: false
telemetry:
  emit_telemetry: true
  click_model: fixed_ctr
  fixed_ctr: 0.25
paired_arms: true
`), "s.yaml")
	require.NoError(t, err)
	require.Equal(t, 201, cfg.Validations.StatusCode)
	require.Equal(t, []string{"items", "meta"}, cfg.Validations.ResponseHasKeys)
	require.False(t, cfg.Validations.NoDuplicates)
	require.True(t, cfg.Validations.AnchorNotInResults)
	require.True(t, cfg.Telemetry.Enabled())
	require.True(t, cfg.PairedArms)
	require.Equal(t, "duration_seconds=2.5", cfg.Mode())
	require.Equal(t, []PhasePlan{{Phase: model.PhaseSteadyState, Duration: 2500 * time.Millisecond}}, cfg.Phases())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		traffic string
		extra   string
		want    string
	}{
		{
			name:    "both bounds",
			traffic: "concurrency: 1\n  duration_seconds: 1\n  request_count: 2",
			want:    "exactly one of traffic.duration_seconds or traffic.request_count",
		},
		{
			name:    "no bound",
			traffic: "concurrency: 1",
			want:    "exactly one of traffic.duration_seconds or traffic.request_count",
		},
		{
			name:    "zero concurrency",
			traffic: "concurrency: 0\n  request_count: 2",
			want:    "concurrency must satisfy gt=0",
		},
		{
			name:    "negative ramp up",
			traffic: "concurrency: 1\n  request_count: 2\n  ramp_up_seconds: -1",
			want:    "ramp_up_seconds must satisfy gte=0",
		},
		{
			name:    "both warmup bounds",
			traffic: "concurrency: 1\n  request_count: 2\n  warmup_seconds: 1\n  warmup_request_count: 1",
			want:    "only one of traffic.warmup_seconds or traffic.warmup_request_count",
		},
		{
			name:    "fixed ctr missing",
			traffic: "concurrency: 1\n  request_count: 2",
			extra:   "telemetry:\n  click_model: fixed_ctr\n",
			want:    "telemetry.fixed_ctr is required",
		},
		{
			name:    "fixed ctr out of range",
			traffic: "concurrency: 1\n  request_count: 2",
			extra:   "telemetry:\n  click_model: fixed_ctr\n  fixed_ctr: 1.5\n",
			want:    "fixed_ctr must satisfy lte=1",
		},
		{
			name:    "unknown click model",
			traffic: "concurrency: 1\n  request_count: 2",
			extra:   "telemetry:\n  click_model: always\n",
			want:    "click_model must satisfy oneof",
		},
		{
			name:    "unknown key",
			traffic: "concurrency: 1\n  request_count: 2",
			extra:   "surprise: true\n",
			want:    "surprise",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "schema_version: \"1.0.0\"\nscenario_id: s\nanchors:\n  anchor_count: 1\ntraffic:\n  " + tt.traffic + "\n" + tt.extra
			_, err := Parse([]byte(doc), "s.yaml")
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseRejectsSchemaVersion(t *testing.T) {
	_, err := Parse([]byte("schema_version: \"2.0.0\"\nscenario_id: s\ntraffic:\n  concurrency: 1\n  request_count: 1\nanchors:\n  anchor_count: 1\n"), "s.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), `schema_version "2.0.0" is not supported`)
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir, "missing")
	require.NoError(t, err)
	require.Nil(t, cfg)

	require.NoError(t, os.WriteFile(Path(dir, "similar_books_smoke"), []byte(smokeYAML), 0644))
	cfg, err = LoadOptional(dir, "similar_books_smoke")
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Traffic.Concurrency)
}

func TestParseSlices(t *testing.T) {
	cfg, err := ParseSlices([]byte(`
slices:
  - slice_id: fantasy
    description: Fantasy books
    priority: 1
    membership_rule:
      type: field_equals
      field: genre
      value: fantasy
  - slice_id: old
    description: Published before 1950
    priority: 2
    min_sample_size: 5
    membership_rule:
      type: numeric_range
      field: year
      max_value: 1949
`), "slices.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Slices, 2)
	require.Equal(t, 1, cfg.Slices[0].MinSampleSize)
	require.Equal(t, 5, cfg.Slices[1].MinSampleSize)
	require.Equal(t, 1949.0, *cfg.Slices[1].MembershipRule.MaxValue)

	_, err = ParseSlices([]byte(`
slices:
  - slice_id: x
    description: d
    priority: 0
    membership_rule:
      type: field_in
      field: genre
`), "slices.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "priority must satisfy gte=1")
	require.Contains(t, err.Error(), "field_in requires field and values")
}

func TestLoadSlicesOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadSlicesOptional(dir, "s")
	require.NoError(t, err)
	require.Nil(t, cfg)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "slices"), 0755))
	require.NoError(t, os.WriteFile(SlicesPath(dir, "s"), []byte("slices:\n  - slice_id: a\n    description: d\n    priority: 1\n    membership_rule:\n      type: explicit_anchor_ids\n      anchor_ids: [\"1\"]\n"), 0644))
	cfg, err = LoadSlicesOptional(dir, "s")
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, cfg.Slices[0].MembershipRule.AnchorIDs)
}
