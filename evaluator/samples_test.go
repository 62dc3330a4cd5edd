package evaluator

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valery-judah/semantic-shelf/model"
)

func TestExtractSamplesNames(t *testing.T) {
	tests := []struct {
		name     string
		requests [][2]string
		targets  []string
		cap      int
		want     []string
	}{
		{
			name:     "repeated request id",
			requests: [][2]string{{"req-a", "2"}, {"req-a", "2"}, {"req-b", "2"}},
			targets:  []string{"2"},
			cap:      3,
			want: []string{
				"raw/sample_requests/2/req-a.json",
				"raw/sample_requests/2/req-a__2.json",
				"raw/sample_requests/2/req-b.json",
			},
		},
		{
			name:     "request id shaped like a suffixed name",
			requests: [][2]string{{"req-a", "2"}, {"req-a", "2"}, {"req-a__2", "2"}},
			targets:  []string{"2"},
			cap:      3,
			want: []string{
				"raw/sample_requests/2/req-a.json",
				"raw/sample_requests/2/req-a__2.json",
				"raw/sample_requests/2/req-a__2__2.json",
			},
		},
		{
			name:     "anchors differing in separators",
			requests: [][2]string{{"req-1", "a/b"}, {"req-2", "a_b"}, {"req-3", `a\b`}},
			targets:  []string{"a/b", "a_b", `a\b`},
			cap:      1,
			want: []string{
				"raw/sample_requests/a%2Fb/req-1.json",
				"raw/sample_requests/a_b/req-2.json",
				"raw/sample_requests/a%5Cb/req-3.json",
			},
		},
		{
			name:     "dot names",
			requests: [][2]string{{"..", "."}, {".", ".."}},
			targets:  []string{".", ".."},
			cap:      1,
			want: []string{
				"raw/sample_requests/%2E/%2E%2E.json",
				"raw/sample_requests/%2E%2E/%2E.json",
			},
		},
		{
			name:     "cap per anchor",
			requests: [][2]string{{"req-1", "1"}, {"req-2", "1"}, {"req-3", "1"}, {"req-4", "3"}},
			targets:  []string{"1"},
			cap:      2,
			want: []string{
				"raw/sample_requests/1/req-1.json",
				"raw/sample_requests/1/req-2.json",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, r := range tt.requests {
				f.add(r[0], r[1], 10, model.FailureMissingKey)
			}
			paths := f.write()

			files, err := ExtractSamples(paths, tt.targets, tt.cap)
			require.NoError(t, err)
			require.Equal(t, tt.want, files)
			for _, rel := range files {
				require.FileExists(t, filepath.Join(paths.Dir, filepath.FromSlash(rel)))
			}
		})
	}
}
