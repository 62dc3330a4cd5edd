package loadgen

import (
	"sync"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/metrics"
	"github.com/valery-judah/semantic-shelf/model"
)

// recorder is the single sink shared by all workers. Records are appended
// to the request stream as they complete.
type recorder struct {
	mu       sync.Mutex
	requests *artifacts.JSONLWriter
	failures *artifacts.JSONLWriter
	steady   *metrics.Accumulator
	prom     *runMetrics
	total    int
	failed   int
	err      error
}

func newRecorder(requests, failures *artifacts.JSONLWriter, prom *runMetrics) *recorder {
	return &recorder{
		requests: requests,
		failures: failures,
		steady:   metrics.NewAccumulator(),
		prom:     prom,
	}
}

func (r *recorder) record(rec model.RequestRecord, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	if err := r.requests.Append(rec); err != nil && r.err == nil {
		r.err = err
	}
	if f, ok := model.FailureFromRecord(rec, detail); ok {
		r.failed++
		if err := r.failures.Append(f); err != nil && r.err == nil {
			r.err = err
		}
	}
	if rec.Phase == model.PhaseSteadyState {
		r.steady.Add(rec)
	}
	if r.prom != nil {
		r.prom.observe(rec)
	}
}

// results returns the steady-state results and the first write error.
func (r *recorder) results() (model.LoadgenResults, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steady.LoadgenResults(), r.err
}

func (r *recorder) counts() (total, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total, r.failed
}
