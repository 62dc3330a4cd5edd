package loadgen

// This file contains the phased worker pool that drives traffic.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/scenario"
)

// Options configures a Generator.
type Options struct {
	RunID    string
	Scenario *scenario.Config
	// APIURL is the service base URL. BaselineURL and CandidateURL
	// override it per arm in paired mode.
	APIURL       string
	BaselineURL  string
	CandidateURL string
	Anchors      []string
	Seed         int64
	// TelemetryQueueSize bounds pending telemetry batches.
	TelemetryQueueSize int
}

// Generator issues validated similar-items requests in phases.
type Generator struct {
	logger    zerolog.Logger
	opts      Options
	cfg       *scenario.Config
	validator *responseValidator
	limiter   *rate.Limiter
	next      atomic.Uint64
	emitter   *Emitter
}

// Result is what a completed Run produced.
type Result struct {
	Results model.LoadgenResults
	// Total counts every record, warmup included.
	Total  int
	Failed int
}

// New validates the options and returns a Generator.
func New(logger zerolog.Logger, opts Options) (*Generator, error) {
	if opts.Scenario == nil {
		return nil, errors.New("scenario is required")
	}
	if len(opts.Anchors) == 0 {
		return nil, errors.New("no anchors to request")
	}
	if opts.APIURL == "" {
		return nil, errors.New("api url is required")
	}
	v, err := newResponseValidator(opts.Scenario.Validations)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		logger:    logger.With().Str("run_id", opts.RunID).Logger(),
		opts:      opts,
		cfg:       opts.Scenario,
		validator: v,
	}
	if rps := opts.Scenario.Traffic.MaxRPS; rps > 0 {
		burst := max(1, opts.Scenario.Traffic.Concurrency)
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return g, nil
}

// Run executes every phase and writes the raw artifacts of paths.
func (g *Generator) Run(ctx context.Context, paths artifacts.RunPaths) (*Result, error) {
	requests, err := artifacts.CreateJSONL(paths.Requests)
	if err != nil {
		return nil, err
	}
	failures, err := artifacts.CreateJSONL(paths.Failures)
	if err != nil {
		requests.Close()
		return nil, err
	}
	prom := newRunMetrics(g.opts.RunID, g.cfg.ScenarioID)
	rec := newRecorder(requests, failures, prom)

	if g.cfg.Telemetry.Enabled() {
		g.emitter = NewEmitter(g.logger, g.opts.APIURL, g.opts.RunID, g.opts.TelemetryQueueSize)
		g.emitter.Start(ctx)
	}

	runErr := g.runPhases(ctx, rec)

	var stats *model.TelemetryStats
	if g.emitter != nil {
		s := g.emitter.Close()
		stats = &s
		g.logger.Info().
			Int("enqueued", s.Enqueued).
			Int("dropped", s.Dropped).
			Int("inserted", s.Inserted).
			Int("duplicates", s.Duplicates).
			Msg("Telemetry emission finished")
	}

	if err := requests.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close requests stream: %w", err)
	}
	if err := failures.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close failures stream: %w", err)
	}
	if runErr != nil {
		return nil, runErr
	}

	results, err := rec.results()
	if err != nil {
		return nil, fmt.Errorf("failed to record requests: %w", err)
	}
	results.Telemetry = stats
	if err := artifacts.WriteJSON(paths.LoadgenResults, results); err != nil {
		return nil, err
	}
	if err := prom.writeTextfile(paths.LoadgenMetrics); err != nil {
		return nil, fmt.Errorf("failed to write loadgen metrics: %w", err)
	}

	total, failed := rec.counts()
	return &Result{Results: results, Total: total, Failed: failed}, nil
}

func (g *Generator) runPhases(ctx context.Context, rec *recorder) error {
	for _, plan := range g.cfg.Phases() {
		g.logger.Info().
			Str("phase", string(plan.Phase)).
			Dur("duration", plan.Duration).
			Int("request_count", plan.RequestCount).
			Int("concurrency", g.cfg.Traffic.Concurrency).
			Msg("Starting phase")
		start := time.Now()
		if err := g.runPhase(ctx, plan, rec); err != nil {
			return fmt.Errorf("phase %s failed: %w", plan.Phase, err)
		}
		total, failed := rec.counts()
		g.logger.Info().
			Str("phase", string(plan.Phase)).
			Dur("elapsed", time.Since(start)).
			Int("total_requests", total).
			Int("failed_requests", failed).
			Msg("Phase finished")
	}
	return nil
}

// runPhase runs one phase with a fixed worker pool. Count-bounded phases
// hand out exactly RequestCount tickets; duration-bounded phases stop
// once the timer flips the stop flag. In-flight calls always finish.
func (g *Generator) runPhase(ctx context.Context, plan scenario.PhasePlan, rec *recorder) error {
	var stop atomic.Bool
	var tickets atomic.Int64
	counted := plan.RequestCount > 0
	if counted {
		tickets.Store(int64(plan.RequestCount))
	} else {
		timer := time.AfterFunc(plan.Duration, func() { stop.Store(true) })
		defer timer.Stop()
	}

	concurrency := g.cfg.Traffic.Concurrency
	rampUp := g.cfg.Traffic.RampUp()

	var eg errgroup.Group
	for i := range concurrency {
		w := g.newWorker(plan.Phase, i, rec)
		delay := time.Duration(0)
		if rampUp > 0 {
			delay = rampUp * time.Duration(i) / time.Duration(concurrency)
		}
		eg.Go(func() error {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil
				}
			}
			for {
				if ctx.Err() != nil || stop.Load() {
					return nil
				}
				if counted && tickets.Add(-1) < 0 {
					return nil
				}
				if g.limiter != nil {
					if err := g.limiter.Wait(ctx); err != nil {
						return nil
					}
				}
				w.tick(ctx)
			}
		})
	}
	return eg.Wait()
}

// nextAnchor advances the shared round-robin counter.
func (g *Generator) nextAnchor() string {
	n := g.next.Add(1) - 1
	return g.opts.Anchors[n%uint64(len(g.opts.Anchors))]
}

func (g *Generator) baseURL(arm model.Arm) string {
	switch arm {
	case model.ArmBaseline:
		if g.opts.BaselineURL != "" {
			return g.opts.BaselineURL
		}
	case model.ArmCandidate:
		if g.opts.CandidateURL != "" {
			return g.opts.CandidateURL
		}
	case model.ArmNone:
	}
	return g.opts.APIURL
}

// worker owns its HTTP client and click RNG.
type worker struct {
	g      *Generator
	phase  model.Phase
	client *http.Client
	rng    *rand.Rand
	rec    *recorder
}

func (g *Generator) newWorker(phase model.Phase, index int, rec *recorder) *worker {
	return &worker{
		g:     g,
		phase: phase,
		client: &http.Client{
			Timeout:   g.cfg.Traffic.RequestTimeout(),
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		rng: rand.New(rand.NewPCG(uint64(g.opts.Seed), uint64(index)+1)),
		rec: rec,
	}
}

// tick issues one call, or one baseline/candidate pair in paired mode.
func (w *worker) tick(ctx context.Context) {
	anchorID := w.g.nextAnchor()
	if !w.g.cfg.PairedArms {
		w.call(ctx, anchorID, model.ArmNone, "")
		return
	}
	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	w.call(ctx, anchorID, model.ArmBaseline, key)
	w.call(ctx, anchorID, model.ArmCandidate, key)
}

func (w *worker) call(ctx context.Context, anchorID string, arm model.Arm, pairedKey string) {
	requestID := "req-" + uuid.NewString()[:8]
	path := "/books/" + url.PathEscape(anchorID) + "/similar"
	target := strings.TrimRight(w.g.baseURL(arm), "/") + path + "?limit=" + strconv.Itoa(w.g.cfg.Request.Limit)

	rec := model.RequestRecord{
		RequestsSchemaVersion: model.RequestsSchemaVersion,
		RunID:                 w.g.opts.RunID,
		RequestID:             requestID,
		ScenarioID:            w.g.cfg.ScenarioID,
		AnchorID:              anchorID,
		Method:                http.MethodGet,
		Path:                  path,
		Phase:                 w.phase,
		Arm:                   arm,
		PairedKey:             pairedKey,
	}

	start := time.Now()
	status, body, err := w.do(ctx, target, requestID, arm)
	rec.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	rec.Timestamp = time.Now().UTC()

	var o outcome
	if err != nil {
		o = outcome{kind: classifyTransportError(err), detail: err.Error()}
	} else {
		rec.StatusCode = &status
		o = w.g.validator.check(anchorID, status, body)
	}

	rec.Passed = o.passed()
	if !rec.Passed {
		kind := o.kind
		rec.FailureType = &kind
		if err == nil {
			b := truncateBody(body)
			rec.ResponseBody = &b
		}
	}

	w.g.logger.Debug().
		Str("request_id", requestID).
		Str("anchor_id", anchorID).
		Str("arm", string(arm)).
		Float64("latency_ms", rec.LatencyMS).
		Str("failure_type", string(o.kind)).
		Msg("Request completed")

	w.rec.record(rec, o.detail)

	if rec.Passed && w.g.emitter != nil {
		events := buildEvents(w.g.cfg.Telemetry, w.g.opts.RunID, requestID, anchorID, arm, o, w.rng, rec.Timestamp)
		w.g.emitter.Enqueue(model.EventBatch{Events: events})
	}
}

func (w *worker) do(ctx context.Context, target, requestID string, arm model.Arm) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Eval-Run-Id", w.g.opts.RunID)
	req.Header.Set("X-Request-Id", requestID)
	if arm != model.ArmNone {
		req.Header.Set("X-Eval-Arm", string(arm))
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func classifyTransportError(err error) model.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}
	return model.FailureConnectionError
}
