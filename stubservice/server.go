// Package stubservice is a stand-in for the recommendation service. It
// serves deterministic similar-book lists and an idempotent telemetry
// ingestion endpoint, and can inject faults for chosen anchors.
package stubservice

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/valery-judah/semantic-shelf/model"
)

const (
	AlgoID      = "stub"
	RecsVersion = "v0"
	maxLimit    = 100
)

// Fault is a canned misbehaviour for one anchor.
type Fault string

const (
	FaultServerError   Fault = "server_error"
	FaultInvalidJSON   Fault = "invalid_json"
	FaultMissingKey    Fault = "missing_key"
	FaultDuplicates    Fault = "duplicates"
	FaultIncludeAnchor Fault = "include_anchor"
	FaultSlow          Fault = "slow"
)

// ParseFault validates a fault name.
func ParseFault(s string) (Fault, error) {
	switch f := Fault(s); f {
	case FaultServerError, FaultInvalidJSON, FaultMissingKey, FaultDuplicates, FaultIncludeAnchor, FaultSlow:
		return f, nil
	}
	return "", fmt.Errorf("unknown fault %q", s)
}

// EventSink stores telemetry batches idempotently.
type EventSink interface {
	InsertBatch(ctx context.Context, events []model.IngestEvent) (inserted, duplicates int, err error)
}

// Options configures the stub.
type Options struct {
	// Latency is added to every similar-books response.
	Latency time.Duration
	// SlowLatency is the delay of FaultSlow anchors.
	SlowLatency time.Duration
	Faults      map[string]Fault
	// Events may be nil, in which case telemetry is rejected with 503.
	Events EventSink
}

// Server holds the handlers.
type Server struct {
	logger zerolog.Logger
	opts   Options
}

// New returns an echo instance with every route registered.
func New(logger zerolog.Logger, opts Options) *echo.Echo {
	s := &Server{logger: logger, opts: opts}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)
	s.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers the service routes on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/books/:id/similar", s.Similar)
	e.POST("/telemetry/events", s.IngestEvents)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Debug().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("request_id", c.Request().Header.Get("X-Request-Id")).
			Str("arm", c.Request().Header.Get("X-Eval-Arm")).
			Int("status", c.Response().Status).
			Dur("elapsed", time.Since(start)).
			Msg("Handled request")
		return err
	}
}

// SimilarResponse is the body of GET /books/:id/similar.
type SimilarResponse struct {
	SimilarBookIDs []string `json:"similar_book_ids"`
	AlgoID         string   `json:"algo_id"`
	RecsVersion    string   `json:"recs_version"`
}

// Similar returns up to limit neighbours of the anchor.
// GET /books/:id/similar?limit=N
func (s *Server) Similar(c echo.Context) error {
	id := c.Param("id")
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "limit must be between 1 and 100"})
		}
		limit = n
	}

	fault := s.opts.Faults[id]
	delay := s.opts.Latency
	if fault == FaultSlow {
		delay += s.opts.SlowLatency
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	resp := SimilarResponse{
		SimilarBookIDs: Neighbours(id, limit),
		AlgoID:         AlgoID,
		RecsVersion:    RecsVersion,
	}
	switch fault {
	case FaultServerError:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "injected failure"})
	case FaultInvalidJSON:
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(`{"similar_book_ids": [`))
	case FaultMissingKey:
		return c.JSON(http.StatusOK, map[string]string{"algo_id": AlgoID})
	case FaultDuplicates:
		if len(resp.SimilarBookIDs) > 0 {
			resp.SimilarBookIDs = append(resp.SimilarBookIDs, resp.SimilarBookIDs[0])
		}
	case FaultIncludeAnchor:
		resp.SimilarBookIDs = append([]string{id}, resp.SimilarBookIDs...)
	case FaultSlow:
	}
	return c.JSON(http.StatusOK, resp)
}

// Neighbours is id+1..id+limit for numeric ids and id-1..id-limit
// otherwise. The anchor itself is never included.
func Neighbours(id string, limit int) []string {
	ids := make([]string, 0, limit)
	if n, err := strconv.Atoi(id); err == nil {
		for i := 1; i <= limit; i++ {
			ids = append(ids, strconv.Itoa(n+i))
		}
		return ids
	}
	for i := 1; i <= limit; i++ {
		ids = append(ids, id+"-"+strconv.Itoa(i))
	}
	return ids
}

// IngestEvents stores a batch of telemetry events.
// POST /telemetry/events
func (s *Server) IngestEvents(c echo.Context) error {
	if s.opts.Events == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "telemetry store not configured"})
	}
	var batch model.EventBatch
	if err := c.Bind(&batch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(batch.Events) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "events must not be empty"})
	}
	for i, ev := range batch.Events {
		if ev.IdempotencyKey == "" || ev.RunID == "" || ev.RequestID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("event %d: idempotency_key, run_id and request_id are required", i),
			})
		}
		if ev.EventName != model.EventImpression && ev.EventName != model.EventClick {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("event %d: unknown event_name %q", i, ev.EventName),
			})
		}
	}

	inserted, dups, err := s.opts.Events.InsertBatch(c.Request().Context(), batch.Events)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to store telemetry batch")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to store events"})
	}
	return c.JSON(http.StatusOK, model.EventBatchResponse{
		Status:         "accepted",
		InsertedCount:  inserted,
		DuplicateCount: dups,
	})
}
