package compare

// This file contains baseline resolution and promotion.

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/model"
)

const envPrefix = "EVAL_BASELINE_"

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// EnvKey is the normalized override variable of a scenario, e.g.
// EVAL_BASELINE_SIMILAR_BOOKS_SMOKE.
func EnvKey(scenarioID string) string {
	suffix := nonAlnum.ReplaceAllString(strings.ToUpper(scenarioID), "_")
	return envPrefix + strings.Trim(suffix, "_")
}

// LegacyEnvKey is the uppercased but otherwise unnormalized variable name.
func LegacyEnvKey(scenarioID string) string {
	return envPrefix + strings.ToUpper(scenarioID)
}

// Source names where a baseline was found.
type Source string

const (
	SourceEnv       Source = "env"
	SourceLegacyEnv Source = "legacy_env"
	SourcePointer   Source = "pointer"
)

// Baseline is a resolved baseline run.
type Baseline struct {
	RunID  string
	Source Source
	// Origin is the variable name or pointer path.
	Origin string
}

// Store resolves and promotes scenario baselines.
type Store struct {
	logger zerolog.Logger
	layout artifacts.Layout
	getenv func(string) string
	now    func() time.Time
}

// NewStore returns a store reading the process environment.
func NewStore(logger zerolog.Logger, layout artifacts.Layout) *Store {
	return &Store{logger: logger, layout: layout, getenv: os.Getenv, now: time.Now}
}

// Resolve returns the baseline of scenarioID, or nil when none is set.
// Environment overrides win over the pointer file.
func (s *Store) Resolve(scenarioID string) (*Baseline, error) {
	for _, c := range []struct {
		key    string
		source Source
	}{
		{EnvKey(scenarioID), SourceEnv},
		{LegacyEnvKey(scenarioID), SourceLegacyEnv},
	} {
		if v := strings.TrimSpace(s.getenv(c.key)); v != "" {
			s.logger.Debug().Str("variable", c.key).Str("baseline_run_id", v).Msg("Baseline from environment")
			return &Baseline{RunID: v, Source: c.source, Origin: c.key}, nil
		}
	}

	path := s.layout.BaselinePointer(scenarioID)
	if !artifacts.Exists(path) {
		return nil, nil
	}
	p, err := artifacts.ReadBaselinePointer(path)
	if err != nil {
		return nil, err
	}
	if p.ScenarioID != "" && p.ScenarioID != scenarioID {
		return nil, &artifacts.ArtifactError{
			Path: path,
			Err:  fmt.Errorf("pointer scenario_id %q does not match %q", p.ScenarioID, scenarioID),
		}
	}
	return &Baseline{RunID: p.RunID, Source: SourcePointer, Origin: path}, nil
}

// Promote makes runID the baseline of its scenario. The run must have
// been evaluated.
func (s *Store) Promote(runID string) (model.BaselinePointer, error) {
	paths := s.layout.Run(runID)
	run, err := artifacts.ReadRunMetadata(paths.RunJSON)
	if err != nil {
		return model.BaselinePointer{}, err
	}
	if _, err := artifacts.ReadSummary(paths.Summary); err != nil {
		return model.BaselinePointer{}, fmt.Errorf("run %s has not been evaluated: %w", runID, err)
	}

	p := model.BaselinePointer{
		RunID:      runID,
		ScenarioID: run.ScenarioID,
		PromotedAt: s.now().UTC(),
	}
	if err := artifacts.WriteJSON(s.layout.BaselinePointer(run.ScenarioID), p); err != nil {
		return model.BaselinePointer{}, err
	}
	s.logger.Info().Str("run_id", runID).Str("scenario_id", run.ScenarioID).Msg("Promoted baseline")
	return p, nil
}
