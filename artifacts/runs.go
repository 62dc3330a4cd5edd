package artifacts

// This file contains utilities for loading the history of evaluation runs.

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/valery-judah/semantic-shelf/model"
)

// Entry is one run found below the eval directory.
type Entry struct {
	Run      model.RunMetadata
	Summary  *model.RunSummary
	FullPath string
}

// Failed reports whether the stored summary shows steady-state failures.
func (e Entry) Failed() bool {
	return e.Summary != nil && e.Summary.Counts.FailedRequests > 0
}

// LoadEntries loads every run that has a readable run.json, newest first.
// Runs with unreadable metadata are skipped with a warning.
func LoadEntries(logger zerolog.Logger, layout Layout) ([]Entry, error) {
	dirs, err := os.ReadDir(layout.EvalDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", layout.EvalDir(), err)
	}

	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		paths := layout.Run(d.Name())
		if !Exists(paths.RunJSON) {
			continue
		}
		run, err := ReadRunMetadata(paths.RunJSON)
		if err != nil {
			logger.Warn().Err(err).Str("path", paths.RunJSON).Msg("Failed to parse run.json")
			continue
		}
		entry := Entry{Run: run, FullPath: paths.Dir}
		if Exists(paths.Summary) {
			summary, err := ReadSummary(paths.Summary)
			if err != nil {
				logger.Warn().Err(err).Str("path", paths.Summary).Msg("Failed to parse summary.json")
			} else {
				entry.Summary = &summary
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Run.CreatedAt.Equal(entries[j].Run.CreatedAt) {
			return entries[i].Run.RunID < entries[j].Run.RunID
		}
		return entries[i].Run.CreatedAt.After(entries[j].Run.CreatedAt)
	})
	return entries, nil
}
