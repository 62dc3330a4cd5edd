package cli

// This file contains the list command for displaying previous runs.

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/artifacts"
)

func (a *App) list(ctx *cli.Context) error {
	w := a.workspace(ctx)

	entries, err := artifacts.LoadEntries(a.logger, w.layout)
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}
	printEntries(w.out, entries, ctx.String("scenario"), ctx.Int("limit"))
	return nil
}

// printEntries writes entries, newest first, keeping only runs of
// scenarioID when it is set.
func printEntries(out io.Writer, entries []artifacts.Entry, scenarioID string, limit int) {
	// Indexes are kept from the unfiltered list so they work with view.
	var filtered []int
	for i, entry := range entries {
		if scenarioID == "" || entry.Run.ScenarioID == scenarioID {
			filtered = append(filtered, i)
		}
	}

	if len(filtered) == 0 {
		if scenarioID != "" {
			fmt.Fprintf(out, "No runs found for scenario: %s\n", scenarioID)
		} else {
			fmt.Fprintln(out, "No runs found")
		}
		return
	}

	display := filtered
	if limit > 0 && limit < len(display) {
		display = display[:limit]
	}

	fmt.Fprintf(out, "\n=== Runs (%d total) ===\n\n", len(filtered))

	for _, i := range display {
		entry := entries[i]
		run := entry.Run
		timestamp := run.CreatedAt.Local().Format("2006-01-02 15:04:05")

		// ? until the run has been evaluated
		status := "?"
		if entry.Summary != nil {
			status = "✓"
			if entry.Failed() {
				status = "✗"
			}
		}

		fmt.Fprintf(out, "%s  %s  [%d]  %s\n", status, timestamp, -i, run.RunID)
		fmt.Fprintf(out, "   Scenario: %s (v%s)  Dataset: %s  Seed: %d\n",
			run.ScenarioID, run.ScenarioVersion, run.DatasetID, run.Seed)
		if run.GitSHA != "" && run.GitSHA != "unknown" {
			shortCommit := run.GitSHA
			if len(shortCommit) > 8 {
				shortCommit = shortCommit[:8]
			}
			fmt.Fprintf(out, "   Commit: %s\n", shortCommit)
		}
		if s := entry.Summary; s != nil {
			fmt.Fprintf(out, "   Requests: %d  Failed: %d  p95: %s\n",
				s.Counts.TotalRequests, s.Counts.FailedRequests, fmtMillis(s.Latency.P95MS))
		}
		fmt.Fprintf(out, "   %s\n", entry.FullPath)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "View report: %s view <INDEX|RUN_ID>\n", AppName)
}

func fmtMillis(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f ms", *v)
}
