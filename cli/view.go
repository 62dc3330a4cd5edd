package cli

// This file contains the view command for displaying the report of a run.

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/artifacts"
)

func parseViewArg(in []string) string {
	if len(in) == 0 || in[0] == "--" {
		return "0"
	}
	return in[0]
}

// selectEntry finds the entry named by arg in entries sorted newest first.
// 0 is the newest run, -1 the one before it and so on; anything else is a
// run id prefix.
func selectEntry(entries []artifacts.Entry, arg string) (*artifacts.Entry, error) {
	if len(entries) == 0 {
		return nil, errors.New("no runs found")
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d runs)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if entries[i].Run.RunID == arg {
			return &entries[i], nil
		}
	}
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].Run.RunID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no run found matching ID: %s", arg)
}

func (a *App) view(ctx *cli.Context) error {
	w := a.workspace(ctx)

	entries, err := artifacts.LoadEntries(a.logger, w.layout)
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}
	entry, err := selectEntry(entries, parseViewArg(ctx.Args().Slice()))
	if err != nil {
		return err
	}

	paths := w.layout.Run(entry.Run.RunID)
	data, err := os.ReadFile(paths.Report)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(w.out, "Run %s has no report yet; evaluate it with '%s evaluate --run-id %s'\n",
				entry.Run.RunID, AppName, entry.Run.RunID)
			return nil
		}
		return fmt.Errorf("failed to read report: %w", err)
	}
	fmt.Fprintf(w.out, "Report: %s\n\n", paths.Report)
	fmt.Fprintln(w.out, string(data))
	return nil
}
