package cli

// This file contains the compare and baseline commands.

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/artifacts"
	"github.com/valery-judah/semantic-shelf/compare"
	"github.com/valery-judah/semantic-shelf/model"
)

func (a *App) compareCommand(ctx *cli.Context) error {
	w := a.workspace(ctx)
	candidateID := ctx.String("candidate-run-id")

	baselineID := ctx.String("baseline-run-id")
	if baselineID == "" {
		scenarioID := ctx.String("scenario")
		if scenarioID == "" {
			run, err := artifacts.ReadRunMetadata(w.layout.Run(candidateID).RunJSON)
			if err != nil {
				return err
			}
			scenarioID = run.ScenarioID
		}
		baseline, err := compare.NewStore(w.logger, w.layout).Resolve(scenarioID)
		if err != nil {
			return err
		}
		if baseline == nil {
			return fmt.Errorf("no baseline found for scenario %s; promote one with '%s baseline promote --run-id <RUN_ID>'", scenarioID, AppName)
		}
		baselineID = baseline.RunID
	}

	_, err := w.compare(candidateID, baselineID)
	return err
}

// compare gates candidateID against baselineID and prints the table. A
// failing gate is returned as *compare.GateError.
func (w *workspace) compare(candidateID, baselineID string) (*model.DiffReport, error) {
	report, err := compare.NewComparator(w.logger, w.layout).Compare(candidateID, baselineID)
	if report == nil {
		return nil, err
	}
	fmt.Fprintln(w.out, compare.RenderTable(report, w.color))
	fmt.Fprintf(w.out, "Deltas: %s\n", w.layout.Run(candidateID).Deltas)
	return report, err
}

func (a *App) baselinePromote(ctx *cli.Context) error {
	w := a.workspace(ctx)
	p, err := compare.NewStore(w.logger, w.layout).Promote(ctx.String("run-id"))
	if err != nil {
		return err
	}
	fmt.Fprintf(w.out, "Promoted %s as baseline of %s\n", p.RunID, p.ScenarioID)
	return nil
}

func (a *App) baselineShow(ctx *cli.Context) error {
	w := a.workspace(ctx)
	scenarioID := ctx.String("scenario")
	baseline, err := compare.NewStore(w.logger, w.layout).Resolve(scenarioID)
	if err != nil {
		return err
	}
	if baseline == nil {
		fmt.Fprintf(w.out, "No baseline set for scenario %s\n", scenarioID)
		return nil
	}
	fmt.Fprintf(w.out, "%s (source: %s, %s)\n", baseline.RunID, baseline.Source, baseline.Origin)
	return nil
}
