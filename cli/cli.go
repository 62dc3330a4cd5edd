package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "shelfeval"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
			NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Evaluate and load-test the similar-books recommendation service",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "artifacts-dir",
					Usage:   "Root directory of run artifacts and baseline pointers",
					Value:   "artifacts",
					EnvVars: []string{"EVAL_ARTIFACTS_DIR"},
				},
				&cli.StringFlag{
					Name:    "scenarios-dir",
					Usage:   "Directory holding scenario, slice and golden set files",
					Value:   "scenarios",
					EnvVars: []string{"EVAL_SCENARIOS_DIR"},
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "init",
		Usage:  "Create a run directory with run.json and the selected anchors",
		Action: app.initCommand,
		Flags:  initFlags(),
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "loadgen",
		Usage:  "Drive traffic against the service for an initialized run",
		Action: app.loadgenCommand,
		Flags:  loadgenFlags(true),
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "evaluate",
		Usage:  "Summarize a run, write the report and apply the single-run gate",
		Action: app.evaluateCommand,
		Flags:  evaluateFlags(true),
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "compare",
		Usage:  "Gate a candidate run against a baseline run",
		Action: app.compareCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "candidate-run-id",
				Usage:    "Run to gate",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "baseline-run-id",
				Usage: "Baseline run; resolved from --scenario when empty",
			},
			&cli.StringFlag{
				Name:  "scenario",
				Usage: "Scenario whose baseline is resolved",
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "baseline",
		Usage: "Manage scenario baselines",
		Subcommands: []*cli.Command{
			{
				Name:   "promote",
				Usage:  "Make an evaluated run the baseline of its scenario",
				Action: app.baselinePromote,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "run-id",
						Usage:    "Run to promote",
						Required: true,
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Show the resolved baseline of a scenario",
				Action: app.baselineShow,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "scenario",
						Usage:    "Scenario id",
						Required: true,
						EnvVars:  []string{"EVAL_SCENARIO"},
					},
				},
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Run init, loadgen, evaluate and compare in sequence",
		Action: app.pipelineCommand,
		Flags:  pipelineFlags(),
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "telemetry",
		Usage: "Telemetry store utilities",
		Subcommands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Export the events of a run to raw/telemetry_extract.jsonl",
				Action: app.telemetryExport,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "run-id",
						Usage:    "Run whose events are exported",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "db",
						Usage:    "SQLite telemetry database",
						Required: true,
					},
				},
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "stub-server",
		Usage:  "Serve a deterministic stand-in for the recommendation service",
		Action: app.stubServer,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: ":8000",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite telemetry database; telemetry is rejected when empty",
			},
			&cli.DurationFlag{
				Name:  "latency",
				Usage: "Delay added to every similar-books response",
			},
			&cli.StringSliceFlag{
				Name:  "fault",
				Usage: "Inject a fault for one anchor as ANCHOR=KIND (server_error, invalid_json, missing_key, duplicates, include_anchor, slow)",
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scenario",
				Usage: "Only show runs of this scenario",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show (0 for all)",
				Value: 20,
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "view",
		Usage:     "Print the report of a run",
		ArgsUsage: "[INDEX|RUN_ID_PREFIX]",
		Action:    app.view,
	})

	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		if len(commit) > 8 {
			commit = commit[:8]
		}
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	}
}

// Logger returns the application logger.
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
