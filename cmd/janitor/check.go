package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/janitor/internal/output"
	"github.com/panbanda/janitor/internal/service/analysis"
	"github.com/panbanda/janitor/pkg/entity"
	"github.com/panbanda/janitor/pkg/models"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Score every entity of a manifest against the project",
		ArgsUsage: "[path]",
		Description: `Loads the entity manifest (routes, views, translation keys and custom
entities), tokenizes the project and reports each entity's score, verdict
and the evidence behind it.

Examples:
  janitor check -m routes.json
  janitor check -m entities.yaml --fail-on-unused ./app
  janitor -f json check -m entities.yaml > report.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "Entity manifest (YAML, JSON, or TOML)",
				Required: true,
			},
			&cli.Float64Flag{
				Name:  "min-score",
				Value: -1,
				Usage: "Entities scoring below this are reported as weak (default: thresholds.weak)",
			},
			&cli.BoolFlag{
				Name:  "fail-on-unused",
				Usage: "Exit with status 1 when an entity is unused",
			},
		},
		Action: runCheckCmd,
	}
}

func runCheckCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	root := getPath(c)
	manifest, err := entity.LoadManifest(c.String("manifest"))
	if err != nil {
		return err
	}

	thresholds := models.Thresholds{Unused: e.cfg.Thresholds.Unused, Weak: e.cfg.Thresholds.Weak}
	if minScore := c.Float64("min-score"); minScore >= 0 {
		if minScore > 1 || minScore < thresholds.Unused {
			return usageError("--min-score must be within [%.2f, 1] (got %g)", thresholds.Unused, minScore)
		}
		thresholds.Weak = minScore
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := e.tracker("Tokenizing")
	result, err := e.svc.AnalyzeUsage(ctx, root, manifest.Entities(), analysis.UsageOptions{
		Thresholds:   &thresholds,
		OnDiscovered: tracker.Start,
		OnProgress:   tracker.Tick,
	})
	if err != nil {
		tracker.Fail(err)
		return err
	}
	tracker.Finish()

	if err := e.formatter.Output(output.NewUsageView(result, e.cfg.Output.Verbose)); err != nil {
		return err
	}

	if c.Bool("fail-on-unused") && result.HasUnused() {
		return cli.Exit("", 1)
	}
	return nil
}
