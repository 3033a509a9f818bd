package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/janitor/internal/output"
	"github.com/panbanda/janitor/internal/service/analysis"
	"github.com/panbanda/janitor/pkg/codebase"
	"github.com/panbanda/janitor/pkg/entity"
	"github.com/panbanda/janitor/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-check the manifest whenever project files change",
		ArgsUsage: "[path]",
		Description: `Runs a check, then watches the project and re-runs it after each batch
of changes. Unchanged files are served from the token cache, so a re-check
only tokenizes what changed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "Entity manifest (YAML, JSON, or TOML)",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a change triggers a re-check",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	manifest, err := entity.LoadManifest(c.String("manifest"))
	if err != nil {
		return err
	}
	entities := manifest.Entities()
	root := getPath(c)

	cb, err := e.svc.Codebase(root, nil)
	if err != nil {
		return err
	}

	check := func(ctx context.Context) {
		result, err := e.svc.AnalyzeCodebase(ctx, cb, entities, analysis.UsageOptions{})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				e.formatter.Error("check failed: %v", err)
			}
			return
		}
		if err := e.formatter.Output(output.NewUsageView(result, e.cfg.Output.Verbose)); err != nil {
			e.formatter.Error("output: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	check(ctx)

	watcher, err := watch.New(root, codebase.DiscoverOptionsFromConfig(e.cfg),
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Stop()

	watcher.SetCallback(func(ctx context.Context, changed []string) {
		e.formatter.Info("\n%s changed: %s", time.Now().Format(time.TimeOnly), strings.Join(changed, ", "))
		cb.Invalidate()
		check(ctx)
	})

	e.formatter.Info("Watching %s for changes. Press Ctrl+C to stop.", watcher.Root())
	if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
