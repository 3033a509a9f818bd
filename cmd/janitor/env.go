package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/janitor/internal/logging"
	"github.com/panbanda/janitor/internal/output"
	"github.com/panbanda/janitor/internal/progress"
	"github.com/panbanda/janitor/internal/service/analysis"
	"github.com/panbanda/janitor/pkg/config"
)

// env is what every command needs: the effective config, a logger, the
// analysis service and a formatter.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	svc       *analysis.Service
	formatter *output.Formatter
	quiet     bool
}

// loadConfig reads --config, or the discovered config file, and applies the
// global flags that override it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.Bool("no-cache") {
		cfg.Cache.Backend = "none"
	}
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	quiet := c.Bool("quiet")
	logger := logging.New(os.Stderr, logLevel(c.String("log-level"), cfg.Output.Verbose, quiet))

	if !cfg.Output.Color {
		color.NoColor = true
	}
	formatter, err := output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), cfg.Output.Color && !color.NoColor)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:       cfg,
		logger:    logger,
		svc:       analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(logger)),
		formatter: formatter,
		quiet:     quiet,
	}, nil
}

// logLevel picks the log level: --quiet wins, then an explicit level name,
// then verbosity.
func logLevel(name string, verbose, quiet bool) slog.Level {
	if quiet {
		return logging.LevelSilent
	}
	if name != "" {
		return logging.LevelFromString(name)
	}
	verbosity := 0
	if verbose {
		verbosity = 1
	}
	return logging.LevelFromVerbosity(verbosity, false)
}

func (e *env) Close() error {
	return e.formatter.Close()
}

// tracker shows a progress bar for interactive text output only.
func (e *env) tracker(label string) *progress.Tracker {
	enabled := !e.quiet && e.formatter.Format() == output.FormatText && !color.NoColor
	return progress.NewTracker(label, enabled)
}
