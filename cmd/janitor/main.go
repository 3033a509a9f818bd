package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "janitor",
		Usage:   "Find routes, views and translation keys nothing references anymore",
		Version: version,
		Description: `janitor extracts the string literals of a project (PHP, Blade, Twig,
JavaScript, TypeScript, JSON, YAML, TOML, XML, Markdown) and scores each
entity of a manifest by the strongest reference found among them.

A score of 0 means no reference was found: the entity is presumed dead.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"JANITOR_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the token cache",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show used entities and log progress",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error or off (overrides --verbose)",
				EnvVars: []string{"JANITOR_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Silence logs and progress bars",
			},
		},
		Commands: []*cli.Command{
			checkCmd(),
			tokensCmd(),
			cacheCmd(),
			watchCmd(),
			mcpCmd(),
			initCmd(),
			configCmd(),
		},
		// Exit codes are decided in main so the app stays testable.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode prints err and maps it to a process exit code.
func exitCode(err error) int {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			color.New(color.FgRed).Fprintln(os.Stderr, msg)
		}
		return exitErr.ExitCode()
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	return 2
}

// usageError reports invalid command-line input.
func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), 2)
}
