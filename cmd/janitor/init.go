package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/janitor/internal/output"
	"github.com/panbanda/janitor/pkg/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a janitor.toml with the default settings",
		Description: `Examples:
  janitor init                          # Creates janitor.toml
  janitor init --path .janitor/janitor.toml
  janitor init --force                  # Overwrite an existing file`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Value: "janitor.toml",
				Usage: "Config file to create",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing config file",
			},
		},
		Action: runInitCmd,
	}
}

func runInitCmd(c *cli.Context) error {
	path := c.String("path")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Created %s\n", path)
	return nil
}

func generateDefaultConfig() (string, error) {
	content, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshal config to TOML: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# janitor configuration\n\n")
	buf.Write(content)
	return buf.String(), nil
}

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate the config file given by --config or found in . and .janitor/",
				Action: runConfigValidateCmd,
			},
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: runConfigShowCmd,
			},
		},
	}
}

func configSource(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	return config.Find()
}

func runConfigValidateCmd(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}
	if source := configSource(c); source != "" {
		fmt.Fprintf(c.App.Writer, "Configuration valid: %s\n", source)
	} else {
		fmt.Fprintln(c.App.Writer, "No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShowCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.formatter.Format() != output.FormatText {
		return e.formatter.Output(e.cfg)
	}

	content, err := toml.Marshal(e.cfg)
	if err != nil {
		return err
	}
	if source := configSource(c); source != "" {
		fmt.Fprintf(e.formatter.Writer(), "# source: %s\n\n", source)
	}
	_, err = e.formatter.Writer().Write(content)
	return err
}
