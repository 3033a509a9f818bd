package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/janitor/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start an MCP (Model Context Protocol) server over stdio",
		Description: `Exposes janitor's checks as tools that LLM clients can call.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "janitor": {
        "command": "janitor",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - check_usage     Score the entities of a manifest against a project
  - score_needles   Score ad-hoc needles against a project
  - tokenize_file   List the string literals extracted from a file`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the MCP registry manifest (server.json)",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, string(data))
					return err
				},
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := mcpserver.NewServer(version, e.svc)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
