// Package mcpserver exposes usage checks as MCP tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/janitor/internal/service/analysis"
)

// toolInfo describes a tool janitor registers.
type toolInfo struct {
	Name     string
	Summary  string
	describe func() string
}

// catalog lists the registered tools in registration order.
var catalog = []toolInfo{
	{Name: "check_usage", Summary: "Score the entities of a manifest against a project", describe: describeCheckUsage},
	{Name: "score_needles", Summary: "Score ad-hoc needles against a project", describe: describeScoreNeedles},
	{Name: "tokenize_file", Summary: "List the string literals extracted from a file", describe: describeTokenizeFile},
}

func lookupTool(name string) (toolInfo, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return toolInfo{}, false
}

// tool builds the MCP definition of a catalog entry.
func tool(name string) *mcp.Tool {
	info, ok := lookupTool(name)
	if !ok {
		panic("mcpserver: unregistered tool " + name)
	}
	return &mcp.Tool{Name: info.Name, Description: info.describe()}
}

// Server wraps the MCP server and registers the janitor tools and prompts.
type Server struct {
	server   *mcp.Server
	handlers *handlers
}

// NewServer creates an MCP server backed by svc. A nil svc uses the default
// configuration. It fails when an embedded prompt refers to a tool that is
// not registered.
func NewServer(version string, svc *analysis.Service) (*Server, error) {
	if version == "" {
		version = "dev"
	}
	if svc == nil {
		svc = analysis.New()
	}
	workflows, err := loadWorkflows()
	if err != nil {
		return nil, err
	}

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "janitor",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, handlers: &handlers{svc: svc}}
	s.registerTools()
	s.registerPrompts(workflows)
	return s, nil
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, tool("check_usage"), s.handlers.checkUsage)
	mcp.AddTool(s.server, tool("score_needles"), s.handlers.scoreNeedles)
	mcp.AddTool(s.server, tool("tokenize_file"), s.handlers.tokenizeFile)
}
