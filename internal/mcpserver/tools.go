package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/janitor/internal/output"
	"github.com/panbanda/janitor/internal/service/analysis"
	"github.com/panbanda/janitor/pkg/diag"
	"github.com/panbanda/janitor/pkg/entity"
	"github.com/panbanda/janitor/pkg/models"
	"github.com/panbanda/janitor/pkg/tokenizer"
	"github.com/panbanda/janitor/pkg/usage"
)

// CheckUsageInput is the input of check_usage.
type CheckUsageInput struct {
	Root       string           `json:"root,omitempty" jsonschema:"Project directory to scan. Defaults to the current directory."`
	Manifest   string           `json:"manifest,omitempty" jsonschema:"Path to a yaml, json or toml entity manifest."`
	Entities   *entity.Manifest `json:"entities,omitempty" jsonschema:"Inline entities, same structure as a manifest file."`
	OnlyUnused bool             `json:"only_unused,omitempty" jsonschema:"Return only entities whose verdict is unused or weak."`
	Format     string           `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// ScoreNeedlesInput is the input of score_needles.
type ScoreNeedlesInput struct {
	Root    string              `json:"root,omitempty" jsonschema:"Project directory to scan. Defaults to the current directory."`
	Needles []entity.NeedleSpec `json:"needles" jsonschema:"Needles to score: weight in (0,1], text, and regex to treat text as an RE2 pattern."`
	Format  string              `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// TokenizeFileInput is the input of tokenize_file.
type TokenizeFileInput struct {
	Path   string `json:"path" jsonschema:"File to tokenize."`
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// handlers holds the tool handlers and the service they share, so repeated
// calls reuse the token store.
type handlers struct {
	svc *analysis.Service
}

func rootOrDefault(root string) string {
	if root == "" {
		return "."
	}
	return root
}

func getFormat(s string) output.Format {
	switch output.ParseFormat(s) {
	case output.FormatJSON:
		return output.FormatJSON
	case output.FormatMarkdown:
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	if format == output.FormatJSON {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return "", err
	}
	if format == output.FormatMarkdown {
		return "```\n" + string(out) + "\n```", nil
	}
	return string(out), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (h *handlers) checkUsage(ctx context.Context, _ *mcp.CallToolRequest, input CheckUsageInput) (*mcp.CallToolResult, any, error) {
	var entities []usage.Entity
	if input.Manifest != "" {
		m, err := entity.LoadManifest(input.Manifest)
		if err != nil {
			return toolError(err.Error())
		}
		entities = append(entities, m.Entities()...)
	}
	if input.Entities != nil {
		entities = append(entities, input.Entities.Entities()...)
	}
	if len(entities) == 0 {
		return toolError("no entities: pass a manifest path or inline entities")
	}

	result, err := h.svc.AnalyzeUsage(ctx, rootOrDefault(input.Root), entities, analysis.UsageOptions{})
	if err != nil {
		return toolError(err.Error())
	}

	if input.OnlyUnused {
		out := struct {
			Entities    []models.EntityUsage `json:"entities" toon:"entities"`
			Diagnostics []diag.Diagnostic    `json:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
			Summary     models.UsageSummary  `json:"summary" toon:"summary"`
		}{result.Filter(models.VerdictUnused, models.VerdictWeak), result.Diagnostics, result.Summary}
		return toolResult(out, getFormat(input.Format))
	}
	return toolResult(result, getFormat(input.Format))
}

func (h *handlers) scoreNeedles(ctx context.Context, _ *mcp.CallToolRequest, input ScoreNeedlesInput) (*mcp.CallToolResult, any, error) {
	if len(input.Needles) == 0 {
		return toolError("needles are required")
	}
	needles := make([]usage.Needle, len(input.Needles))
	for i, n := range input.Needles {
		needles[i] = usage.Needle{Weight: n.Weight, Text: n.Text, Regex: n.Regex}
	}

	report, diags, err := h.svc.ScoreNeedles(ctx, rootOrDefault(input.Root), needles)
	if err != nil {
		return toolError(err.Error())
	}

	out := struct {
		Score       float64           `json:"score" toon:"score"`
		Match       *usage.Match      `json:"match,omitempty" toon:"match,omitempty"`
		Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
	}{report.Score, report.Match, diags}
	return toolResult(out, getFormat(input.Format))
}

func (h *handlers) tokenizeFile(_ context.Context, _ *mcp.CallToolRequest, input TokenizeFileInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return toolError("path is required")
	}
	src, err := os.ReadFile(input.Path)
	if err != nil {
		return toolError(err.Error())
	}

	tokens, err := tokenizer.Tokenize(input.Path, src)
	out := struct {
		Path     string   `json:"path" toon:"path"`
		Kind     string   `json:"kind" toon:"kind"`
		Tokens   []string `json:"tokens" toon:"tokens"`
		Fallback string   `json:"fallback,omitempty" toon:"fallback,omitempty"`
	}{Path: input.Path, Kind: tokenizer.Select(input.Path).String(), Tokens: tokens}

	var fallback *tokenizer.FallbackError
	if errors.As(err, &fallback) {
		out.Fallback = fallback.Err.Error()
	} else if err != nil {
		return toolError(fmt.Sprintf("tokenize %s: %v", input.Path, err))
	}
	return toolResult(out, getFormat(input.Format))
}
