package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// workflow is a prompt walking a client through janitor's tools. Its
// frontmatter names the tools it calls and the arguments substituted into
// the body as {{name}}.
type workflow struct {
	Name        string        `yaml:"-"`
	Description string        `yaml:"description"`
	Tools       []string      `yaml:"tools"`
	Arguments   []workflowArg `yaml:"arguments"`
	Body        string        `yaml:"-"`
}

type workflowArg struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// loadWorkflows parses every embedded prompt, sorted by name.
func loadWorkflows() ([]*workflow, error) {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, err
	}

	var out []*workflow
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		content, err := promptFiles.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, err
		}
		w, err := parseWorkflow(strings.TrimSuffix(entry.Name(), ".md"), content)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b *workflow) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// parseWorkflow reads a prompt file and checks it against the registered tools.
func parseWorkflow(name string, content []byte) (*workflow, error) {
	rest, ok := bytes.CutPrefix(content, []byte("---\n"))
	if !ok {
		return nil, fmt.Errorf("prompt %s: missing frontmatter", name)
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return nil, fmt.Errorf("prompt %s: unterminated frontmatter", name)
	}

	w := &workflow{Name: name}
	if err := yaml.Unmarshal(rest[:end], w); err != nil {
		return nil, fmt.Errorf("prompt %s: %w", name, err)
	}
	w.Body = strings.TrimPrefix(string(rest[end+5:]), "\n")

	if w.Description == "" {
		return nil, fmt.Errorf("prompt %s: description is required", name)
	}
	if len(w.Tools) == 0 {
		return nil, fmt.Errorf("prompt %s: lists no tools", name)
	}
	for _, tool := range w.Tools {
		if _, ok := lookupTool(tool); !ok {
			return nil, fmt.Errorf("prompt %s: unknown tool %q", name, tool)
		}
		if !strings.Contains(w.Body, "`"+tool+"`") {
			return nil, fmt.Errorf("prompt %s: tool %q is listed but never used", name, tool)
		}
	}
	for _, arg := range w.Arguments {
		if !strings.Contains(w.Body, "{{"+arg.Name+"}}") {
			return nil, fmt.Errorf("prompt %s: argument %q is never used", name, arg.Name)
		}
	}
	return w, nil
}

func (w *workflow) prompt() *mcp.Prompt {
	p := &mcp.Prompt{Name: w.Name, Description: w.Description}
	for _, arg := range w.Arguments {
		p.Arguments = append(p.Arguments, &mcp.PromptArgument{
			Name:        arg.Name,
			Description: arg.Description,
			Required:    arg.Required,
		})
	}
	return p
}

// render substitutes args into the body, falling back to argument defaults.
func (w *workflow) render(args map[string]string) (string, error) {
	pairs := make([]string, 0, 2*len(w.Arguments))
	for _, arg := range w.Arguments {
		v := args[arg.Name]
		if v == "" {
			if arg.Required {
				return "", fmt.Errorf("prompt %s: argument %q is required", w.Name, arg.Name)
			}
			v = arg.Default
		}
		pairs = append(pairs, "{{"+arg.Name+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(w.Body), nil
}

func (w *workflow) handle(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var args map[string]string
	if req != nil && req.Params != nil {
		args = req.Params.Arguments
	}
	text, err := w.render(args)
	if err != nil {
		return nil, err
	}
	return &mcp.GetPromptResult{
		Description: w.Description,
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}, nil
}

func (s *Server) registerPrompts(workflows []*workflow) {
	for _, w := range workflows {
		s.server.AddPrompt(w.prompt(), w.handle)
	}
}
