package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/janitor/internal/output"
	"github.com/panbanda/janitor/pkg/diag"
	"github.com/panbanda/janitor/pkg/tokenizer"
)

// fileTokens is the debug view of one tokenized file.
type fileTokens struct {
	Path     string   `json:"path" toon:"path"`
	Kind     string   `json:"kind" toon:"kind"`
	Tokens   []string `json:"tokens" toon:"tokens"`
	Fallback string   `json:"fallback,omitempty" toon:"fallback,omitempty"`
}

func tokensCmd() *cli.Command {
	return &cli.Command{
		Name:      "tokens",
		Usage:     "Print the string literals extracted from files",
		ArgsUsage: "[path...]",
		Description: `Shows what the matcher sees. Files are tokenized directly; directories
are discovered with the configured extensions and ignore rules and go
through the token cache.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Do not truncate the token column",
			},
		},
		Action: runTokensCmd,
	}
}

func runTokensCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	var results []fileTokens
	for _, path := range getPaths(c) {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			found, err := e.tokenizeDir(c.Context, path)
			if err != nil {
				return err
			}
			results = append(results, found...)
			continue
		}
		ft, err := tokenizeFile(path)
		if err != nil {
			return err
		}
		results = append(results, ft)
	}

	rows := make([][]string, 0, len(results))
	total := 0
	for _, r := range results {
		joined := strings.Join(quoteAll(r.Tokens), " ")
		if !c.Bool("full") {
			joined = truncate(joined, 80)
		}
		kind := r.Kind
		if r.Fallback != "" {
			kind += " (fallback)"
		}
		rows = append(rows, []string{r.Path, kind, strconv.Itoa(len(r.Tokens)), joined})
		total += len(r.Tokens)
	}

	table := output.NewTable(
		"Tokens",
		[]string{"File", "Kind", "Count", "Tokens"},
		rows,
		[]string{fmt.Sprintf("%d files", len(results)), "", strconv.Itoa(total), ""},
		results,
	)
	return e.formatter.Output(table)
}

func tokenizeFile(path string) (fileTokens, error) {
	ft := fileTokens{Path: filepath.ToSlash(path), Kind: tokenizer.Select(path).String()}
	src, err := os.ReadFile(path)
	if err != nil {
		return ft, err
	}
	tokens, err := tokenizer.Tokenize(path, src)
	ft.Tokens = tokens
	var fallback *tokenizer.FallbackError
	if errors.As(err, &fallback) {
		ft.Fallback = fallback.Err.Error()
	}
	return ft, nil
}

func (e *env) tokenizeDir(ctx context.Context, root string) ([]fileTokens, error) {
	cb, err := e.svc.Codebase(root, nil)
	if err != nil {
		return nil, err
	}
	corpus, err := cb.Tokenized(ctx)
	if err != nil {
		return nil, err
	}

	fallbacks := make(map[string]string)
	for _, d := range cb.Diagnostics() {
		if d.Kind == diag.KindTokenize {
			fallbacks[d.Path] = d.Message
		}
	}

	out := make([]fileTokens, 0, len(corpus))
	for _, f := range cb.Files() {
		tokens, ok := corpus[f.RelPath]
		if !ok {
			continue
		}
		out = append(out, fileTokens{
			Path:     f.RelPath,
			Kind:     f.Kind.String(),
			Tokens:   tokens,
			Fallback: fallbacks[f.RelPath],
		})
	}
	return out, nil
}

func quoteAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strconv.Quote(t)
	}
	return out
}
