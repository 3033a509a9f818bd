package tokenizer

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/janitor/pkg/parser"
)

// sourceStrategy extracts literals from general-purpose code through its
// tree-sitter syntax tree, so quotes inside comments or regex literals are not
// mistaken for strings.
type sourceStrategy struct {
	lang parser.Language
}

func (s sourceStrategy) Tokenize(src []byte) ([]string, error) {
	p := parser.New()
	defer p.Close()

	result, err := p.Parse(src, s.lang)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	nodes := parser.LiteralNodeTypes(s.lang)
	var out []string

	parser.WalkTyped(result.Tree.RootNode(), result.Source, func(node *sitter.Node, nodeType string, source []byte) bool {
		if !node.IsNamed() {
			return true
		}
		switch {
		case slices.Contains(nodes.Quoted, nodeType):
			if tok := unquote(parser.GetNodeText(node, source)); tok != "" {
				out = append(out, tok)
			}
			return false
		case slices.Contains(nodes.Verbatim, nodeType):
			if tok := verbatimBody(parser.GetNodeText(node, source)); tok != "" {
				out = append(out, tok)
			}
			return false
		case slices.Contains(nodes.Markup, nodeType):
			out = textLiterals.scan(parser.GetNodeText(node, source), out)
			return false
		}
		return true
	})

	return out, nil
}

// verbatimBody strips the framing of heredocs (<<<EOT ... EOT) and template
// strings (`...`).
func verbatimBody(text string) string {
	if strings.HasPrefix(text, "`") && strings.HasSuffix(text, "`") && len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	if strings.HasPrefix(text, "<<<") {
		first := strings.IndexByte(text, '\n')
		last := strings.LastIndexByte(text, '\n')
		if first < 0 || last <= first {
			return ""
		}
		return strings.TrimSpace(text[first+1 : last])
	}
	return text
}
