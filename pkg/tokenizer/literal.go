package tokenizer

import "strings"

// literalScanner extracts quoted literals from free text.
type literalScanner struct {
	quotes    string
	multiline bool
}

var (
	// textLiterals is used for opaque files and template text.
	textLiterals = literalScanner{quotes: "\"'`"}
	// codeLiterals is used inside template expressions.
	codeLiterals = literalScanner{quotes: "\"'", multiline: true}
)

type defaultStrategy struct{}

// Default returns the fallback strategy: quoted literals on a single line.
func Default() Strategy {
	return defaultStrategy{}
}

func (defaultStrategy) Tokenize(src []byte) ([]string, error) {
	return textLiterals.scan(string(src), nil), nil
}

// scan appends every quoted literal in s to out.
// An unterminated literal is not a literal: scanning resumes right after its
// opening quote.
func (ls literalScanner) scan(s string, out []string) []string {
	for i := 0; i < len(s); i++ {
		q := s[i]
		if strings.IndexByte(ls.quotes, q) < 0 {
			continue
		}
		lit, end, ok := ls.read(s, i+1, q)
		if !ok {
			continue
		}
		if lit != "" {
			out = append(out, lit)
		}
		i = end
	}
	return out
}

// read consumes a literal body starting at start and returns it together with
// the index of its closing quote.
func (ls literalScanner) read(s string, start int, q byte) (string, int, bool) {
	var b strings.Builder
	for j := start; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '\\' && j+1 < len(s):
			next := s[j+1]
			if next != q && next != '\\' {
				b.WriteByte(c)
			}
			b.WriteByte(next)
			j++
		case c == q:
			return b.String(), j, true
		case c == '\n' && !ls.multiline:
			return "", 0, false
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, false
}

// unquote strips matching delimiters from a literal's source text and resolves
// quote and backslash escapes. Text without delimiters is returned unchanged.
func unquote(text string) string {
	if len(text) > 2 && (text[0] == 'b' || text[0] == 'B') && (text[1] == '"' || text[1] == '\'') {
		// PHP binary prefix: b"..."
		text = text[1:]
	}
	if len(text) < 2 {
		return text
	}
	q := text[0]
	if (q != '"' && q != '\'' && q != '`') || text[len(text)-1] != q {
		return text
	}
	lit, _, ok := literalScanner{quotes: string(q), multiline: true}.read(text, 1, q)
	if !ok {
		return text[1 : len(text)-1]
	}
	return lit
}
