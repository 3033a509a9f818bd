package tokenizer

import (
	"regexp"
	"strings"
)

// delimiters is an opening/closing marker pair.
type delimiters struct {
	open, close string
}

// templateStrategy handles templating languages that embed code expressions in
// markup. Expressions are scanned with code rules, the surrounding text with
// the default rules. Both variants share the scanner and differ only in their
// delimiters.
type templateStrategy struct {
	comments    []delimiters
	expressions []delimiters
	directives  bool // @name(...) arguments are expressions
}

// directiveOpen matches a Blade directive call up to its opening paren.
var directiveOpen = regexp.MustCompile(`@[A-Za-z_]\w*[ \t]*\(`)

var bladeStrategy = templateStrategy{
	comments: []delimiters{{"{{--", "--}}"}},
	expressions: []delimiters{
		{"{!!", "!!}"},
		{"{{", "}}"},
		{"@php", "@endphp"},
	},
	directives: true,
}

var twigStrategy = templateStrategy{
	comments: []delimiters{{"{#", "#}"}},
	expressions: []delimiters{
		{"{{", "}}"},
		{"{%", "%}"},
	},
}

func (t templateStrategy) Tokenize(src []byte) ([]string, error) {
	text := t.stripComments(string(src))

	var out []string
	for len(text) > 0 {
		at, openLen, d := t.nextExpression(text)
		if at < 0 {
			out = textLiterals.scan(text, out)
			break
		}

		out = textLiterals.scan(text[:at], out)
		body := text[at+openLen:]
		end, closeLen := strings.Index(body, d.close), len(d.close)
		if d.close == ")" {
			end = closingParen(body)
		}
		if end < 0 {
			out = codeLiterals.scan(body, out)
			break
		}
		out = codeLiterals.scan(body[:end], out)
		text = body[end+closeLen:]
	}
	return out, nil
}

// stripComments removes every comment block. An unclosed comment runs to the end.
func (t templateStrategy) stripComments(text string) string {
	for _, c := range t.comments {
		var b strings.Builder
		for {
			start := strings.Index(text, c.open)
			if start < 0 {
				b.WriteString(text)
				break
			}
			b.WriteString(text[:start])
			rest := text[start+len(c.open):]
			end := strings.Index(rest, c.close)
			if end < 0 {
				break
			}
			text = rest[end+len(c.close):]
		}
		text = b.String()
	}
	return text
}

// nextExpression finds the earliest expression opener and returns its offset
// and length. On a tie a directive call wins over fixed delimiters, and among
// those the one listed first wins, so longer openers must be listed before
// their prefixes.
func (t templateStrategy) nextExpression(text string) (int, int, delimiters) {
	best, bestLen := -1, 0
	var found delimiters
	if t.directives {
		if at, n := nextDirective(text); at >= 0 {
			best, bestLen = at, n
			found = delimiters{open: text[at : at+n], close: ")"}
		}
	}
	for _, d := range t.expressions {
		i := strings.Index(text, d.open)
		if i >= 0 && (best < 0 || i < best) {
			best, bestLen = i, len(d.open)
			found = d
		}
	}
	return best, bestLen, found
}

// nextDirective finds the first directive call not escaped as @@name(.
func nextDirective(text string) (int, int) {
	offset := 0
	for {
		loc := directiveOpen.FindStringIndex(text[offset:])
		if loc == nil {
			return -1, 0
		}
		at := offset + loc[0]
		if at == 0 || text[at-1] != '@' {
			return at, loc[1] - loc[0]
		}
		offset += loc[1]
	}
}

// closingParen returns the index of the paren closing an already opened one,
// skipping quoted literals, or -1.
func closingParen(s string) int {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"':
			for i++; i < len(s) && s[i] != c; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
