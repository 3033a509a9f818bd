package entity

import (
	"regexp"
	"strings"
)

// defaultParamPattern matches one URI segment.
const defaultParamPattern = `[^/]+`

var invalidGroupChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// CompileURI turns a route URI such as "orders/{id}/items/{item?}" into an
// anchored RE2 pattern. Parameters become named groups constrained by wheres
// (default: one path segment). A segment that is only an optional parameter
// is optional together with its leading slash.
func CompileURI(uri string, wheres map[string]string) string {
	uri = strings.Trim(uri, "/")
	if uri == "" {
		return `^/$`
	}

	var b strings.Builder
	b.WriteString("^")
	for _, segment := range strings.Split(uri, "/") {
		if name, optional, ok := wholeParam(segment); ok && optional {
			b.WriteString(`(?:/` + group(name, wheres) + `)?`)
			continue
		}
		b.WriteString("/")
		compileSegment(&b, segment, wheres)
	}
	b.WriteString("$")
	return b.String()
}

// wholeParam reports whether segment is exactly one "{name}" or "{name?}".
func wholeParam(segment string) (name string, optional, ok bool) {
	if len(segment) < 3 || segment[0] != '{' || segment[len(segment)-1] != '}' {
		return "", false, false
	}
	inner := segment[1 : len(segment)-1]
	if strings.ContainsAny(inner, "{}") {
		return "", false, false
	}
	optional = strings.HasSuffix(inner, "?")
	return strings.TrimSuffix(inner, "?"), optional, true
}

func compileSegment(b *strings.Builder, segment string, wheres map[string]string) {
	for segment != "" {
		open := strings.IndexByte(segment, '{')
		if open < 0 {
			b.WriteString(regexp.QuoteMeta(segment))
			return
		}
		end := strings.IndexByte(segment[open:], '}')
		if end < 0 {
			b.WriteString(regexp.QuoteMeta(segment))
			return
		}
		b.WriteString(regexp.QuoteMeta(segment[:open]))

		inner := segment[open+1 : open+end]
		optional := strings.HasSuffix(inner, "?")
		b.WriteString(group(strings.TrimSuffix(inner, "?"), wheres))
		if optional {
			b.WriteString("?")
		}
		segment = segment[open+end+1:]
	}
}

// group builds the named group for a parameter. Binding fields such as
// "{post:slug}" are constrained by the parameter name.
func group(param string, wheres map[string]string) string {
	name, _, _ := strings.Cut(param, ":")
	pattern := defaultParamPattern
	if w, ok := wheres[name]; ok && w != "" {
		pattern = NormalizePattern(w)
	}
	return `(?P<` + invalidGroupChars.ReplaceAllString(name, "_") + `>` + pattern + `)`
}

// patternDelimiters pairs opening and closing delimiters of PCRE-style
// patterns. "/" is excluded because plain URI patterns start with it.
var patternDelimiters = map[byte]byte{
	'#': '#',
	'~': '~',
	'!': '!',
	'%': '%',
	'@': '@',
	'|': '|',
	'{': '}',
}

// NormalizePattern rewrites a PCRE-style route matcher such as
// "#^/users/(?P<id>[^/]++)$#sDu" into an RE2 pattern: delimiters are removed,
// supported flags become an inline group, possessive quantifiers and atomic
// groups are relaxed. Other patterns pass through with only the relaxing.
func NormalizePattern(pattern string) string {
	body, flags := splitDelimited(pattern)

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		}
	}

	body = relaxPCRE(body)
	if inline.Len() > 0 {
		return "(?" + inline.String() + ")" + body
	}
	return body
}

func splitDelimited(pattern string) (body, flags string) {
	if len(pattern) < 2 {
		return pattern, ""
	}
	closing, ok := patternDelimiters[pattern[0]]
	if !ok {
		return pattern, ""
	}
	end := strings.LastIndexByte(pattern, closing)
	if end <= 0 {
		return pattern, ""
	}
	flags = pattern[end+1:]
	for _, f := range flags {
		if !('a' <= f && f <= 'z' || 'A' <= f && f <= 'Z') {
			return pattern, ""
		}
	}
	return pattern[1:end], flags
}

// relaxPCRE drops possessive markers ("++", "*+", "?+", "}+") and turns
// atomic groups into plain groups. Escapes and character classes are kept.
func relaxPCRE(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inClass := false
	afterQuantifier := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			afterQuantifier = false
			continue
		case inClass:
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
			afterQuantifier = false
			continue
		case c == '[':
			inClass = true
			// A leading "]" or "^]" is literal
			b.WriteByte(c)
			if strings.HasPrefix(s[i+1:], "^]") {
				b.WriteString("^]")
				i += 2
			} else if strings.HasPrefix(s[i+1:], "]") {
				b.WriteByte(']')
				i++
			}
			afterQuantifier = false
			continue
		case c == '+' && afterQuantifier:
			afterQuantifier = false
			continue
		case strings.HasPrefix(s[i:], "(?>"):
			b.WriteString("(?:")
			i += 2
			afterQuantifier = false
			continue
		}
		b.WriteByte(c)
		afterQuantifier = c == '+' || c == '*' || c == '?' || c == '}'
	}
	return b.String()
}
