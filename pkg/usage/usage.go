// Package usage scores how strongly a project's tokens reference an entity.
//
// An entity offers weighted needles: literal substrings or regular
// expressions. Its score is the highest weight among needles that match at
// least one token anywhere in the corpus, or 0 when none match. Scores are
// not summed; a needle's weight already says how conclusive a hit on it is.
// Turning a score into a verdict is left to the caller.
package usage

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/panbanda/janitor/internal/logging"
	"github.com/panbanda/janitor/pkg/diag"
)

// Needle is a weighted candidate string for an entity.
type Needle struct {
	Weight float64 `json:"weight" toon:"weight"`
	Text   string  `json:"text" toon:"text"`
	Regex  bool    `json:"regex,omitempty" toon:"regex,omitempty"`
}

// Literal returns a case-sensitive substring needle.
func Literal(weight float64, text string) Needle {
	return Needle{Weight: weight, Text: text}
}

// Pattern returns a regular expression needle, matched against whole tokens
// with RE2 semantics (anchor it with ^ and $ to require a full match).
func Pattern(weight float64, expr string) Needle {
	return Needle{Weight: weight, Text: expr, Regex: true}
}

func (n Needle) String() string {
	if n.Regex {
		return fmt.Sprintf("%.2f /%s/", n.Weight, n.Text)
	}
	return fmt.Sprintf("%.2f %q", n.Weight, n.Text)
}

// Entity is anything that can be checked for usage.
type Entity interface {
	// Kind is the entity category, e.g. "route".
	Kind() string
	// Name is the human-readable name.
	Name() string
	// Identifier is unique among entities of the same kind.
	Identifier() string
	// UsageNeedles returns the entity's needles.
	UsageNeedles() []Needle
}

// Match is the evidence behind a non-zero score.
type Match struct {
	Needle Needle `json:"needle" toon:"needle"`
	File   string `json:"file" toon:"file"`
	Token  string `json:"token" toon:"token"`
}

// Report is the outcome of evaluating one entity.
type Report struct {
	Kind        string            `json:"kind" toon:"kind"`
	Name        string            `json:"name" toon:"name"`
	Identifier  string            `json:"identifier" toon:"identifier"`
	Score       float64           `json:"score" toon:"score"`
	MaxWeight   float64           `json:"max_weight" toon:"max_weight"`
	Match       *Match            `json:"match,omitempty" toon:"match,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
}

// Used reports whether any needle matched.
func (r Report) Used() bool {
	return r.Score > 0
}

// Matcher evaluates needles against a corpus. Compiled patterns are cached
// across calls. A Matcher is safe for concurrent use.
type Matcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	patterns map[string]compiled
}

type compiled struct {
	re  *regexp.Regexp
	err error
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logging.OrDiscard(l)
	}
}

// NewMatcher creates a Matcher.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		logger:   logging.Discard(),
		patterns: make(map[string]compiled),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Score returns the usage score of needles against corpus, a mapping of file
// path to tokens. The result is in [0, max weight of the valid needles].
func (m *Matcher) Score(needles []Needle, corpus map[string][]string) float64 {
	return m.evaluate("", needles, corpus).Score
}

// Evaluate scores an entity and explains the result.
func (m *Matcher) Evaluate(e Entity, corpus map[string][]string) Report {
	r := m.evaluate(e.Identifier(), e.UsageNeedles(), corpus)
	r.Kind = e.Kind()
	r.Name = e.Name()
	r.Identifier = e.Identifier()
	return r
}

// candidate is a validated needle ready to match.
type candidate struct {
	needle Needle
	re     *regexp.Regexp
}

func (c candidate) matches(token string) bool {
	if c.re != nil {
		return c.re.MatchString(token)
	}
	return strings.Contains(token, c.needle.Text)
}

func (m *Matcher) evaluate(entity string, needles []Needle, corpus map[string][]string) Report {
	var report Report

	// Validate every needle first so diagnostics don't depend on match order
	candidates := make([]candidate, 0, len(needles))
	for _, n := range needles {
		switch {
		case n.Text == "":
			report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
				Kind: diag.KindNeedle, Entity: entity, Message: "empty needle text",
			})
			continue
		case !(n.Weight > 0 && n.Weight <= 1):
			report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
				Kind: diag.KindNeedle, Entity: entity, Message: fmt.Sprintf("needle %s: weight must be in (0,1]", n),
			})
			continue
		}

		c := candidate{needle: n}
		if n.Regex {
			re, err := m.compile(n.Text)
			if err != nil {
				report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
					Kind: diag.KindPattern, Entity: entity, Message: fmt.Sprintf("needle %s never matches: %v", n, err),
				})
				m.logger.Debug("invalid pattern needle", "entity", entity, "pattern", n.Text, "error", err)
				continue
			}
			c.re = re
		}
		candidates = append(candidates, c)
		report.MaxWeight = max(report.MaxWeight, n.Weight)
	}

	if len(candidates) == 0 || len(corpus) == 0 {
		return report
	}

	// Heaviest first: the first needle that matches fixes the score, and
	// nothing after it can raise it. Stable keeps input order among equals.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].needle.Weight > candidates[j].needle.Weight
	})

	paths := make([]string, 0, len(corpus))
	for p := range corpus {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, c := range candidates {
		if file, token, ok := find(c, paths, corpus); ok {
			report.Score = c.needle.Weight
			report.Match = &Match{Needle: c.needle, File: file, Token: token}
			break
		}
	}
	return report
}

func find(c candidate, paths []string, corpus map[string][]string) (string, string, bool) {
	for _, p := range paths {
		for _, token := range corpus[p] {
			if c.matches(token) {
				return p, token, true
			}
		}
	}
	return "", "", false
}

func (m *Matcher) compile(expr string) (*regexp.Regexp, error) {
	m.mu.RLock()
	c, ok := m.patterns[expr]
	m.mu.RUnlock()
	if ok {
		return c.re, c.err
	}

	re, err := regexp.Compile(expr)
	m.mu.Lock()
	m.patterns[expr] = compiled{re: re, err: err}
	m.mu.Unlock()
	return re, err
}
