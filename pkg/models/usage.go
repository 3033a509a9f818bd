package models

import (
	"sort"
	"strings"

	"github.com/panbanda/janitor/pkg/diag"
	"github.com/panbanda/janitor/pkg/usage"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
)

// Verdict is the caller's reading of a usage score.
type Verdict string

const (
	VerdictUsed   Verdict = "used"
	VerdictWeak   Verdict = "weak"   // only low-confidence evidence
	VerdictUnused Verdict = "unused" // presumed dead
)

// Thresholds maps scores to verdicts: score <= Unused is unused, score < Weak
// is weak, anything else is used.
type Thresholds struct {
	Unused float64 `json:"unused"`
	Weak   float64 `json:"weak"`
}

// DefaultThresholds treats only a zero score as unused and anything below a
// route name match as weak.
func DefaultThresholds() Thresholds {
	return Thresholds{Unused: 0, Weak: 0.5}
}

// Classify returns the verdict for score.
func Classify(score float64, t Thresholds) Verdict {
	switch {
	case score <= t.Unused:
		return VerdictUnused
	case score < t.Weak:
		return VerdictWeak
	default:
		return VerdictUsed
	}
}

// EntityUsage is one entity's score, evidence and verdict.
type EntityUsage struct {
	Kind        string            `json:"kind" toon:"kind"`
	Name        string            `json:"name" toon:"name"`
	Identifier  string            `json:"identifier" toon:"identifier"`
	Score       float64           `json:"score" toon:"score"`
	MaxWeight   float64           `json:"max_weight" toon:"max_weight"`
	Verdict     Verdict           `json:"verdict" toon:"verdict"`
	Match       *usage.Match      `json:"match,omitempty" toon:"match,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
}

// NewEntityUsage classifies a report.
func NewEntityUsage(r usage.Report, t Thresholds) EntityUsage {
	return EntityUsage{
		Kind:        r.Kind,
		Name:        r.Name,
		Identifier:  r.Identifier,
		Score:       r.Score,
		MaxWeight:   r.MaxWeight,
		Verdict:     Classify(r.Score, t),
		Match:       r.Match,
		Diagnostics: r.Diagnostics,
	}
}

// Evidence describes the match behind the score, or "" when nothing matched.
func (e EntityUsage) Evidence() string {
	if e.Match == nil {
		return ""
	}
	return e.Match.File + ": " + e.Match.Token
}

// UsageAnalysis is the result of checking a set of entities against a codebase.
type UsageAnalysis struct {
	Root        string            `json:"root" toon:"root"`
	Entities    []EntityUsage     `json:"entities" toon:"entities"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
	Thresholds  Thresholds        `json:"thresholds" toon:"thresholds"`
	Summary     UsageSummary      `json:"summary" toon:"summary"`
}

// UsageSummary provides aggregate statistics.
type UsageSummary struct {
	TotalEntities int                    `json:"total_entities" toon:"total_entities"`
	Used          int                    `json:"used" toon:"used"`
	Weak          int                    `json:"weak" toon:"weak"`
	Unused        int                    `json:"unused" toon:"unused"`
	FilesScanned  int                    `json:"files_scanned" toon:"files_scanned"`
	TokensScanned int                    `json:"tokens_scanned" toon:"tokens_scanned"`
	MeanScore     float64                `json:"mean_score" toon:"mean_score"`
	MedianScore   float64                `json:"median_score" toon:"median_score"`
	StdDevScore   float64                `json:"stddev_score" toon:"stddev_score"`
	ByKind        map[string]KindSummary `json:"by_kind" toon:"by_kind"`
}

// KindSummary counts verdicts for one entity kind.
type KindSummary struct {
	Total  int `json:"total" toon:"total"`
	Weak   int `json:"weak" toon:"weak"`
	Unused int `json:"unused" toon:"unused"`
}

// NewUsageAnalysis classifies reports and computes the summary. Entities are
// ordered by kind, then identifier.
func NewUsageAnalysis(root string, reports []usage.Report, t Thresholds, files, tokens int) *UsageAnalysis {
	a := &UsageAnalysis{
		Root:       root,
		Entities:   make([]EntityUsage, 0, len(reports)),
		Thresholds: t,
	}
	for _, r := range reports {
		a.Entities = append(a.Entities, NewEntityUsage(r, t))
	}
	sort.SliceStable(a.Entities, func(i, j int) bool {
		if a.Entities[i].Kind != a.Entities[j].Kind {
			return a.Entities[i].Kind < a.Entities[j].Kind
		}
		return a.Entities[i].Identifier < a.Entities[j].Identifier
	})
	a.Summary = summarize(a.Entities)
	a.Summary.FilesScanned = files
	a.Summary.TokensScanned = tokens
	return a
}

func summarize(entities []EntityUsage) UsageSummary {
	s := UsageSummary{
		TotalEntities: len(entities),
		ByKind:        make(map[string]KindSummary),
	}
	if len(entities) == 0 {
		return s
	}

	scores := make([]float64, len(entities))
	for i, e := range entities {
		scores[i] = e.Score

		k := s.ByKind[e.Kind]
		k.Total++
		switch e.Verdict {
		case VerdictUsed:
			s.Used++
		case VerdictWeak:
			s.Weak++
			k.Weak++
		case VerdictUnused:
			s.Unused++
			k.Unused++
		}
		s.ByKind[e.Kind] = k
	}

	sort.Float64s(scores)
	s.MeanScore = stat.Mean(scores, nil)
	s.MedianScore = stat.Quantile(0.5, stat.Empirical, scores, nil)
	if len(scores) > 1 {
		s.StdDevScore = stat.StdDev(scores, nil)
	}
	return s
}

// Filter returns the entities whose verdict is one of verdicts.
func (a *UsageAnalysis) Filter(verdicts ...Verdict) []EntityUsage {
	var out []EntityUsage
	for _, e := range a.Entities {
		for _, v := range verdicts {
			if e.Verdict == v {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// HasUnused reports whether any entity is presumed dead.
func (a *UsageAnalysis) HasUnused() bool {
	return a.Summary.Unused > 0
}

// Kinds returns the entity kinds present, sorted.
func (s UsageSummary) Kinds() []string {
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// String renders a one-line summary with grouped digits.
func (s UsageSummary) String() string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	p.Fprintf(&b, "%d entities: %d used, %d weak, %d unused", s.TotalEntities, s.Used, s.Weak, s.Unused)
	p.Fprintf(&b, " (%d files, %d tokens scanned; mean score %.2f)", s.FilesScanned, s.TokensScanned, s.MeanScore)
	return b.String()
}
