package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/panbanda/janitor/pkg/models"
)

// UsageView renders a usage analysis: one row per entity, a summary and the
// diagnostics. With Verbose unset, used entities are left out of the table.
type UsageView struct {
	Analysis *models.UsageAnalysis
	Verbose  bool
}

// NewUsageView wraps a usage analysis for output.
func NewUsageView(a *models.UsageAnalysis, verbose bool) *UsageView {
	return &UsageView{Analysis: a, Verbose: verbose}
}

var usageHeaders = []string{"Kind", "Entity", "Score", "Verdict", "Evidence"}

func (v *UsageView) RenderData() any {
	return v.Analysis
}

func (v *UsageView) rows(colored bool) [][]string {
	var rows [][]string
	for _, e := range v.Analysis.Entities {
		if !v.Verbose && e.Verdict == models.VerdictUsed {
			continue
		}
		verdict := string(e.Verdict)
		if colored {
			verdict = VerdictColor(verdict, verdict)
		}
		rows = append(rows, []string{
			e.Kind,
			e.Identifier,
			fmt.Sprintf("%.2f", e.Score),
			verdict,
			e.Evidence(),
		})
	}
	return rows
}

func (v *UsageView) report(colored bool) *Report {
	r := &Report{Title: "Usage Analysis"}

	if rows := v.rows(colored); len(rows) > 0 {
		r.Sections = append(r.Sections, NewTable("Entities", usageHeaders, rows, nil, nil))
	} else {
		r.Sections = append(r.Sections, &Section{Title: "Entities", Content: "No unused or weakly referenced entities."})
	}

	r.Sections = append(r.Sections, &Section{Title: "Summary", Content: v.Analysis.Summary.String()})

	if len(v.Analysis.Diagnostics) > 0 {
		lines := make([]string, len(v.Analysis.Diagnostics))
		for i, d := range v.Analysis.Diagnostics {
			lines[i] = "- " + d.String()
		}
		r.Sections = append(r.Sections, &Section{Title: "Diagnostics", Content: strings.Join(lines, "\n")})
	}
	return r
}

func (v *UsageView) RenderText(w io.Writer, colored bool) error {
	return v.report(colored).RenderText(w, colored)
}

func (v *UsageView) RenderMarkdown(w io.Writer) error {
	return v.report(false).RenderMarkdown(w)
}
