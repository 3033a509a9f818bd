package models

import (
	"encoding/json"
	"testing"

	"github.com/panbanda/janitor/pkg/diag"
	"github.com/panbanda/janitor/pkg/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	def := DefaultThresholds()
	strict := Thresholds{Unused: 0.25, Weak: 1}

	tests := []struct {
		score      float64
		thresholds Thresholds
		want       Verdict
	}{
		{0, def, VerdictUnused},
		{0.25, def, VerdictWeak},
		{0.49, def, VerdictWeak},
		{0.5, def, VerdictUsed},
		{1, def, VerdictUsed},
		{0.25, strict, VerdictUnused},
		{0.5, strict, VerdictWeak},
		{1, strict, VerdictUsed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score, tt.thresholds), "score %.2f", tt.score)
	}
}

func reports() []usage.Report {
	return []usage.Report{
		{Kind: "view", Name: "users.index", Identifier: "users.index", Score: 1, MaxWeight: 1,
			Match: &usage.Match{Needle: usage.Literal(1, "users.index"), File: "app/Http/Controllers/UserController.php", Token: "users.index"}},
		{Kind: "route", Name: "orders.edit", Identifier: "GET /orders/{id}/edit", Score: 0.25, MaxWeight: 1,
			Match: &usage.Match{Needle: usage.Pattern(0.25, `^/orders/(?P<id>[^/]+)/edit$`), File: "README.md", Token: "/orders/1/edit"}},
		{Kind: "route", Name: "invoices.index", Identifier: "GET /invoices", Score: 0, MaxWeight: 1,
			Diagnostics: []diag.Diagnostic{{Kind: diag.KindPattern, Entity: "GET /invoices", Message: "bad"}}},
		{Kind: "route", Name: "users.index", Identifier: "GET /users", Score: 1, MaxWeight: 1},
	}
}

func TestNewUsageAnalysis(t *testing.T) {
	a := NewUsageAnalysis("/srv/app", reports(), DefaultThresholds(), 12, 340)

	var ids []string
	for _, e := range a.Entities {
		ids = append(ids, e.Kind+" "+e.Identifier)
	}
	assert.Equal(t, []string{
		"route GET /invoices",
		"route GET /orders/{id}/edit",
		"route GET /users",
		"view users.index",
	}, ids)

	s := a.Summary
	assert.Equal(t, 4, s.TotalEntities)
	assert.Equal(t, 2, s.Used)
	assert.Equal(t, 1, s.Weak)
	assert.Equal(t, 1, s.Unused)
	assert.Equal(t, 12, s.FilesScanned)
	assert.Equal(t, 340, s.TokensScanned)
	assert.InDelta(t, 0.5625, s.MeanScore, 1e-9)
	assert.InDelta(t, 0.25, s.MedianScore, 1e-9)
	assert.Greater(t, s.StdDevScore, 0.0)
	assert.Equal(t, KindSummary{Total: 3, Weak: 1, Unused: 1}, s.ByKind["route"])
	assert.Equal(t, KindSummary{Total: 1}, s.ByKind["view"])
	assert.Equal(t, []string{"route", "view"}, s.Kinds())

	assert.True(t, a.HasUnused())
	unused := a.Filter(VerdictUnused)
	require.Len(t, unused, 1)
	assert.Equal(t, "GET /invoices", unused[0].Identifier)
	assert.Empty(t, unused[0].Evidence())
	assert.Len(t, unused[0].Diagnostics, 1)
	assert.Len(t, a.Filter(VerdictWeak, VerdictUnused), 2)
	assert.Equal(t, "README.md: /orders/1/edit", a.Filter(VerdictWeak)[0].Evidence())
}

func TestNewUsageAnalysis_Empty(t *testing.T) {
	a := NewUsageAnalysis(".", nil, DefaultThresholds(), 0, 0)
	assert.Empty(t, a.Entities)
	assert.False(t, a.HasUnused())
	assert.Zero(t, a.Summary.MeanScore)

	// No NaN may reach JSON encoding
	_, err := json.Marshal(a)
	assert.NoError(t, err)
}

func TestNewUsageAnalysis_SingleEntity(t *testing.T) {
	a := NewUsageAnalysis(".", reports()[:1], DefaultThresholds(), 1, 1)
	assert.Zero(t, a.Summary.StdDevScore)
	_, err := json.Marshal(a)
	assert.NoError(t, err)
}

func TestUsageSummaryString(t *testing.T) {
	s := UsageSummary{TotalEntities: 1200, Used: 1000, Weak: 150, Unused: 50, FilesScanned: 4312, TokensScanned: 1250000, MeanScore: 0.8}
	assert.Equal(t,
		"1,200 entities: 1,000 used, 150 weak, 50 unused (4,312 files, 1,250,000 tokens scanned; mean score 0.80)",
		s.String())
}

func TestEntityUsageJSON(t *testing.T) {
	a := NewUsageAnalysis(".", reports()[:1], DefaultThresholds(), 1, 1)
	data, err := json.Marshal(a.Entities[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "used", decoded["verdict"])
	assert.Equal(t, "users.index", decoded["identifier"])
	assert.Contains(t, decoded, "match")
	assert.NotContains(t, decoded, "diagnostics")
}
