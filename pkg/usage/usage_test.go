package usage

import (
	"math"
	"sync"
	"testing"

	"github.com/panbanda/janitor/pkg/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEntity struct {
	kind, name, id string
	needles        []Needle
}

func (s stubEntity) Kind() string           { return s.kind }
func (s stubEntity) Name() string           { return s.name }
func (s stubEntity) Identifier() string     { return s.id }
func (s stubEntity) UsageNeedles() []Needle { return s.needles }

func laravelCorpus() map[string][]string {
	return map[string][]string{
		"routes/web.php":                   {"/users", "UserController@index", "users.index"},
		"resources/views/orders.blade.php": {"orders.list", "/orders/42"},
		"README.md":                        {"Run the tests"},
	}
}

func TestScore_Scenarios(t *testing.T) {
	m := NewMatcher()
	corpus := laravelCorpus()

	tests := []struct {
		name    string
		needles []Needle
		want    float64
	}{
		{
			name:    "action literal matches",
			needles: []Needle{Literal(1, "UserController@index"), Literal(0.5, "users.index")},
			want:    1,
		},
		{
			name:    "nothing matches",
			needles: []Needle{Literal(1, "OrderController@show")},
			want:    0,
		},
		{
			name: "only the pattern matches",
			needles: []Needle{
				Literal(1, "OrderController@show"),
				Literal(0.5, "orders.show"),
				Pattern(0.25, `^/orders/[0-9]+$`),
			},
			want: 0.25,
		},
		{
			name:    "substring inside a larger token",
			needles: []Needle{Literal(0.5, "Controller@ind")},
			want:    0.5,
		},
		{
			name:    "case sensitive",
			needles: []Needle{Literal(1, "usercontroller@index")},
			want:    0,
		},
		{
			name:    "max not sum",
			needles: []Needle{Literal(0.5, "users.index"), Literal(0.25, "/users"), Literal(0.25, "orders.list")},
			want:    0.5,
		},
		{
			name:    "unanchored pattern matches within token",
			needles: []Needle{Pattern(0.75, `Controller@\w+`)},
			want:    0.75,
		},
		{
			name:    "no needles",
			needles: nil,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Score(tt.needles, corpus))
		})
	}
}

func TestScore_EmptyCorpus(t *testing.T) {
	m := NewMatcher()
	assert.Zero(t, m.Score([]Needle{Literal(1, "x")}, nil))
	assert.Zero(t, m.Score([]Needle{Literal(1, "x")}, map[string][]string{"a.php": nil}))
}

func TestScore_Bounds(t *testing.T) {
	m := NewMatcher()
	corpus := laravelCorpus()

	needleSets := [][]Needle{
		{Literal(0.3, "users"), Literal(0.6, "orders"), Pattern(0.9, `^zzz$`)},
		{Literal(0.1, "README")},
		{Pattern(1, `.`), Literal(0.2, "/")},
		{Literal(0.4, "Run"), Literal(0.4, "tests")},
	}
	for _, needles := range needleSets {
		r := m.evaluate("", needles, corpus)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, r.MaxWeight)
		assert.Equal(t, r.Score == 0, r.Match == nil, "score is 0 iff nothing matched")
	}
}

func TestEvaluate_Evidence(t *testing.T) {
	m := NewMatcher()
	e := stubEntity{
		kind: "route",
		name: "users.index",
		id:   "GET /users",
		needles: []Needle{
			Literal(0.5, "users.index"),
			Literal(1, "UserController@index"),
			Pattern(0.25, `^/users$`),
		},
	}

	r := m.Evaluate(e, laravelCorpus())
	assert.Equal(t, "route", r.Kind)
	assert.Equal(t, "users.index", r.Name)
	assert.Equal(t, "GET /users", r.Identifier)
	assert.Equal(t, 1.0, r.Score)
	assert.Equal(t, 1.0, r.MaxWeight)
	assert.True(t, r.Used())
	require.NotNil(t, r.Match)
	assert.Equal(t, "routes/web.php", r.Match.File)
	assert.Equal(t, "UserController@index", r.Match.Token)
	assert.Equal(t, Literal(1, "UserController@index"), r.Match.Needle)
	assert.Empty(t, r.Diagnostics)
}

func TestEvaluate_DeterministicTieBreak(t *testing.T) {
	corpus := map[string][]string{
		"b.php": {"beta"},
		"a.php": {"alpha", "beta"},
		"c.php": {"alpha"},
	}
	needles := []Needle{Literal(0.5, "beta"), Literal(0.5, "alpha")}

	m := NewMatcher()
	first := m.evaluate("", needles, corpus)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, m.evaluate("", needles, corpus))
	}

	// Equal weights keep input order; files are visited in sorted order
	require.NotNil(t, first.Match)
	assert.Equal(t, "beta", first.Match.Needle.Text)
	assert.Equal(t, "a.php", first.Match.File)
}

func TestEvaluate_InvalidNeedles(t *testing.T) {
	m := NewMatcher()
	e := stubEntity{
		kind: "route",
		id:   "GET /broken",
		needles: []Needle{
			Pattern(1, `^/users/(`),
			Literal(0, "users.index"),
			Literal(1.5, "users.index"),
			Literal(math.NaN(), "users.index"),
			Literal(0.5, ""),
			Literal(0.25, "/users"),
		},
	}

	r := m.Evaluate(e, laravelCorpus())
	assert.Equal(t, 0.25, r.Score, "invalid needles never contribute")
	assert.Equal(t, 0.25, r.MaxWeight)
	require.Len(t, r.Diagnostics, 5)

	kinds := map[diag.Kind]int{}
	for _, d := range r.Diagnostics {
		kinds[d.Kind]++
		assert.Equal(t, "GET /broken", d.Entity)
	}
	assert.Equal(t, 1, kinds[diag.KindPattern])
	assert.Equal(t, 4, kinds[diag.KindNeedle])
}

func TestEvaluate_InvalidPatternReportedEvenAfterMatch(t *testing.T) {
	m := NewMatcher()
	r := m.evaluate("x", []Needle{Literal(1, "users.index"), Pattern(0.25, `[`)}, laravelCorpus())

	assert.Equal(t, 1.0, r.Score)
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, diag.KindPattern, r.Diagnostics[0].Kind)
}

func TestMatcher_PatternCache(t *testing.T) {
	m := NewMatcher()
	needles := []Needle{Pattern(0.25, `^/orders/[0-9]+$`), Pattern(0.25, `(`)}

	m.Score(needles, laravelCorpus())
	m.Score(needles, laravelCorpus())

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Len(t, m.patterns, 2)
	assert.NotNil(t, m.patterns[`^/orders/[0-9]+$`].re)
	assert.Error(t, m.patterns[`(`].err)
}

func TestMatcher_Concurrent(t *testing.T) {
	m := NewMatcher()
	corpus := laravelCorpus()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 0.25, m.Score([]Needle{Pattern(0.25, `^/orders/\d+$`)}, corpus))
		}()
	}
	wg.Wait()
}

func TestNeedleString(t *testing.T) {
	assert.Equal(t, `1.00 "users.index"`, Literal(1, "users.index").String())
	assert.Equal(t, `0.25 /^a$/`, Pattern(0.25, "^a$").String())
}
