// Package entity provides the analyzable entities of a web project: routes,
// views and translation keys, each with the needles that reveal its usage.
package entity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/panbanda/janitor/pkg/usage"
)

// Needle weights shared by the built-in entities.
const (
	WeightConclusive = 1.0
	WeightStrong     = 0.5
	WeightWeak       = 0.25
)

// Entity kinds.
const (
	KindRoute       = "route"
	KindView        = "view"
	KindTranslation = "translation"
)

// closureAction is the action name of routes handled by an inline closure.
// It appears in every route file and says nothing about a specific route.
const closureAction = "Closure"

// Route is an HTTP route.
type Route struct {
	Methods   []string          `json:"methods,omitempty"`
	URI       string            `json:"uri"`
	RouteName string            `json:"name,omitempty"`
	Action    string            `json:"action,omitempty"`
	Pattern   string            `json:"pattern,omitempty"` // compiled matcher; derived from URI when empty
	Wheres    map[string]string `json:"wheres,omitempty"`  // parameter constraints
}

func (r Route) Kind() string { return KindRoute }

// Name returns the route name, or its URI for unnamed routes.
func (r Route) Name() string {
	if r.RouteName != "" {
		return r.RouteName
	}
	return "/" + strings.TrimPrefix(r.URI, "/")
}

// Identifier is "METHODS /uri", e.g. "GET|HEAD /users".
func (r Route) Identifier() string {
	methods := "ANY"
	if len(r.Methods) > 0 {
		ms := make([]string, len(r.Methods))
		for i, m := range r.Methods {
			ms[i] = strings.ToUpper(m)
		}
		methods = strings.Join(ms, "|")
	}
	return methods + " /" + strings.TrimPrefix(r.URI, "/")
}

// UsageNeedles returns the action (conclusive), the route name (strong) and
// the compiled URI pattern (weak). Empty parts are left out.
func (r Route) UsageNeedles() []usage.Needle {
	var needles []usage.Needle
	if r.Action != "" && r.Action != closureAction {
		needles = append(needles, usage.Literal(WeightConclusive, r.Action))
	}
	if r.RouteName != "" {
		needles = append(needles, usage.Literal(WeightStrong, r.RouteName))
	}
	if p := r.CompiledPattern(); p != "" {
		needles = append(needles, usage.Pattern(WeightWeak, p))
	}
	return needles
}

// CompiledPattern returns the route's RE2 pattern.
func (r Route) CompiledPattern() string {
	if r.Pattern != "" {
		return NormalizePattern(r.Pattern)
	}
	if r.URI == "" {
		return ""
	}
	return CompileURI(r.URI, r.Wheres)
}

// View is a template referenced by its dotted name, e.g. "users.index".
type View struct {
	Template string `json:"name"`
}

func (v View) Kind() string       { return KindView }
func (v View) Name() string       { return v.Template }
func (v View) Identifier() string { return v.Template }

// UsageNeedles returns the dotted name and its slash form.
func (v View) UsageNeedles() []usage.Needle {
	if v.Template == "" {
		return nil
	}
	needles := []usage.Needle{usage.Literal(WeightConclusive, v.Template)}
	if path := viewPath(v.Template); path != v.Template {
		needles = append(needles, usage.Literal(WeightStrong, path))
	}
	return needles
}

// viewPath converts "users.index" to "users/index", keeping a "pkg::" namespace.
func viewPath(name string) string {
	ns, rest := "", name
	if i := strings.Index(name, "::"); i >= 0 {
		ns, rest = name[:i+2], name[i+2:]
	}
	return ns + strings.ReplaceAll(rest, ".", "/")
}

// TranslationKey is a localization key, e.g. "messages.welcome".
type TranslationKey struct {
	Key string `json:"key"`
}

func (t TranslationKey) Kind() string       { return KindTranslation }
func (t TranslationKey) Name() string       { return t.Key }
func (t TranslationKey) Identifier() string { return t.Key }

// UsageNeedles returns the key itself, plus a weak pattern for the bare group
// prefix ("messages.") that dynamic lookups such as __('messages.'.$k) leave.
func (t TranslationKey) UsageNeedles() []usage.Needle {
	if t.Key == "" {
		return nil
	}
	needles := []usage.Needle{usage.Literal(WeightConclusive, t.Key)}
	if i := strings.LastIndex(t.Key, "."); i > 0 {
		needles = append(needles, usage.Pattern(WeightWeak, `^`+regexp.QuoteMeta(t.Key[:i+1])+`$`))
	}
	return needles
}

// Custom is an entity whose needles are given explicitly.
type Custom struct {
	EntityKind string         `json:"kind"`
	EntityName string         `json:"name"`
	ID         string         `json:"id,omitempty"`
	Needles    []usage.Needle `json:"needles"`
}

func (c Custom) Kind() string {
	if c.EntityKind == "" {
		return "custom"
	}
	return c.EntityKind
}

func (c Custom) Name() string { return c.EntityName }

func (c Custom) Identifier() string {
	if c.ID != "" {
		return c.ID
	}
	return c.EntityName
}

func (c Custom) UsageNeedles() []usage.Needle {
	return append([]usage.Needle(nil), c.Needles...)
}

// Sort orders entities by kind, then identifier.
func Sort(entities []usage.Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Kind() != entities[j].Kind() {
			return entities[i].Kind() < entities[j].Kind()
		}
		return entities[i].Identifier() < entities[j].Identifier()
	})
}
