// Package diag collects recoverable problems found during a scan.
//
// Nothing recorded here aborts an analysis; the caller decides how to report it.
package diag

import (
	"fmt"
	"sort"
	"sync"
)

// Kind classifies a diagnostic.
type Kind string

const (
	// KindRead means a file could not be read and was skipped.
	KindRead Kind = "read"
	// KindSkipped means a file was skipped by policy (e.g. size limit).
	KindSkipped Kind = "skipped"
	// KindTokenize means a structured tokenizer failed and the default one was used.
	KindTokenize Kind = "tokenize"
	// KindPattern means a regex needle did not compile and never matches.
	KindPattern Kind = "pattern"
	// KindNeedle means a needle was malformed (empty text, weight out of range).
	KindNeedle Kind = "needle"
	// KindCache means a stored entry could not be read or written back; the
	// value was computed again.
	KindCache Kind = "cache"
)

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// Diagnostic is a single recoverable problem.
type Diagnostic struct {
	Kind    Kind   `json:"kind" toon:"kind"`
	Path    string `json:"path,omitempty" toon:"path,omitempty"`
	Entity  string `json:"entity,omitempty" toon:"entity,omitempty"`
	Message string `json:"message" toon:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Path != "" && d.Entity != "":
		return fmt.Sprintf("[%s] %s (%s): %s", d.Kind, d.Entity, d.Path, d.Message)
	case d.Path != "":
		return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Path, d.Message)
	case d.Entity != "":
		return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Entity, d.Message)
	default:
		return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	}
}

// List is a concurrency-safe diagnostics collection.
// The zero value is ready to use.
type List struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Add appends a diagnostic.
func (l *List) Add(d Diagnostic) {
	l.mu.Lock()
	l.items = append(l.items, d)
	l.mu.Unlock()
}

// Addf appends a diagnostic built from a format string.
func (l *List) Addf(kind Kind, path, format string, args ...any) {
	l.Add(Diagnostic{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Items returns a sorted copy of the collected diagnostics.
// Workers append in arbitrary order, so the copy is sorted to keep reports stable.
func (l *List) Items() []Diagnostic {
	l.mu.Lock()
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	l.mu.Unlock()
	return sorted(out)
}

// Drain returns the collected diagnostics sorted and empties the list.
func (l *List) Drain() []Diagnostic {
	l.mu.Lock()
	out := l.items
	l.items = nil
	l.mu.Unlock()
	return sorted(out)
}

func sorted(out []Diagnostic) []Diagnostic {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Message < out[j].Message
	})
	return out
}
