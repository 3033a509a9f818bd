// Package cache memoizes token sets.
//
// A Store remembers the result of a computation forever: there is no TTL and no
// eviction. Callers build keys that change whenever the input changes (the
// codebase index uses a path hash plus modification time), so stale entries are
// simply never asked for again.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Compute produces the value for a cache miss.
type Compute func() ([]string, error)

// Store is a "remember forever" key-value memo.
//
// RememberForever returns the stored value for key, or calls compute, stores
// its result and returns it. A compute error is returned as is and nothing is
// stored. Returned slices are shared and must not be modified.
type Store interface {
	RememberForever(key string, compute Compute) ([]string, error)
}

// Backend names a Store implementation.
type Backend string

const (
	BackendNone   Backend = "none"
	BackendMemory Backend = "memory"
	BackendDisk   Backend = "disk"
	BackendTiered Backend = "tiered"
)

// ParseBackend converts a string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendNone, BackendMemory, BackendDisk, BackendTiered:
		return b, nil
	case "", "null", "off":
		return BackendNone, nil
	default:
		return "", fmt.Errorf("unknown cache backend %q", s)
	}
}

// Options configures Open.
type Options struct {
	Backend  Backend
	Dir      string
	Compress bool
	Logger   *slog.Logger
	// OnError receives recoverable disk failures; see WithErrorHandler.
	OnError func(key string, err error)
}

// Open builds the store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendNone, "":
		return NewNull(), nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendDisk:
		return NewDisk(opts.Dir, opts.diskOptions()...)
	case BackendTiered:
		disk, err := NewDisk(opts.Dir, opts.diskOptions()...)
		if err != nil {
			return nil, err
		}
		return NewTiered(NewMemory(), disk), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

func (opts Options) diskOptions() []DiskOption {
	return []DiskOption{
		WithCompression(opts.Compress),
		WithLogger(opts.Logger),
		WithErrorHandler(opts.OnError),
	}
}

// Null never stores anything; every call computes.
type Null struct{}

// NewNull creates a store that always misses.
func NewNull() *Null {
	return &Null{}
}

// RememberForever implements Store.
func (*Null) RememberForever(_ string, compute Compute) ([]string, error) {
	return compute()
}

// Memory keeps entries in process memory for the lifetime of the instance.
// Concurrent callers asking for the same missing key share one computation.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]string
	group singleflight.Group
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]string)}
}

// RememberForever implements Store.
func (m *Memory) RememberForever(key string, compute Compute) ([]string, error) {
	if v, ok := m.get(key); ok {
		return v, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.get(key); ok {
			return v, nil
		}
		tokens, err := compute()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.items[key] = tokens
		m.mu.Unlock()
		return tokens, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (m *Memory) get(key string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Tiered serves from memory first and falls back to a persistent store,
// populating memory on the way out.
type Tiered struct {
	front *Memory
	back  Store
}

// NewTiered layers a memory store over a persistent one.
func NewTiered(front *Memory, back Store) *Tiered {
	return &Tiered{front: front, back: back}
}

// RememberForever implements Store.
func (t *Tiered) RememberForever(key string, compute Compute) ([]string, error) {
	return t.front.RememberForever(key, func() ([]string, error) {
		return t.back.RememberForever(key, compute)
	})
}

// Back returns the persistent tier.
func (t *Tiered) Back() Store {
	return t.back
}
