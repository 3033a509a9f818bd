// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Sorted returns the collected errors ordered by path.
func (e *ProcessingErrors) Sorted() []ProcessingError {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	out := append([]ProcessingError(nil), e.Errors...)
	e.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap returns nil (ProcessingErrors doesn't wrap a single error).
func (e *ProcessingErrors) Unwrap() error {
	return nil
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x suits the mix of file I/O and CGO parsing done per file.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each item is processed.
type ProgressFunc func()

// Workers resolves a configured worker count. Values <= 0 mean 2x NumCPU.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// Indexed is the outcome of processing one item of a MapIndexed call.
type Indexed[R any] struct {
	Value R
	OK    bool
}

// MapIndexed processes items in parallel and returns one outcome per item,
// in input order. Items that fail, or that were not started before ctx was
// cancelled, have OK == false and an entry in the returned errors, keyed by
// name(item).
func MapIndexed[T, R any](
	ctx context.Context,
	items []T,
	workers int,
	name func(T) string,
	fn func(context.Context, T) (R, error),
	onProgress ProgressFunc,
) ([]Indexed[R], *ProcessingErrors) {
	if len(items) == 0 {
		return nil, nil
	}

	// Each goroutine owns one slot, so no mutex is needed on results.
	results := make([]Indexed[R], len(items))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(Workers(workers)).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			defer func() {
				if onProgress != nil {
					onProgress()
				}
			}()

			// Check for cancellation before processing
			select {
			case <-ctx.Done():
				errs.Add(name(item), ctx.Err())
				return nil
			default:
			}

			value, err := fn(ctx, item)
			if err != nil {
				errs.Add(name(item), err)
				return nil // Don't stop pool on individual file errors
			}
			results[i] = Indexed[R]{Value: value, OK: true}
			return nil
		})
	}
	_ = p.Wait() // Per-item errors are already captured in errs

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
