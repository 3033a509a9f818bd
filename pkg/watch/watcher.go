// Package watch re-runs a check whenever files of a codebase change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/janitor/internal/logging"
	"github.com/panbanda/janitor/pkg/codebase"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Callback receives the slash-separated relative paths that changed since the
// previous call, sorted.
type Callback func(ctx context.Context, changed []string)

// Watcher monitors the files of a codebase and batches changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	filter    *codebase.Filter
	debounce  time.Duration
	logger    *slog.Logger
	callback  Callback
	mu        sync.Mutex
	pending   map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logging.OrDiscard(l)
	}
}

// New creates a watcher for root. Only files that discovery would pick up
// under opts are reported.
func New(root string, opts codebase.DiscoverOptions, options ...Option) (*Watcher, error) {
	filter, err := codebase.NewFilter(root, opts)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		filter:    filter,
		debounce:  DefaultDebounce,
		logger:    logging.Discard(),
		pending:   make(map[string]time.Time),
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

// SetCallback sets the function to call with each batch of changes.
func (w *Watcher) SetCallback(cb Callback) {
	w.mu.Lock()
	w.callback = cb
	w.mu.Unlock()
}

// Root returns the watched root.
func (w *Watcher) Root() string {
	return w.filter.Root()
}

// Start watches until ctx is done or Stop is called. Callbacks run one at a
// time, and none runs after Start returns.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.filter.Root()); err != nil {
		return err
	}
	w.logger.Info("watching for changes", "root", w.filter.Root(), "dirs", len(w.fsWatcher.WatchList()))

	ctx, cancel := context.WithCancel(ctx)
	debounced := make(chan struct{})
	go func() {
		defer close(debounced)
		w.processDebounced(ctx)
	}()
	defer func() {
		cancel()
		<-debounced
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// addTree watches dir and every non-skipped directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.filter.Root() && w.filter.SkipsDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories are watched as they appear.
	if event.Op&fsnotify.Create != 0 && isDir(event.Name) {
		if !w.filter.SkipsDir(event.Name) {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watch directory", "path", event.Name, "error", err)
			}
		}
		return
	}

	if !w.filter.IncludesFile(event.Name) {
		return
	}
	rel, _ := w.filter.Rel(event.Name)

	w.mu.Lock()
	w.pending[rel] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

func (w *Watcher) tick() time.Duration {
	return min(100*time.Millisecond, w.debounce/2+time.Millisecond)
}

// processPending reports the files that stayed quiet for the debounce period.
// A file that changes again while the batch runs lands in the next batch.
func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	cb := w.callback
	w.mu.Unlock()

	if len(ready) == 0 || cb == nil {
		return
	}
	sort.Strings(ready)
	w.logger.Debug("files changed", "count", len(ready), "files", ready)
	cb(ctx, ready)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the watched directories.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
