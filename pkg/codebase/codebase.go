// Package codebase discovers a project's files and tokenizes them into a
// corpus, one token list per file, memoized through a cache.Store.
package codebase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/janitor/internal/fileproc"
	"github.com/panbanda/janitor/internal/logging"
	"github.com/panbanda/janitor/pkg/cache"
	"github.com/panbanda/janitor/pkg/diag"
	"github.com/panbanda/janitor/pkg/tokenizer"
)

// KeyPrefix namespaces token entries in a shared store.
const KeyPrefix = "janitor.tokens."

// FallbackSuffix marks the entry holding a tokens entry's fallback note.
// Only files whose tokenizer fell back have one.
const FallbackSuffix = ".fallback"

// CacheKey returns the store key for a file's tokens. It changes whenever the
// file's modification time does.
func CacheKey(path string, modTime time.Time) string {
	return KeyPrefix + strconv.FormatUint(xxhash.Sum64String(path), 16) + "-" + strconv.FormatInt(modTime.UnixNano(), 10)
}

// Corpus maps a file's RelPath to its tokens.
type Corpus map[string][]string

// Paths returns the corpus paths in sorted order.
func (c Corpus) Paths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TokenCount returns the total number of tokens across all files.
func (c Corpus) TokenCount() int {
	n := 0
	for _, tokens := range c {
		n += len(tokens)
	}
	return n
}

// TokenizeFunc extracts tokens from a file's bytes.
type TokenizeFunc func(path string, src []byte) ([]string, error)

// Codebase is a discovered file set and its lazily built corpus.
// It is safe for concurrent use.
type Codebase struct {
	root        string
	discover    DiscoverOptions
	store       cache.Store
	logger      *slog.Logger
	workers     int
	maxFileSize int64
	onProgress  fileproc.ProgressFunc
	tokenize    TokenizeFunc

	mu     sync.Mutex
	files  []SourceFile
	corpus Corpus
	diags  []diag.Diagnostic
}

// Option configures a Codebase.
type Option func(*Codebase)

// WithStore sets the token store. Defaults to a store that never remembers.
func WithStore(s cache.Store) Option {
	return func(c *Codebase) {
		if s != nil {
			c.store = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codebase) {
		c.logger = logging.OrDiscard(l)
	}
}

// WithDiscoverOptions sets which files are part of the codebase.
func WithDiscoverOptions(opts DiscoverOptions) Option {
	return func(c *Codebase) {
		c.discover = opts
	}
}

// WithWorkers bounds tokenization concurrency. 0 means 2x NumCPU.
func WithWorkers(n int) Option {
	return func(c *Codebase) {
		c.workers = n
	}
}

// WithMaxFileSize skips files larger than n bytes. 0 means no limit.
func WithMaxFileSize(n int64) Option {
	return func(c *Codebase) {
		c.maxFileSize = n
	}
}

// WithProgress is called once per file after it is tokenized or skipped.
func WithProgress(fn func()) Option {
	return func(c *Codebase) {
		c.onProgress = fn
	}
}

// WithTokenizeFunc replaces the tokenizer.
func WithTokenizeFunc(fn TokenizeFunc) Option {
	return func(c *Codebase) {
		if fn != nil {
			c.tokenize = fn
		}
	}
}

// New discovers the files under root. It fails only when root is unusable.
func New(root string, opts ...Option) (*Codebase, error) {
	c := &Codebase{
		root:     root,
		discover: DefaultDiscoverOptions(),
		store:    cache.NewNull(),
		logger:   logging.Discard(),
		tokenize: tokenizer.Tokenize,
	}
	for _, opt := range opts {
		opt(c)
	}

	files, err := Discover(root, c.discover)
	if err != nil {
		return nil, err
	}
	c.files = files
	c.logger.Debug("discovered files", "root", root, "count", len(files))
	return c, nil
}

// Root returns the directory the codebase was discovered from.
func (c *Codebase) Root() string {
	return c.root
}

// Files returns the discovered files sorted by RelPath.
func (c *Codebase) Files() []SourceFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SourceFile(nil), c.files...)
}

// Tokenized returns the corpus, tokenizing every file on the first call.
// Later calls return the memoized corpus until Invalidate. Unreadable and
// oversized files are left out and reported through Diagnostics. The only
// errors are a cancelled ctx or a root that vanished before rediscovery.
func (c *Codebase) Tokenized(ctx context.Context) (Corpus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.corpus != nil {
		return c.corpus, nil
	}

	if c.files == nil {
		files, err := Discover(c.root, c.discover)
		if err != nil {
			return nil, err
		}
		c.files = files
	}

	start := time.Now()
	diags := &diag.List{}

	results, errs := fileproc.MapIndexed(ctx, c.files, c.workers,
		func(f SourceFile) string { return f.RelPath },
		func(_ context.Context, f SourceFile) ([]string, error) {
			return c.tokenizeFile(f, diags)
		},
		c.onProgress,
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, perr := range errs.Sorted() {
		if errors.Is(perr.Err, errSkipped) {
			continue
		}
		kind := diag.KindRead
		var pathErr *fs.PathError
		if !errors.As(perr.Err, &pathErr) {
			kind = diag.KindTokenize
		}
		diags.Add(diag.Diagnostic{Kind: kind, Path: perr.Path, Message: perr.Err.Error()})
		c.logger.Warn("file skipped", "path", perr.Path, "error", perr.Err)
	}

	corpus := make(Corpus, len(c.files))
	for i, r := range results {
		if r.OK {
			corpus[c.files[i].RelPath] = r.Value
		}
	}

	c.corpus = corpus
	c.diags = diags.Items()
	c.logger.Debug("tokenized codebase",
		"files", len(corpus),
		"tokens", corpus.TokenCount(),
		"diagnostics", len(c.diags),
		"elapsed", time.Since(start))
	return corpus, nil
}

// Invalidate drops the memoized corpus and file list. The next Tokenized call
// rediscovers files and consults the store again; unchanged files hit it.
func (c *Codebase) Invalidate() {
	c.mu.Lock()
	c.files = nil
	c.corpus = nil
	c.diags = nil
	c.mu.Unlock()
}

// Diagnostics returns the recoverable problems of the last tokenization.
func (c *Codebase) Diagnostics() []diag.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]diag.Diagnostic(nil), c.diags...)
}

var (
	// errSkipped marks a file left out by policy; its diagnostic is already recorded.
	errSkipped = errors.New("skipped")
	// errNoNote is returned by a lookup-only compute so nothing gets stored.
	errNoNote = errors.New("no fallback note")
)

func (c *Codebase) tokenizeFile(f SourceFile, diags *diag.List) ([]string, error) {
	// Fresh stat so edits since discovery produce a new key
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, err
	}
	if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
		diags.Add(diag.Diagnostic{
			Kind:    diag.KindSkipped,
			Path:    f.RelPath,
			Message: fmt.Sprintf("%d bytes exceeds limit of %d", info.Size(), c.maxFileSize),
		})
		return nil, errSkipped
	}

	key := CacheKey(f.Path, info.ModTime())
	computed := false
	tokens, err := c.store.RememberForever(key, func() ([]string, error) {
		computed = true
		src, err := f.Read()
		if err != nil {
			return nil, err
		}

		tokens, err := c.tokenize(f.Path, src)
		var fallback *tokenizer.FallbackError
		if errors.As(err, &fallback) {
			c.logger.Debug("tokenizer fallback", "path", f.RelPath, "kind", fallback.Kind, "error", fallback.Err)
			// Written before the tokens entry, so a stored token set always
			// has its note next to it.
			if _, err := c.store.RememberForever(key+FallbackSuffix, func() ([]string, error) {
				return []string{fallback.Error()}, nil
			}); err != nil {
				return nil, err
			}
			diags.Add(diag.Diagnostic{Kind: diag.KindTokenize, Path: f.RelPath, Message: fallback.Error()})
			return tokens, nil
		}
		if err != nil {
			return nil, err
		}
		return tokens, nil
	})
	if err != nil || computed {
		return tokens, err
	}

	// Cache hit: replay the fallback recorded when the tokens were computed.
	notes, err := c.store.RememberForever(key+FallbackSuffix, func() ([]string, error) {
		return nil, errNoNote
	})
	if err == nil {
		for _, note := range notes {
			diags.Add(diag.Diagnostic{Kind: diag.KindTokenize, Path: f.RelPath, Message: note})
		}
	}
	return tokens, nil
}
