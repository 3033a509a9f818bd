package codebase

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	pathpkg "path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/janitor/pkg/config"
	"github.com/panbanda/janitor/pkg/tokenizer"
)

// ErrRootNotFound is returned (wrapped in a *RootError) when the project root
// does not exist.
var ErrRootNotFound = errors.New("root not found")

// ErrNotDirectory is returned (wrapped in a *RootError) when the project root
// is a file.
var ErrNotDirectory = errors.New("root is not a directory")

// RootError is the only fatal discovery error.
type RootError struct {
	Path string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Path, e.Err)
}

func (e *RootError) Unwrap() error {
	return e.Err
}

// SourceFile is one discovered file. Its identity is RelPath.
type SourceFile struct {
	Path    string         // absolute path
	RelPath string         // slash-separated, relative to the root
	Kind    tokenizer.Kind // tokenization strategy
	ModTime time.Time
	Size    int64
}

// Read returns the file's bytes.
func (f SourceFile) Read() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// DiscoverOptions controls which files belong to the codebase.
type DiscoverOptions struct {
	Extensions []string // allowed extensions, without the dot
	Ignore     []string // doublestar globs matched against RelPath
	Gitignore  bool     // honor .gitignore files of the enclosing repository
}

// DefaultDiscoverOptions returns the discovery settings of the default config.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptionsFromConfig(config.DefaultConfig())
}

// DiscoverOptionsFromConfig extracts discovery settings from cfg.
func DiscoverOptionsFromConfig(cfg *config.Config) DiscoverOptions {
	return DiscoverOptions{
		Extensions: cfg.Scan.Extensions,
		Ignore:     cfg.Scan.Ignore,
		Gitignore:  cfg.Scan.Gitignore,
	}
}

// Discover walks root and returns every allowed, non-ignored file sorted by
// RelPath. Unreadable subdirectories are skipped; only a missing, unreadable
// or invalid root is an error.
func Discover(root string, opts DiscoverOptions) ([]SourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &RootError{Path: root, Err: ErrRootNotFound}
		}
		return nil, &RootError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &RootError{Path: root, Err: ErrNotDirectory}
	}

	// Resolve root to absolute path for symlink validation
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &RootError{Path: root, Err: err}
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, &RootError{Path: root, Err: err}
	}

	flt, err := newFilter(absRoot, opts)
	if err != nil {
		return nil, err
	}
	files := make([]SourceFile, 0, 256)

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil
		}
		if path == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		// Skip symlinks that escape the root
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if flt.ex.excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !flt.includeFile(rel) {
			return nil
		}

		// Stat follows symlinks, so linked files report their target's metadata
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			return nil
		}

		files = append(files, SourceFile{
			Path:    path,
			RelPath: rel,
			Kind:    tokenizer.Select(path),
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
		return nil
	})

	if err != nil {
		return nil, &RootError{Path: root, Err: err}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Filter decides which paths under a root belong to the codebase, applying
// the same rules as Discover to paths seen later, e.g. by a file watcher.
type Filter struct {
	root    string
	include *regexp.Regexp
	ex      *excluder
}

// NewFilter builds the discovery rules for root.
func NewFilter(root string, opts DiscoverOptions) (*Filter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &RootError{Path: root, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	return newFilter(absRoot, opts)
}

func newFilter(absRoot string, opts DiscoverOptions) (*Filter, error) {
	include, err := regexp.Compile(config.ExtensionPattern(opts.Extensions))
	if err != nil {
		return nil, fmt.Errorf("extension pattern: %w", err)
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid ignore glob: %s", pattern)
		}
	}
	return &Filter{root: absRoot, include: include, ex: newExcluder(absRoot, opts)}, nil
}

// Root returns the resolved absolute root.
func (f *Filter) Root() string {
	return f.root
}

// Rel converts path to a slash-separated path relative to the root, "." for
// the root itself. ok is false for paths outside the root.
func (f *Filter) Rel(path string) (rel string, ok bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.root, path)
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		path = filepath.Join(resolved, filepath.Base(path))
	}
	if !isWithinRoot(path, f.root) {
		return "", false
	}
	r, err := filepath.Rel(f.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// IncludesFile reports whether the file at path would be discovered.
func (f *Filter) IncludesFile(path string) bool {
	rel, ok := f.Rel(path)
	return ok && f.includeFile(rel)
}

// SkipsDir reports whether discovery would skip the directory at path.
func (f *Filter) SkipsDir(path string) bool {
	rel, ok := f.Rel(path)
	if !ok {
		return true
	}
	return rel != "." && f.ex.excluded(rel, true)
}

func (f *Filter) includeFile(rel string) bool {
	return f.include.MatchString(pathpkg.Base(rel)) && !f.ex.excluded(rel, false)
}

// excluder applies ignore globs and .gitignore rules.
type excluder struct {
	globs   []string
	matcher gitignore.Matcher
	prefix  []string // root's path below the git root
}

func newExcluder(absRoot string, opts DiscoverOptions) *excluder {
	ex := &excluder{}
	for _, g := range opts.Ignore {
		ex.globs = append(ex.globs, filepath.ToSlash(g))
	}

	if !opts.Gitignore {
		return ex
	}
	gitRoot := findGitRoot(absRoot)
	if gitRoot == "" {
		return ex
	}

	// ReadPatterns walks every .gitignore below the git root
	patterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(patterns) == 0 {
		return ex
	}
	ex.matcher = gitignore.NewMatcher(patterns)

	if rel, err := filepath.Rel(gitRoot, absRoot); err == nil && rel != "." {
		ex.prefix = strings.Split(filepath.ToSlash(rel), "/")
	}
	return ex
}

func (ex *excluder) excluded(rel string, isDir bool) bool {
	for _, g := range ex.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}

	if ex.matcher != nil {
		parts := make([]string, 0, len(ex.prefix)+4)
		parts = append(parts, ex.prefix...)
		parts = append(parts, strings.Split(rel, "/")...)
		if ex.matcher.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// findGitRoot finds the root of the git repository by looking for .git.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
