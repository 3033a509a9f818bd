package codebase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panbanda/janitor/pkg/cache"
	"github.com/panbanda/janitor/pkg/diag"
	"github.com/panbanda/janitor/pkg/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// countingTokenizer wraps the real tokenizer and counts invocations.
func countingTokenizer(calls *atomic.Int32) TokenizeFunc {
	return func(path string, src []byte) ([]string, error) {
		calls.Add(1)
		return tokenizer.Tokenize(path, src)
	}
}

func laravelFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "app/Http/Controllers/UserController.php", `<?php
return view('users.index', ['title' => __('messages.welcome')]);
`)
	writeFile(t, root, "resources/views/users/index.blade.php", `<h1>{{ __('messages.title') }}</h1>
@include('partials.header')`)
	writeFile(t, root, "config/routes.json", `{"home": "users.index"}`)
	writeFile(t, root, "README.md", "Visit \"/orders/42\" for details.\n")
	writeFile(t, root, "notes.txt", "'ignored.by.extension'")
	return root
}

func TestDiscover(t *testing.T) {
	root := laravelFixture(t)
	writeFile(t, root, "vendor/laravel/framework/helpers.php", "<?php 'vendor.only';")
	writeFile(t, root, "node_modules/pkg/index.js", "'npm.only'")

	files, err := Discover(root, DefaultDiscoverOptions())
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
		assert.True(t, filepath.IsAbs(f.Path), f.Path)
		assert.False(t, f.ModTime.IsZero())
	}
	assert.Equal(t, []string{
		"README.md",
		"app/Http/Controllers/UserController.php",
		"config/routes.json",
		"resources/views/users/index.blade.php",
	}, rels)

	assert.Equal(t, tokenizer.KindBlade, files[3].Kind)
	assert.Equal(t, tokenizer.KindJSON, files[2].Kind)
}

func TestDiscover_IgnoreGlobs(t *testing.T) {
	root := laravelFixture(t)

	opts := DefaultDiscoverOptions()
	opts.Ignore = []string{"resources/**", "*.md"}
	files, err := Discover(root, opts)
	require.NoError(t, err)

	for _, f := range files {
		assert.NotContains(t, f.RelPath, "resources/")
		assert.NotEqual(t, "README.md", f.RelPath)
	}
	assert.Len(t, files, 2)
}

func TestDiscover_InvalidGlob(t *testing.T) {
	opts := DefaultDiscoverOptions()
	opts.Ignore = []string{"[unclosed"}
	_, err := Discover(t.TempDir(), opts)
	assert.Error(t, err)
}

func TestDiscover_Gitignore(t *testing.T) {
	root := laravelFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	writeFile(t, root, ".gitignore", "config/\n")

	opts := DefaultDiscoverOptions()
	files, err := Discover(root, opts)
	require.NoError(t, err)
	for _, f := range files {
		assert.NotEqual(t, "config/routes.json", f.RelPath)
	}

	opts.Gitignore = false
	files, err = Discover(root, opts)
	require.NoError(t, err)
	var found bool
	for _, f := range files {
		found = found || f.RelPath == "config/routes.json"
	}
	assert.True(t, found, "gitignore disabled should keep config/routes.json")
}

func TestDiscover_GitignoreFromParentRepository(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))
	writeFile(t, repo, ".gitignore", "site/generated/\n")
	writeFile(t, repo, "site/generated/cache.php", "<?php 'gen';")
	writeFile(t, repo, "site/app.php", "<?php 'app';")

	files, err := Discover(filepath.Join(repo, "site"), DefaultDiscoverOptions())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "app.php", files[0].RelPath)
}

func TestDiscover_SymlinkOutsideRoot(t *testing.T) {
	outside := t.TempDir()
	secret := writeFile(t, outside, "secret.php", "<?php 'secret';")

	root := laravelFixture(t)
	if err := os.Symlink(secret, filepath.Join(root, "linked.php")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	inside := filepath.Join(root, "README.md")
	require.NoError(t, os.Symlink(inside, filepath.Join(root, "alias.md")))

	files, err := Discover(root, DefaultDiscoverOptions())
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	assert.NotContains(t, rels, "linked.php")
	assert.Contains(t, rels, "alias.md")
}

func TestDiscover_RootErrors(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), DefaultDiscoverOptions())
	require.Error(t, err)
	var rootErr *RootError
	assert.ErrorAs(t, err, &rootErr)
	assert.ErrorIs(t, err, ErrRootNotFound)

	file := writeFile(t, t.TempDir(), "file.php", "<?php")
	_, err = Discover(file, DefaultDiscoverOptions())
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = New(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestDiscover_UnreadableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any directory")
	}
	root := t.TempDir()
	writeFile(t, root, "routes.php", "<?php 'users.index';")
	require.NoError(t, os.Chmod(root, 0o311))
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	files, err := Discover(root, DefaultDiscoverOptions())
	require.Error(t, err)
	assert.Nil(t, files)
	var rootErr *RootError
	assert.ErrorAs(t, err, &rootErr)
	assert.ErrorIs(t, err, os.ErrPermission)

	_, err = New(root)
	assert.ErrorAs(t, err, &rootErr)
}

func TestDiscover_EmptyRoot(t *testing.T) {
	files, err := Discover(t.TempDir(), DefaultDiscoverOptions())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestTokenized(t *testing.T) {
	root := laravelFixture(t)
	cb, err := New(root)
	require.NoError(t, err)

	corpus, err := cb.Tokenized(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"README.md",
		"app/Http/Controllers/UserController.php",
		"config/routes.json",
		"resources/views/users/index.blade.php",
	}, corpus.Paths())
	assert.Equal(t, []string{"users.index", "title", "messages.welcome"}, corpus["app/Http/Controllers/UserController.php"])
	assert.Equal(t, []string{"users.index"}, corpus["config/routes.json"])
	assert.Equal(t, []string{"messages.title", "partials.header"}, corpus["resources/views/users/index.blade.php"])
	assert.Equal(t, []string{"/orders/42"}, corpus["README.md"])
	assert.Equal(t, 7, corpus.TokenCount())
	assert.Empty(t, cb.Diagnostics())
}

func TestTokenized_Memoized(t *testing.T) {
	root := laravelFixture(t)
	var calls atomic.Int32
	cb, err := New(root, WithTokenizeFunc(countingTokenizer(&calls)))
	require.NoError(t, err)

	first, err := cb.Tokenized(context.Background())
	require.NoError(t, err)
	second, err := cb.Tokenized(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(4), calls.Load(), "each file tokenized once per corpus")
}

func TestTokenized_CacheTransparency(t *testing.T) {
	root := laravelFixture(t)

	stores := map[string]cache.Store{
		"null":   cache.NewNull(),
		"memory": cache.NewMemory(),
	}
	disk, err := cache.NewDisk(t.TempDir())
	require.NoError(t, err)
	stores["disk"] = disk

	uncached, err := New(root)
	require.NoError(t, err)
	want, err := uncached.Tokenized(context.Background())
	require.NoError(t, err)

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			// Twice: once filling the store, once reading from it
			for i := 0; i < 2; i++ {
				cb, err := New(root, WithStore(store))
				require.NoError(t, err)
				got, err := cb.Tokenized(context.Background())
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestTokenized_PersistentStoreSkipsTokenizer(t *testing.T) {
	root := laravelFixture(t)
	store, err := cache.NewDisk(t.TempDir())
	require.NoError(t, err)

	var calls atomic.Int32
	first, err := New(root, WithStore(store), WithTokenizeFunc(countingTokenizer(&calls)))
	require.NoError(t, err)
	want, err := first.Tokenized(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(4), calls.Load())

	// A new instance over unchanged files reuses every stored entry
	calls.Store(0)
	second, err := New(root, WithStore(store), WithTokenizeFunc(countingTokenizer(&calls)))
	require.NoError(t, err)
	got, err := second.Tokenized(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, want, got)
}

func TestTokenized_InvalidateAfterEdit(t *testing.T) {
	root := laravelFixture(t)
	store := cache.NewMemory()
	var calls atomic.Int32

	cb, err := New(root, WithStore(store), WithTokenizeFunc(countingTokenizer(&calls)))
	require.NoError(t, err)
	_, err = cb.Tokenized(context.Background())
	require.NoError(t, err)

	path := writeFile(t, root, "config/routes.json", `{"home": "orders.show"}`)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	writeFile(t, root, "config/extra.json", `["added"]`)

	cb.Invalidate()
	calls.Store(0)
	corpus, err := cb.Tokenized(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"orders.show"}, corpus["config/routes.json"])
	assert.Equal(t, []string{"added"}, corpus["config/extra.json"])
	assert.Equal(t, int32(2), calls.Load(), "only the edited and the new file are tokenized")
	assert.Len(t, cb.Files(), 5)
}

func TestTokenized_ReadErrorIsDiagnostic(t *testing.T) {
	root := laravelFixture(t)
	cb, err := New(root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))

	corpus, err := cb.Tokenized(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, corpus, "README.md")
	assert.Len(t, corpus, 3)

	diags := cb.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.KindRead, diags[0].Kind)
	assert.Equal(t, "README.md", diags[0].Path)
}

func TestTokenized_MaxFileSize(t *testing.T) {
	root := laravelFixture(t)
	writeFile(t, root, "big.json", `["`+strings.Repeat("a", 200)+`"]`)

	cb, err := New(root, WithMaxFileSize(128))
	require.NoError(t, err)
	corpus, err := cb.Tokenized(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, corpus, "big.json")
	diags := cb.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.KindSkipped, diags[0].Kind)
	assert.Equal(t, "big.json", diags[0].Path)
}

func TestTokenized_FallbackIsDiagnostic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "broken.json", `{"a": "users.index", `)

	cb, err := New(root)
	require.NoError(t, err)
	corpus, err := cb.Tokenized(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "users.index"}, corpus["broken.json"])
	diags := cb.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.KindTokenize, diags[0].Kind)
}

func TestTokenized_FallbackSurvivesCacheHits(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.json", `{"a": "users.index", `)
	writeFile(t, root, "good.json", `{"a": "users.show"}`)

	memory := cache.NewMemory()
	disk, err := cache.NewDisk(t.TempDir())
	require.NoError(t, err)

	for name, store := range map[string]cache.Store{"memory": memory, "disk": disk} {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			cb, err := New(root, WithStore(store), WithTokenizeFunc(countingTokenizer(&calls)))
			require.NoError(t, err)

			first, err := cb.Tokenized(context.Background())
			require.NoError(t, err)
			want := cb.Diagnostics()
			require.Len(t, want, 1)
			assert.Equal(t, diag.KindTokenize, want[0].Kind)
			assert.Equal(t, "bad.json", want[0].Path)

			cb.Invalidate()
			second, err := cb.Tokenized(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int32(2), calls.Load(), "second pass must be served from the store")
			assert.Equal(t, first, second)
			assert.Equal(t, want, cb.Diagnostics())

			// A fresh instance over the same store reports it too
			other, err := New(root, WithStore(store))
			require.NoError(t, err)
			_, err = other.Tokenized(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, other.Diagnostics())
		})
	}
}

func TestTokenized_TokenizerErrorIsDiagnostic(t *testing.T) {
	root := laravelFixture(t)
	boom := errors.New("boom")
	cb, err := New(root, WithTokenizeFunc(func(path string, src []byte) ([]string, error) {
		if filepath.Ext(path) == ".md" {
			return nil, boom
		}
		return tokenizer.Tokenize(path, src)
	}))
	require.NoError(t, err)

	corpus, err := cb.Tokenized(context.Background())
	require.NoError(t, err)
	assert.Len(t, corpus, 3)

	diags := cb.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.KindTokenize, diags[0].Kind)
}

func TestTokenized_Cancelled(t *testing.T) {
	cb, err := New(laravelFixture(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cb.Tokenized(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// A cancelled run is not memoized
	corpus, err := cb.Tokenized(context.Background())
	require.NoError(t, err)
	assert.Len(t, corpus, 4)
}

func TestTokenized_Progress(t *testing.T) {
	var ticks atomic.Int32
	cb, err := New(laravelFixture(t), WithWorkers(2), WithProgress(func() { ticks.Add(1) }))
	require.NoError(t, err)

	_, err = cb.Tokenized(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), ticks.Load())
}

func TestCacheKey(t *testing.T) {
	mtime := time.Unix(1700000000, 5)
	key := CacheKey("/srv/app/routes/web.php", mtime)

	assert.Equal(t, key, CacheKey("/srv/app/routes/web.php", mtime))
	assert.Regexp(t, `^janitor\.tokens\.[0-9a-f]+-1700000000000000005$`, key)
	assert.NotEqual(t, key, CacheKey("/srv/app/routes/web.php", mtime.Add(time.Nanosecond)))
	assert.NotEqual(t, key, CacheKey("/srv/app/routes/api.php", mtime))
}

func TestFilter(t *testing.T) {
	root := laravelFixture(t)
	writeFile(t, root, "vendor/pkg/helpers.php", "<?php")

	flt, err := NewFilter(root, DefaultDiscoverOptions())
	require.NoError(t, err)

	assert.True(t, flt.IncludesFile(filepath.Join(root, "README.md")))
	assert.True(t, flt.IncludesFile("app/Http/Controllers/UserController.php"))
	assert.False(t, flt.IncludesFile(filepath.Join(root, "notes.txt")))
	assert.False(t, flt.IncludesFile(filepath.Join(root, "vendor/pkg/helpers.php")))
	assert.False(t, flt.IncludesFile(filepath.Join(t.TempDir(), "outside.php")))

	assert.False(t, flt.SkipsDir(root))
	assert.False(t, flt.SkipsDir(filepath.Join(root, "app")))
	assert.True(t, flt.SkipsDir(filepath.Join(root, "vendor")) || flt.SkipsDir(filepath.Join(root, "vendor", "pkg")))

	rel, ok := flt.Rel(filepath.Join(root, "config", "routes.json"))
	assert.True(t, ok)
	assert.Equal(t, "config/routes.json", rel)
}

func TestFilterInvalidGlob(t *testing.T) {
	opts := DefaultDiscoverOptions()
	opts.Ignore = []string{"[unclosed"}
	_, err := NewFilter(t.TempDir(), opts)
	assert.Error(t, err)
}
