package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	plainExt      = ".json"
	compressedExt = ".json.zst"
	tempPrefix    = ".tmp-"
)

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Disk persists one entry per key under a directory, so token sets survive
// across process runs. Writes go through a temp file and a rename, which makes
// concurrent writers of the same key safe: the last rename wins and every
// candidate value is identical.
type Disk struct {
	dir      string
	compress bool
	logger   *slog.Logger
	onError  func(key string, err error)
}

// entry represents a cached token set on disk.
type entry struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Tokens    []string  `json:"tokens"`
}

// DiskOption configures a Disk store.
type DiskOption func(*Disk)

// WithCompression toggles zstd compression of entries.
func WithCompression(enabled bool) DiskOption {
	return func(d *Disk) {
		d.compress = enabled
	}
}

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *slog.Logger) DiskOption {
	return func(d *Disk) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithErrorHandler is called when an entry is unreadable or corrupt and gets
// recomputed, and when a computed value cannot be written.
func WithErrorHandler(fn func(key string, err error)) DiskOption {
	return func(d *Disk) {
		d.onError = fn
	}
}

// NewDisk creates a disk store rooted at dir, creating the directory if needed.
func NewDisk(dir string, opts ...DiskOption) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	d := &Disk{
		dir:      dir,
		compress: true,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dir returns the directory holding the entries.
func (d *Disk) Dir() string {
	return d.dir
}

// RememberForever implements Store. An unreadable or corrupt entry counts as a
// miss; a failed write is reported and the computed value is still returned.
func (d *Disk) RememberForever(key string, compute Compute) ([]string, error) {
	tokens, err := d.load(key)
	if err == nil {
		return tokens, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		d.report(key, fmt.Errorf("recomputing entry: %w", err))
	}

	tokens, err = compute()
	if err != nil {
		return nil, err
	}

	if err := d.save(key, tokens); err != nil {
		d.report(key, fmt.Errorf("write entry: %w", err))
	}
	return tokens, nil
}

func (d *Disk) report(key string, err error) {
	d.logger.Warn("cache entry problem", "key", key, "error", err)
	if d.onError != nil {
		d.onError(key, err)
	}
}

func (d *Disk) load(key string) ([]string, error) {
	path := d.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if d.compress {
		data, err = decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("corrupt entry %s: %w", filepath.Base(path), err)
		}
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("corrupt entry %s: %w", filepath.Base(path), err)
	}
	if e.Key != key {
		return nil, fmt.Errorf("entry %s holds key %q", filepath.Base(path), e.Key)
	}
	return e.Tokens, nil
}

func (d *Disk) save(key string, tokens []string) error {
	data, err := json.Marshal(entry{
		Key:       key,
		Timestamp: time.Now(),
		Tokens:    tokens,
	})
	if err != nil {
		return err
	}
	if d.compress {
		data = encoder.EncodeAll(data, nil)
	}

	tmp, err := os.CreateTemp(d.dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), d.keyPath(key))
}

// keyPath converts a key to a filesystem path.
func (d *Disk) keyPath(key string) string {
	hash := blake3.Sum256([]byte(key))
	ext := plainExt
	if d.compress {
		ext = compressedExt
	}
	return filepath.Join(d.dir, hex.EncodeToString(hash[:])+ext)
}

// Clear removes every entry and leftover temp file, returning how many entries
// were removed. Other files in the directory are left alone.
func (d *Disk) Clear() (int, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || (!isEntryFile(name) && !isTempFile(name)) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if isEntryFile(name) {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// Stats describes the contents of a disk store.
type Stats struct {
	Entries   int           `json:"entries" toon:"entries"`
	TotalSize int64         `json:"total_size" toon:"total_size"`
	OldestAge time.Duration `json:"oldest_age" toon:"oldest_age"`
	NewestAge time.Duration `json:"newest_age" toon:"newest_age"`
}

// Stats returns statistics about the stored entries.
func (d *Disk) Stats() (*Stats, error) {
	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.WalkDir(d.dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !isEntryFile(de.Name()) {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}

// isEntryFile matches the names keyPath produces: a hex blake3 sum plus an
// entry extension.
func isEntryFile(name string) bool {
	stem, ok := strings.CutSuffix(name, compressedExt)
	if !ok {
		stem, ok = strings.CutSuffix(name, plainExt)
	}
	if !ok || len(stem) != hex.EncodedLen(32) {
		return false
	}
	_, err := hex.DecodeString(stem)
	return err == nil
}

func isTempFile(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
