// Package progress reports tokenization progress on stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar whose total is known only once files are
// discovered. A disabled Tracker does nothing, so callers never branch on it.
type Tracker struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	enabled bool
	bar     *progressbar.ProgressBar
}

// NewTracker creates a tracker writing to stderr.
func NewTracker(label string, enabled bool) *Tracker {
	return NewTrackerTo(os.Stderr, label, enabled)
}

// NewTrackerTo creates a tracker writing to w.
func NewTrackerTo(w io.Writer, label string, enabled bool) *Tracker {
	return &Tracker{w: w, label: label, enabled: enabled}
}

// Start sets the total and shows the bar.
func (t *Tracker) Start(total int) {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(t.label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	if bar := t.current(); bar != nil {
		_ = bar.Add(1)
	}
}

// Finish clears the bar.
func (t *Tracker) Finish() {
	if bar := t.current(); bar != nil {
		_ = bar.Finish()
		_ = bar.Clear()
	}
}

// Fail clears the bar and prints the error.
func (t *Tracker) Fail(err error) {
	t.Finish()
	if t.enabled {
		fmt.Fprintf(t.w, "  %s failed: %v\n", t.label, err)
	}
}

func (t *Tracker) current() *progressbar.ProgressBar {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bar
}
