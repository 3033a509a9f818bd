package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestTrackerDisabled(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Tokenizing", false)

	tr.Start(10)
	tr.Tick()
	tr.Finish()
	tr.Fail(errors.New("boom"))

	if buf.Len() != 0 {
		t.Errorf("disabled tracker wrote %q", buf.String())
	}
}

func TestTrackerTickBeforeStart(t *testing.T) {
	tr := NewTrackerTo(&bytes.Buffer{}, "Tokenizing", true)
	tr.Tick()
	tr.Finish()
}

func TestTrackerConcurrentTicks(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Tokenizing", true)
	tr.Start(100)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Tick()
		}()
	}
	wg.Wait()
	tr.Finish()
}

func TestTrackerFail(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Tokenizing", true)
	tr.Start(1)
	tr.Fail(errors.New("root vanished"))

	if !strings.Contains(buf.String(), "Tokenizing failed: root vanished") {
		t.Errorf("output = %q", buf.String())
	}
}
