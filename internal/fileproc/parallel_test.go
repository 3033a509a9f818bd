package fileproc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func itoa(n int) string { return strconv.Itoa(n) }

func TestMapIndexed(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}

	results, errs := MapIndexed(context.Background(), items, 3, itoa, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	}, nil)

	if errs != nil {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(results) != len(items) {
		t.Fatalf("Expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if !r.OK || r.Value != items[i]*items[i] {
			t.Errorf("results[%d] = %+v, want %d", i, r, items[i]*items[i])
		}
	}
}

func TestMapIndexed_Empty(t *testing.T) {
	results, errs := MapIndexed(context.Background(), []int{}, 0, itoa, func(_ context.Context, n int) (int, error) {
		return n, nil
	}, nil)

	if results != nil {
		t.Errorf("Expected nil for empty input, got %v", results)
	}
	if errs != nil {
		t.Errorf("Expected nil errors for empty input, got %v", errs)
	}
}

func TestMapIndexed_WithErrors(t *testing.T) {
	items := []int{1, 2, 3, 4}
	boom := errors.New("boom")

	results, errs := MapIndexed(context.Background(), items, 2, itoa, func(_ context.Context, n int) (int, error) {
		if n%2 == 0 {
			return 0, boom
		}
		return n, nil
	}, nil)

	if !errs.HasErrors() {
		t.Fatal("Expected errors")
	}
	sorted := errs.Sorted()
	if len(sorted) != 2 || sorted[0].Path != "2" || sorted[1].Path != "4" {
		t.Errorf("Sorted() = %v, want paths [2 4]", sorted)
	}
	if !errors.Is(sorted[0], boom) {
		t.Error("ProcessingError should unwrap to the cause")
	}

	for i, want := range []bool{true, false, true, false} {
		if results[i].OK != want {
			t.Errorf("results[%d].OK = %v, want %v", i, results[i].OK, want)
		}
	}
}

func TestMapIndexed_Progress(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	var ticks atomic.Int32
	_, _ = MapIndexed(context.Background(), items, 4, itoa, func(_ context.Context, n int) (int, error) {
		if n%10 == 0 {
			return 0, fmt.Errorf("fail %d", n)
		}
		return n, nil
	}, func() { ticks.Add(1) })

	if int(ticks.Load()) != len(items) {
		t.Errorf("Progress ticks = %d, want %d (failures count too)", ticks.Load(), len(items))
	}
}

func TestMapIndexed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Int32
	results, errs := MapIndexed(ctx, []int{1, 2, 3}, 1, itoa, func(_ context.Context, n int) (int, error) {
		called.Add(1)
		return n, nil
	}, nil)

	okCount := 0
	for _, r := range results {
		if r.OK {
			okCount++
		}
	}
	errCount := 0
	if errs != nil {
		errCount = len(errs.Errors)
		for _, e := range errs.Errors {
			if !errors.Is(e, context.Canceled) {
				t.Errorf("unexpected error %v", e)
			}
		}
	}
	if okCount+errCount != 3 {
		t.Errorf("ok (%d) + errors (%d) should account for every item", okCount, errCount)
	}
	if int(called.Load()) != okCount {
		t.Errorf("fn called %d times, %d results ok", called.Load(), okCount)
	}
}

func TestWorkers(t *testing.T) {
	if Workers(3) != 3 {
		t.Errorf("Workers(3) = %d", Workers(3))
	}
	if Workers(0) < DefaultWorkerMultiplier {
		t.Errorf("Workers(0) = %d, want at least %d", Workers(0), DefaultWorkerMultiplier)
	}
}

func TestProcessingError(t *testing.T) {
	err := ProcessingError{Path: "/path/to/file.php", Err: fmt.Errorf("read failed")}
	expected := "/path/to/file.php: read failed"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestProcessingErrors(t *testing.T) {
	errs := &ProcessingErrors{}

	// Empty errors
	if errs.HasErrors() {
		t.Error("Empty ProcessingErrors should not have errors")
	}
	if errs.Error() != "no errors" {
		t.Errorf("Empty error message = %q, want 'no errors'", errs.Error())
	}

	// Single error
	errs.Add("/file1.php", fmt.Errorf("error1"))
	if !errs.HasErrors() {
		t.Error("ProcessingErrors with one error should have errors")
	}
	if errs.Error() != "/file1.php: error1" {
		t.Errorf("Single error message = %q", errs.Error())
	}

	// Multiple errors
	errs.Add("/file2.php", fmt.Errorf("error2"))
	if len(errs.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errs.Errors))
	}
	errMsg := errs.Error()
	if errMsg != "2 files failed to process (first: /file1.php: error1)" {
		t.Errorf("Multiple error message = %q", errMsg)
	}

	var nilErrs *ProcessingErrors
	if nilErrs.HasErrors() || nilErrs.Sorted() != nil {
		t.Error("nil ProcessingErrors should be empty")
	}
}

func TestProcessingErrors_ThreadSafe(t *testing.T) {
	errs := &ProcessingErrors{}
	var wg sync.WaitGroup

	// Add errors concurrently
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs.Add(fmt.Sprintf("/file%d.php", n), fmt.Errorf("error %d", n))
		}(i)
	}
	wg.Wait()

	if len(errs.Errors) != 100 {
		t.Errorf("Expected 100 errors, got %d", len(errs.Errors))
	}
}

func BenchmarkMapIndexed(b *testing.B) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MapIndexed(context.Background(), items, 0, itoa, func(_ context.Context, n int) (int, error) {
			return n + 1, nil
		}, nil)
	}
}
