package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestExecutor returns an executor whose sleeps are recorded instead of
// actually sleeping.
func newTestExecutor(maxRetries int, initialDelay time.Duration, exponential bool, patterns []string) (*Executor, *[]time.Duration) {
	var slept []time.Duration
	e := &Executor{
		MaxRetries:         maxRetries,
		InitialDelay:       initialDelay,
		ExponentialBackoff: exponential,
		RetryablePatterns:  patterns,
		Sleep: func(_ context.Context, d time.Duration) {
			slept = append(slept, d)
		},
		Logf: func(string, ...interface{}) {},
	}
	return e, &slept
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	e, slept := newTestExecutor(3, 5*time.Second, false, nil)

	calls := 0
	err := e.Execute(context.Background(), "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("operation called %d times, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0", len(*slept))
	}
}

func TestExecute_RetryBound(t *testing.T) {
	// maxRetries=3 means exactly 4 attempts for an always-failing operation.
	e, _ := newTestExecutor(3, time.Second, false, nil)

	calls := 0
	wantErr := errors.New("transient failure")
	err := e.Execute(context.Background(), "op", func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v, want %v", err, wantErr)
	}
	if calls != 4 {
		t.Errorf("operation called %d times, want 4", calls)
	}
}

func TestExecute_RecoversAfterFailures(t *testing.T) {
	e, slept := newTestExecutor(3, 2*time.Second, false, nil)

	calls := 0
	err := e.Execute(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}
	if len(*slept) != 2 {
		t.Errorf("slept %d times, want 2", len(*slept))
	}
}

func TestExecute_ExponentialBackoffGrowth(t *testing.T) {
	e, slept := newTestExecutor(4, 5*time.Second, true, nil)

	err := e.Execute(context.Background(), "op", func() error {
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want failure")
	}

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(*slept), len(want))
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("delay[%d] = %s, want %s", i, (*slept)[i], d)
		}
	}
}

func TestExecute_BackoffCappedAtMaxDelay(t *testing.T) {
	e, slept := newTestExecutor(5, 100*time.Second, true, nil)

	_ = e.Execute(context.Background(), "op", func() error {
		return errors.New("always fails")
	})

	// 100, 200, then capped at 300 for the remaining retries.
	want := []time.Duration{100 * time.Second, 200 * time.Second, 300 * time.Second, 300 * time.Second, 300 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(*slept), len(want))
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("delay[%d] = %s, want %s", i, (*slept)[i], d)
		}
	}
}

func TestExecute_NonRetryablePatternFailsFast(t *testing.T) {
	e, slept := newTestExecutor(3, time.Second, false, []string{"timeout", "server is not operational"})

	calls := 0
	err := e.Execute(context.Background(), "op", func() error {
		calls++
		return errors.New("access denied")
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want failure")
	}
	if calls != 1 {
		t.Errorf("operation called %d times, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0", len(*slept))
	}
}

func TestExecute_RetryablePatternMatches(t *testing.T) {
	e, _ := newTestExecutor(2, time.Second, false, []string{"timeout"})

	calls := 0
	err := e.Execute(context.Background(), "op", func() error {
		calls++
		return errors.New("operation Timeout while contacting server")
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want failure")
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}
}

func TestExecute_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Executor{
		MaxRetries:   5,
		InitialDelay: time.Second,
		Sleep: func(_ context.Context, _ time.Duration) {
			cancel()
		},
		Logf: func(string, ...interface{}) {},
	}

	calls := 0
	err := e.Execute(ctx, "op", func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("operation called %d times, want 1", calls)
	}
}
