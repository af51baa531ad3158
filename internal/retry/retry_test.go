package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordSleeps(dst *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*dst = append(*dst, d)
		return nil
	}
}

func TestDoStopsAfterAttemptBound(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	errTransport := errors.New("connection refused")

	err := Do(context.Background(), Policy{
		Attempts: 3,
		Wait:     time.Second,
		Sleep:    recordSleeps(&sleeps),
	}, func(context.Context, int) error {
		calls++
		return errTransport
	})

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) || ex.Attempts != 3 {
		t.Fatalf("err = %v, want ExhaustedError{3}", err)
	}
	if !errors.Is(err, errTransport) {
		t.Fatalf("err should wrap last failure: %v", err)
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2 waits between 3 attempts", sleeps)
	}
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5, Sleep: recordSleeps(new([]time.Duration))}, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDoPermanentStopsEarly(t *testing.T) {
	calls := 0
	base := errors.New("unknown label")
	err := Do(context.Background(), Policy{Attempts: 5, Sleep: recordSleeps(new([]time.Duration))}, func(context.Context, int) error {
		calls++
		return Permanent(base)
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, base) || !IsPermanent(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{}, func(context.Context, int) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 3, Wait: time.Hour}, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBackoffLinear(t *testing.T) {
	p := Policy{Wait: 5 * time.Second, Step: 5 * time.Second, MaxWait: 12 * time.Second}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 12 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
	var sleeps []time.Duration
	p.Attempts = 3
	p.Sleep = recordSleeps(&sleeps)
	_ = Do(context.Background(), p, func(context.Context, int) error { return errors.New("x") })
	if len(sleeps) != 2 || sleeps[0] != 5*time.Second || sleeps[1] != 10*time.Second {
		t.Fatalf("sleeps = %v", sleeps)
	}
}
