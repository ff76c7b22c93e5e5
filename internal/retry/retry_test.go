package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var fast = Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

type statusErr struct{ retryable bool }

func (e statusErr) Error() string   { return fmt.Sprintf("status retryable=%v", e.retryable) }
func (e statusErr) Retryable() bool { return e.retryable }

func TestDo_SuccessFirstAttempt(t *testing.T) {
	result, attempts, err := Do(context.Background(), fast, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %q", result)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, attempts, err := Do(context.Background(), fast, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("fail-%d", calls)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 || attempts != 3 {
		t.Errorf("got result=%d attempts=%d, want 42/3", result, attempts)
	}
}

func TestDo_AllFail(t *testing.T) {
	calls := 0
	cfg := fast
	cfg.MaxRetries = 2
	_, attempts, err := Do(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		return "", errors.New("always-fail")
	})
	if err == nil || err.Error() != "always-fail" {
		t.Fatalf("expected always-fail, got %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Errorf("expected 3 calls/attempts, got %d/%d", calls, attempts)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	_, attempts, err := Do(context.Background(), fast, func(context.Context) (string, error) {
		calls++
		return "", Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestDo_PermanentSurvivesWrapping(t *testing.T) {
	sentinel := errors.New("hard failure")
	_, _, err := Do(context.Background(), fast, func(context.Context) (string, error) {
		return "", Permanent(sentinel)
	})
	wrapped := fmt.Errorf("compose jack: %w", err)
	if IsRetryable(wrapped) {
		t.Error("an error that ended one retry loop must not restart an outer one")
	}
	if !errors.Is(wrapped, sentinel) {
		t.Errorf("sentinel lost: %v", wrapped)
	}
	if wrapped.Error() != "compose jack: hard failure" {
		t.Errorf("message = %q", wrapped.Error())
	}
}

func TestDo_RetryableInterface(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"auth failure", statusErr{retryable: false}, 1},
		{"rate limited", statusErr{retryable: true}, 4},
		{"wrapped auth failure", fmt.Errorf("openai: %w", statusErr{retryable: false}), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, _, err := Do(context.Background(), fast, func(context.Context) (string, error) {
				calls++
				return "", tt.err
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, _, err := Do(ctx, cfg, func(context.Context) (string, error) {
		calls++
		return "", errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	calls := 0
	_, _, err := Do(context.Background(), Config{}, func(context.Context) (string, error) {
		calls++
		return "", errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call with 0 retries, got %d", calls)
	}
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	d0 := backoffWithJitter(base, max, 0)
	if d0 < 75*time.Millisecond || d0 > 125*time.Millisecond {
		t.Errorf("attempt 0: expected ~100ms, got %v", d0)
	}
	d2 := backoffWithJitter(base, max, 2)
	if d2 < 300*time.Millisecond || d2 > 500*time.Millisecond {
		t.Errorf("attempt 2: expected ~400ms, got %v", d2)
	}
}

func TestBackoffWithJitter_CapsAtMax(t *testing.T) {
	d := backoffWithJitter(100*time.Millisecond, 200*time.Millisecond, 10)
	if d < 150*time.Millisecond || d > 250*time.Millisecond {
		t.Errorf("expected capped at ~200ms, got %v", d)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("context.Canceled should not be retryable")
	}
	if !IsRetryable(errors.New("connection reset")) {
		t.Error("plain errors should be retryable")
	}
}
