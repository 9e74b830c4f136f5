package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "furarchiver/pkg/errors"
	"furarchiver/pkg/logger"
)

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: 0},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewTestLogger(),
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeNetwork, "connection reset")
		}
		return nil
	}, testConfig(5))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errs.New(errs.ErrorTypeNotFound, "gone")
	err := Do(func() error {
		calls++
		return permanent
	}, testConfig(5))

	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	onRetries := 0
	cfg := testConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		onRetries++
	}

	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, "still failing")
	}, cfg)

	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if onRetries != 3 {
		t.Errorf("expected OnRetry called 3 times, got %d", onRetries)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig(5)
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, "flaky")
	}, cfg)

	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() (string, error) {
		calls++
		if calls < 2 {
			return "", errs.New(errs.ErrorTypeNetwork, "flaky")
		}
		return "value", nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "value" {
		t.Errorf("expected result value, got %q", result)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errs.New(errs.ErrorTypeNetwork, ""), true},
		{"not found", errs.New(errs.ErrorTypeNotFound, ""), false},
		{"site down", errs.New(errs.ErrorTypeSiteDown, ""), false},
		{"validation", errs.New(errs.ErrorTypeValidation, ""), false},
		{"filesystem", errs.New(errs.ErrorTypeFilesystem, ""), false},
		{"cancelled", context.Canceled, false},
		{"wrapped typed error", errors.Join(errors.New("wrapper"), errs.New(errs.ErrorTypeNotFound, "")), false},
		{"plain error", errors.New("something"), true},
	}

	for _, tt := range tests {
		if got := DefaultRetryIf(tt.err); got != tt.want {
			t.Errorf("%s: DefaultRetryIf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	lb := &LinearBackoff{Step: 30 * time.Second}

	for attempt, want := range map[int]time.Duration{
		0: 0,
		1: 30 * time.Second,
		2: 60 * time.Second,
		3: 90 * time.Second,
	} {
		if got := lb.NextDelay(attempt); got != want {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, want)
		}
	}

	capped := &LinearBackoff{Step: 30 * time.Second, MaxDelay: 45 * time.Second}
	if got := capped.NextDelay(5); got != 45*time.Second {
		t.Errorf("expected capped delay 45s, got %v", got)
	}
}

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: time.Second}
	if got := cb.NextDelay(1); got != time.Second {
		t.Errorf("got %v, want 1s", got)
	}
	if got := cb.NextDelay(7); got != time.Second {
		t.Errorf("got %v, want 1s", got)
	}

	zero := &ConstantBackoff{}
	if got := zero.NextDelay(3); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestJitteredBackoffBounds(t *testing.T) {
	jb := &JitteredBackoff{
		Inner:        &ConstantBackoff{Delay: time.Second},
		JitterFactor: 0.5,
	}

	for i := 0; i < 50; i++ {
		delay := jb.NextDelay(1)
		if delay < 500*time.Millisecond || delay > 1500*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", delay)
		}
	}
}

func TestWaitReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Wait(ctx, time.Hour)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait did not return promptly on cancel")
	}
}
