package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTestError     = errors.New("test error")
	errNonRetryable  = errors.New("non-retryable error")
	errRetryable     = errors.New("retryable error")
)

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got: %d", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errTestError
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 2, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})

	if err == nil {
		t.Error("expected error after max attempts, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_Disabled(t *testing.T) {
	cfg := Config{Enabled: false}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt (no retry), got: %d", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		attempts++
		return errTestError
	})

	if err == nil {
		t.Error("expected error due to context cancellation, got nil")
	}
	if attempts < 1 {
		t.Errorf("expected at least 1 attempt before cancellation, got: %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0, NonRetryableErrors: []error{errNonRetryable}}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errNonRetryable
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt (non-retryable), got: %d", attempts)
	}
}

func TestRetry_RetryableErrorList(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0, RetryableErrors: []error{errRetryable}}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 2 {
			return errRetryable
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got: %d", attempts)
	}
}

func TestRetryWithResult_Success(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	result, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTestError
		}
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got: %s", result)
	}
}

func TestRetryWithResult_Failure(t *testing.T) {
	cfg := Config{Enabled: true, MaxAttempts: 2, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}

	result, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		return 0, errTestError
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if result != 0 {
		t.Errorf("expected zero value, got: %d", result)
	}
}

func TestRetryWithResult_Disabled(t *testing.T) {
	cfg := Config{Enabled: false}

	result, err := RetryWithResult(context.Background(), cfg, func() (bool, error) {
		return true, nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if !result {
		t.Error("expected true, got false")
	}
}

func TestCalculateDelay_ExponentialBackoff(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2.0}

	if d := calculateDelay(cfg, 0); d != 100*time.Millisecond {
		t.Errorf("expected 100ms, got: %v", d)
	}
	if d := calculateDelay(cfg, 1); d != 200*time.Millisecond {
		t.Errorf("expected 200ms, got: %v", d)
	}
	if d := calculateDelay(cfg, 2); d != 400*time.Millisecond {
		t.Errorf("expected 400ms, got: %v", d)
	}
}

func TestCalculateDelay_MaxDelayCap(t *testing.T) {
	cfg := Config{InitialDelay: 1 * time.Second, MaxDelay: 2 * time.Second, Multiplier: 2.0}

	if d := calculateDelay(cfg, 5); d > cfg.MaxDelay {
		t.Errorf("expected delay <= %v, got: %v", cfg.MaxDelay, d)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("expected Enabled to be true")
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts to be 3, got: %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("expected InitialDelay to be 100ms, got: %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("expected MaxDelay to be 5s, got: %v", cfg.MaxDelay)
	}
	if !cfg.Jitter {
		t.Error("expected Jitter to be true")
	}
}
