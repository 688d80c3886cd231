package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTestError = errors.New("test error")

func TestCircuitBreaker_ClosedState_Success(t *testing.T) {
	cb := New(DefaultConfig())

	err := cb.Execute(context.Background(), func() error { return nil })

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("expected state Closed, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_ClosedState_Failure(t *testing.T) {
	cb := New(DefaultConfig())

	err := cb.Execute(context.Background(), func() error { return errTestError })

	if err == nil {
		t.Error("expected error, got nil")
	}
	if stats := cb.GetStats(); stats.FailureCount != 1 {
		t.Errorf("expected failure count 1, got: %d", stats.FailureCount)
	}
}

func TestCircuitBreaker_OpenState_RejectsRequests(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 100 * time.Millisecond, MaxRequestsHalfOpen: 3})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected state Open, got: %v", cb.GetState())
	}

	if err := cb.Execute(ctx, func() error { return nil }); err == nil {
		t.Error("expected error (circuit open), got nil")
	}
}

func TestCircuitBreaker_HalfOpenState_TransitionToClosed(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 50 * time.Millisecond, MaxRequestsHalfOpen: 3})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}

	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	if cb.GetState() != StateClosed {
		t.Errorf("expected state Closed, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenState_FailureReopens(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 50 * time.Millisecond, MaxRequestsHalfOpen: 3})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}

	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return errTestError }); err == nil {
		t.Error("expected error, got nil")
	}
	if cb.GetState() != StateOpen {
		t.Errorf("expected state Open, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_ExecuteWithResult_Success(t *testing.T) {
	cb := New(DefaultConfig())

	result, err := cb.ExecuteWithResult(context.Background(), func() (interface{}, error) {
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got: %v", result)
	}
}

func TestCircuitBreaker_ExecuteWithResult_OpenState(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 100 * time.Millisecond, MaxRequestsHalfOpen: 3})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = cb.ExecuteWithResult(ctx, func() (interface{}, error) { return nil, errTestError })
	}

	result, err := cb.ExecuteWithResult(ctx, func() (interface{}, error) { return "test", nil })

	if err == nil {
		t.Error("expected error (circuit open), got nil")
	}
	if result != nil {
		t.Errorf("expected nil result, got: %v", result)
	}
}

func TestCircuitBreaker_OnStateChange_Callback(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 50 * time.Millisecond, MaxRequestsHalfOpen: 3})

	var mu sync.Mutex
	var toStates []State
	cb.OnStateChange(func(from, to State) {
		mu.Lock()
		defer mu.Unlock()
		toStates = append(toStates, to)
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}

	time.Sleep(60 * time.Millisecond)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return nil })
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	foundOpen := false
	for _, s := range toStates {
		if s == StateOpen {
			foundOpen = true
		}
	}
	if !foundOpen {
		t.Error("expected state change to Open")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 100 * time.Millisecond, MaxRequestsHalfOpen: 3})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected state Open, got: %v", cb.GetState())
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("expected state Closed after reset, got: %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.FailureCount != 0 {
		t.Errorf("expected failure count 0 after reset, got: %d", stats.FailureCount)
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := New(DefaultConfig())

	var wg sync.WaitGroup
	const goroutines, perGoroutine = 10, 10

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_ = cb.Execute(context.Background(), func() error { return nil })
			}
		}()
	}
	wg.Wait()

	if cb.GetState() != StateClosed {
		t.Errorf("expected state Closed after concurrent access, got: %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.SuccessCount != goroutines*perGoroutine {
		t.Errorf("expected %d successful operations, got: %d", goroutines*perGoroutine, stats.SuccessCount)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FailureThreshold != 5 {
		t.Errorf("expected FailureThreshold 5, got: %d", cfg.FailureThreshold)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got: %v", cfg.Timeout)
	}
}

func TestState_String(t *testing.T) {
	cases := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tc := range cases {
		if tc.state.String() != tc.expected {
			t.Errorf("expected %s, got: %s", tc.expected, tc.state.String())
		}
	}
}
