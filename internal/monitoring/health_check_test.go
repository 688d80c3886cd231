package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHealthChecker_CheckAll_AllHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("redis", func(ctx context.Context) (bool, error) { return true, nil }, time.Second, time.Second)

	status := h.CheckAll(context.Background())
	if status.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", status.Status)
	}
	if status.Checks["redis"] != "healthy" {
		t.Fatalf("expected redis check healthy, got %q", status.Checks["redis"])
	}
}

func TestHealthChecker_CheckAll_OneUnhealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("redis", func(ctx context.Context) (bool, error) { return true, nil }, time.Second, time.Second)
	h.AddCheck("stun", func(ctx context.Context) (bool, error) { return false, errors.New("unreachable") }, time.Second, time.Second)

	status := h.CheckAll(context.Background())
	if status.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %s", status.Status)
	}
	if status.Checks["stun"] != "unreachable" {
		t.Fatalf("expected stun failure reason, got %q", status.Checks["stun"])
	}
}
