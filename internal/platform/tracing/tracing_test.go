package tracing

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "sfucore" {
		t.Errorf("expected service name 'sfucore', got '%s'", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	ctx, span := StartSpan(ctx, "test.operation")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
	_ = ctx
}

func TestAddSpanAttributes(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test")
	defer span.End()

	AddSpanAttributes(ctx,
		attribute.String("test.key", "test.value"),
		attribute.Int("test.number", 42),
	)
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test")
	defer span.End()

	RecordError(ctx, &testError{message: "test error"})
}

func TestMeasureDuration(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test")
	defer span.End()

	start := time.Now()
	time.Sleep(time.Millisecond)
	MeasureDuration(ctx, start, "test.operation")
}

func TestTraceHTTPRequest(t *testing.T) {
	ctx := context.Background()
	_, span := TraceHTTPRequest(ctx, "GET", "/sessions")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceMediaEvent(t *testing.T) {
	ctx := context.Background()
	_, span := TraceMediaEvent(ctx, "join", "peer-123")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceWebRTC(t *testing.T) {
	ctx := context.Background()
	_, span := TraceWebRTC(ctx, "negotiate", "endpoint-1", "track-1")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceEngineOperation(t *testing.T) {
	ctx := context.Background()
	_, span := TraceEngineOperation(ctx, "subscribe", "session-1")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceRegistryPublish(t *testing.T) {
	ctx := context.Background()
	_, span := TraceRegistryPublish(ctx, "sfucore:registry")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
