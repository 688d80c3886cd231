// Package tracing provides OpenTelemetry span helpers for the engine host
// process's boundary operations: admin HTTP requests, Media Event
// transport traffic, the reference data-plane's WebRTC setup, and the
// Redis remote observer. Of these, only the admin HTTP middleware and the
// Redis remote observer start spans. The engine actor's mailbox loop itself is not
// instrumented — adding span creation to the hot path of every control
// message would add per-message allocation the ordering guarantees don't
// need.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider wraps an OpenTelemetry tracer provider.
type TracerProvider struct {
	tp *tracesdk.TracerProvider
}

// Config contains tracing configuration.
type Config struct {
	Enabled     bool
	ServiceName string
	JaegerURL   string
	Environment string
	SampleRate  float64
}

// DefaultConfig returns default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "sfucore",
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		SampleRate:  1.0,
	}
}

// Init initializes tracing. With Enabled false it returns a no-op provider.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.TraceIDRatioBased(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// Shutdown shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp != nil {
		return tp.tp.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a new span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracer := otel.Tracer("sfucore")
	return tracer.Start(ctx, name, opts...)
}

// SpanFromContext returns the span carried by ctx.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanAttributes adds attributes to the span carried by ctx.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError records an error on the span carried by ctx.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanStatus sets the status of the span carried by ctx.
func SetSpanStatus(ctx context.Context, code codes.Code, description string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetStatus(code, description)
	}
}

// Common span attribute keys.
var (
	SessionIDKey  = attribute.Key("session.id")
	PeerIDKey     = attribute.Key("peer.id")
	EndpointIDKey = attribute.Key("endpoint.id")
	TrackIDKey    = attribute.Key("track.id")
	BitrateKey    = attribute.Key("bitrate")
	LatencyKey    = attribute.Key("latency")
	PacketLossKey = attribute.Key("packet_loss")
	ErrorKey      = attribute.Key("error")
	DurationKey   = attribute.Key("duration")
)

// TraceHTTPRequest traces an admin HTTP request.
func TraceHTTPRequest(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("http.%s", method),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(path),
		),
	)
}

// TraceMediaEvent traces a single inbound or outbound Media Event.
func TraceMediaEvent(ctx context.Context, eventType string, peerID string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("media_event.%s", eventType),
		trace.WithAttributes(
			attribute.String("media_event.type", eventType),
			PeerIDKey.String(peerID),
		),
	)
}

// TraceWebRTC traces a reference data-plane WebRTC operation.
func TraceWebRTC(ctx context.Context, operation string, endpointID, trackID string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("webrtc.%s", operation),
		trace.WithAttributes(
			attribute.String("webrtc.operation", operation),
			EndpointIDKey.String(endpointID),
			TrackIDKey.String(trackID),
		),
	)
}

// TraceEngineOperation traces an engine control-plane operation against a
// session (admission, endpoint lifecycle, subscription resolution, routing
// graph edits).
func TraceEngineOperation(ctx context.Context, operation string, sessionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("engine.%s", operation),
		trace.WithAttributes(
			attribute.String("engine.operation", operation),
			SessionIDKey.String(sessionID),
		),
	)
}

// TraceRegistryPublish traces a Redis remote observer publish.
func TraceRegistryPublish(ctx context.Context, channel string) (context.Context, trace.Span) {
	return StartSpan(ctx, "registry.publish",
		trace.WithAttributes(
			attribute.String("registry.channel", channel),
		),
	)
}

// MeasureDuration records the elapsed time since start as a span attribute.
func MeasureDuration(ctx context.Context, start time.Time, operation string) {
	duration := time.Since(start)
	AddSpanAttributes(ctx,
		attribute.String("operation", operation),
		DurationKey.Int64(duration.Milliseconds()),
	)
}
