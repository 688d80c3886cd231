// Package logging wraps zap with the context-field extraction the engine
// actor and its transports rely on: every log line emitted while handling a
// control message carries the session id and, where known, the peer and
// trace id that triggered it.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	sessionIDKey ctxKey = "session_id"
	peerIDKey    ctxKey = "peer_id"
	traceIDKey   ctxKey = "trace_id"
)

// WithSessionID returns a context carrying the session id for log extraction.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithPeerID returns a context carrying the peer id for log extraction.
func WithPeerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, peerIDKey, id)
}

// WithTraceID returns a context carrying the trace id for log extraction.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// Logger wraps *zap.Logger and *zap.SugaredLogger with context extraction.
type Logger struct {
	base *zap.Logger
}

// New builds a production zap logger at the given level ("debug", "info",
// "warn", "error"), falling back to info on an unrecognized level.
func New(level string) *Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &Logger{base: l}
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{base: zap.NewNop()}
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}

// WithContext extracts known fields from ctx and returns a SugaredLogger
// pre-populated with them.
func (l *Logger) WithContext(ctx context.Context) *zap.SugaredLogger {
	sugar := l.base.Sugar()
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		sugar = sugar.With("session_id", v)
	}
	if v, ok := ctx.Value(peerIDKey).(string); ok && v != "" {
		sugar = sugar.With("peer_id", v)
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok && v != "" {
		sugar = sugar.With("trace_id", v)
	}
	return sugar
}

func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.base.Sugar()
}

func (l *Logger) WithFields(fields ...interface{}) *zap.SugaredLogger {
	return l.base.Sugar().With(fields...)
}
