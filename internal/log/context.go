// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	requestIDKey     ctxKey = FieldRequestID
	correlationIDKey ctxKey = FieldCorrelationID
	jobIDKey         ctxKey = FieldJobID
)

// carried lists the context IDs copied onto every contextual logger, in output order.
var carried = [...]ctxKey{requestIDKey, correlationIDKey, jobIDKey}

func withValue(ctx context.Context, key ctxKey, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, id)
}

func value(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// ContextWithRequestID tags ctx with the HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithCorrelationID tags ctx with the ID shared by an enqueue call and the run it starts.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, correlationIDKey, id)
}

// ContextWithJobID tags ctx with the queue job being handled.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string     { return value(ctx, requestIDKey) }
func CorrelationIDFromContext(ctx context.Context) string { return value(ctx, correlationIDKey) }
func JobIDFromContext(ctx context.Context) string         { return value(ctx, jobIDKey) }

// WithContext adds the IDs carried by ctx and its trace ID to logger. The
// logger is returned unchanged when ctx carries none of them.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	b := logger.With()
	n := 0
	for _, key := range carried {
		if v := value(ctx, key); v != "" {
			b = b.Str(string(key), v)
			n++
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		b = b.Str(FieldTraceID, sc.TraceID().String())
		n++
	}
	if n == 0 {
		return logger
	}
	return b.Logger()
}

// WithComponentFromContext is WithContext over WithComponent(component).
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
