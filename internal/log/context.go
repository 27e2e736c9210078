// SPDX-License-Identifier: MIT

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	checkIDKey   ctxKey = "check_id"
)

// ContextWithRequestID stores the provided request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithCheckID stores the provided check-cycle ID in the context.
func ContextWithCheckID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, checkIDKey, id)
}

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// CheckIDFromContext extracts the check-cycle ID from context if present.
func CheckIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(checkIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger annotated with any IDs carried by the context.
func FromContext(ctx context.Context) zerolog.Logger {
	builder := logger().With()
	if id := RequestIDFromContext(ctx); id != "" {
		builder = builder.Str(FieldRequestID, id)
	}
	if id := CheckIDFromContext(ctx); id != "" {
		builder = builder.Str(FieldCheckID, id)
	}
	return builder.Logger()
}

// WithComponentFromContext combines FromContext with a component annotation.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	l := FromContext(ctx).With().Str(FieldComponent, component).Logger()
	return l
}
