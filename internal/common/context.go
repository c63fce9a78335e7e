package common

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyBillID    contextKey = "bill_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithBillID tags the context with the bill being extracted.
func WithBillID(ctx context.Context, billID uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyBillID, billID)
}

// BillIDFromContext returns the bill ID stored by WithBillID, if any.
func BillIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ContextKeyBillID).(uuid.UUID)
	return id, ok
}

// LogAttrs returns the IDs carried by ctx as slog key/value pairs.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id, ok := BillIDFromContext(ctx); ok {
		attrs = append(attrs, "bill_id", id)
	}
	return attrs
}
