// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets the lifecycle services stay ignorant of the transport.
//
// Usage in services (read values):
//
//	holderID := requestcontext.HolderID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedDate)
//	ctx = requestcontext.WithHolderID(ctx, holderID)
package requestcontext

import (
	"context"
	"time"

	id "circulate/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	holderIDKey    struct{}
	holderNameKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyHolderID    = holderIDKey{}
	ContextKeyHolderName  = holderNameKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// HolderID retrieves the authenticated holder ID from the context.
// Returns zero if not set.
func HolderID(ctx context.Context) id.HolderID {
	if holderID, ok := ctx.Value(ContextKeyHolderID).(id.HolderID); ok {
		return holderID
	}
	return 0
}

// WithHolderID injects a holder ID into the context.
func WithHolderID(ctx context.Context, holderID id.HolderID) context.Context {
	return context.WithValue(ctx, ContextKeyHolderID, holderID)
}

// HolderName retrieves the authenticated holder's display name, if any.
func HolderName(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeyHolderName).(string); ok {
		return name
	}
	return ""
}

// WithHolderName injects the holder display name into the context.
func WithHolderName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyHolderName, name)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (CLI, tests that don't pin the clock).
// All date comparisons in one request observe the same "today".
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the request-time
// middleware and by tests that pin the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
