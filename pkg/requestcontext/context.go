// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Values are typically set by middleware but consumed by services. Keeping this package
// free of net/http lets services and the CLI share it.
//
// Usage in services (read values):
//
//	orgID := requestcontext.OrganizationID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "permitpulse/pkg/domain"
)

type (
	organizationIDKey struct{}
	requestIDKey      struct{}
	requestTimeKey    struct{}
	operatorKey       struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOrganizationID = organizationIDKey{}
	ContextKeyRequestID      = requestIDKey{}
	ContextKeyRequestTime    = requestTimeKey{}
	ContextKeyOperator       = operatorKey{}
)

// -----------------------------------------------------------------------------
// Organization
// -----------------------------------------------------------------------------

// OrganizationID returns the resolved organization, or the zero value when the
// request was anonymous.
func OrganizationID(ctx context.Context) id.OrganizationID {
	if orgID, ok := ctx.Value(ContextKeyOrganizationID).(id.OrganizationID); ok {
		return orgID
	}
	return id.OrganizationID{}
}

// WithOrganizationID injects a resolved organization into the context.
func WithOrganizationID(ctx context.Context, orgID id.OrganizationID) context.Context {
	return context.WithValue(ctx, ContextKeyOrganizationID, orgID)
}

// Operator returns the subject of an authenticated operator call, if any.
func Operator(ctx context.Context) string {
	if sub, ok := ctx.Value(ContextKeyOperator).(string); ok {
		return sub
	}
	return ""
}

// WithOperator marks the context as an authenticated operator call.
func WithOperator(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeyOperator, subject)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

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

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like the CLI and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Control-loop cycles that need one consistent "now" across a batch
//   - CLI commands
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
