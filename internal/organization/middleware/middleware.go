// Package middleware attaches the caller's organization to the request context.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"permitpulse/internal/organization"
	"permitpulse/pkg/platform/httputil"
	"permitpulse/pkg/requestcontext"
)

// HeaderOrgSlug carries the organization slug; the "org" query parameter is the fallback.
const HeaderOrgSlug = "X-Org-Slug"

// Resolver looks up an organization by slug, returning nil for unknown slugs.
type Resolver interface {
	Resolve(ctx context.Context, slug string) (*organization.Organization, error)
}

// SlugFromRequest returns the header slug, or the ?org= value when the header is absent.
func SlugFromRequest(r *http.Request) string {
	if slug := r.Header.Get(HeaderOrgSlug); slug != "" {
		return slug
	}
	return r.URL.Query().Get("org")
}

// ResolveOrganization stores the resolved organization ID in the request context.
// Requests without a known slug proceed unscoped.
func ResolveOrganization(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := SlugFromRequest(r)
			if slug == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			org, err := resolver.Resolve(ctx, slug)
			if err != nil {
				logger.ErrorContext(ctx, "organization resolution failed",
					"request_id", requestcontext.RequestID(ctx),
					"slug", slug,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			if org != nil {
				ctx = requestcontext.WithOrganizationID(ctx, org.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
