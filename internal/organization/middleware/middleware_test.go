package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"permitpulse/internal/organization"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/requestcontext"
)

type stubResolver struct {
	orgs map[string]*organization.Organization
	err  error
}

func (s stubResolver) Resolve(_ context.Context, slug string) (*organization.Organization, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.orgs[slug], nil
}

func TestResolveOrganization(t *testing.T) {
	acme := &organization.Organization{ID: id.NewOrganizationID(), Slug: "acme"}
	resolver := stubResolver{orgs: map[string]*organization.Organization{"acme": acme}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen id.OrganizationID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.OrganizationID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		target string
		want   id.OrganizationID
	}{
		{name: "header", header: "acme", target: "/alerts", want: acme.ID},
		{name: "query fallback", target: "/alerts?org=acme", want: acme.ID},
		{name: "header wins over query", header: "acme", target: "/alerts?org=other", want: acme.ID},
		{name: "unknown slug is unscoped", header: "nobody", target: "/alerts"},
		{name: "no slug", target: "/alerts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = id.OrganizationID{}
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set(HeaderOrgSlug, tc.header)
			}
			rec := httptest.NewRecorder()
			ResolveOrganization(resolver, logger)(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tc.want, seen)
		})
	}

	t.Run("resolver failure is a 500", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
		req.Header.Set(HeaderOrgSlug, "acme")
		rec := httptest.NewRecorder()
		ResolveOrganization(stubResolver{err: errors.New("db down")}, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
