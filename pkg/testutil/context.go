package testutil

import (
	"net/http"

	id "permitpulse/pkg/domain"
	"permitpulse/pkg/requestcontext"
)

// WithOrganization scopes the request to an organization, as the slug
// resolution middleware would.
func WithOrganization(req *http.Request, orgID id.OrganizationID) *http.Request {
	return req.WithContext(requestcontext.WithOrganizationID(req.Context(), orgID))
}
