package decision

import (
	"context"
	"time"

	id "permitpulse/pkg/domain"
)

// Store persists checks together with their traces.
type Store interface {
	// Save writes the check and its trace atomically.
	Save(ctx context.Context, check *AddressCheck, trace *DecisionTrace) error
	Get(ctx context.Context, checkID id.CheckID) (*AddressCheck, error)
	Trace(ctx context.Context, checkID id.CheckID) (*DecisionTrace, error)
	// CountSince counts the organization's checks created at or after since.
	CountSince(ctx context.Context, orgID id.OrganizationID, since time.Time) (int, error)
}
