// Package alerts notifies organizations about regulatory changes in their cities.
package alerts

import (
	"time"

	id "permitpulse/pkg/domain"
)

const (
	ChangeTypeRuleUpdate = "rule_update"
	SeverityMedium       = "medium"
	StatusNew            = "new"
)

// DefaultListLimit caps alert listings.
const DefaultListLimit = 100

// Alert is a per-organization notice about a city rules change.
type Alert struct {
	ID                 id.AlertID        `json:"id"`
	OrganizationID     id.OrganizationID `json:"organization_id"`
	CityCode           id.CityCode       `json:"city_code"`
	ChangeType         string            `json:"change_type"`
	ImpactedListingIDs []string          `json:"impacted_listing_ids"`
	Severity           string            `json:"severity"`
	Message            string            `json:"message"`
	Status             string            `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
}
