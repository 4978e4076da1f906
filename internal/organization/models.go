// Package organization models the customer accounts that own address checks and
// receive alerts, and resolves the caller's organization from the request.
package organization

import (
	"regexp"
	"strings"
	"time"

	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
)

// Plan is a billing tier. Unknown plans are treated as starter.
type Plan string

const (
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanTeam    Plan = "team"
)

// Organization is a customer account.
type Organization struct {
	ID           id.OrganizationID `json:"id"`
	Name         string            `json:"name"`
	Slug         string            `json:"slug"`
	BillingEmail string            `json:"billing_email"`
	Plan         Plan              `json:"plan"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// MonthlyQuota returns the plan's monthly address check allowance from quotas,
// falling back to the starter allowance for unknown plans.
func (o *Organization) MonthlyQuota(quotas map[string]int) int {
	plan := strings.ToLower(strings.TrimSpace(string(o.Plan)))
	if quota, ok := quotas[plan]; ok {
		return quota
	}
	return quotas[string(PlanStarter)]
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// NormalizeSlug lowercases a slug and checks its shape.
func NormalizeSlug(raw string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if slug == "" {
		return "", dErrors.New(dErrors.CodeValidation, "slug is required")
	}
	if len(slug) > 50 || !slugPattern.MatchString(slug) {
		return "", dErrors.New(dErrors.CodeValidation, "slug must be lowercase letters, digits and single hyphens")
	}
	return slug, nil
}
