package handler

import (
	"time"

	"permitpulse/internal/decision"
	id "permitpulse/pkg/domain"
)

// CheckResponse is the HTTP representation of an address check.
type CheckResponse struct {
	ID              id.CheckID          `json:"id"`
	OrganizationID  *id.OrganizationID  `json:"organization_id"`
	Address         string              `json:"address"`
	CityCode        id.CityCode         `json:"city_code"`
	ResultGrade     string              `json:"result_grade"`
	DecisionMode    string              `json:"decision_mode"`
	BlockerFlags    []string            `json:"blocker_flags"`
	RequiredActions []string            `json:"required_actions"`
	Evidence        []decision.Evidence `json:"evidence"`
	Confidence      float64             `json:"confidence"`
	CreatedAt       time.Time           `json:"created_at"`
	Provenance      decision.Provenance `json:"provenance"`
}

// FromCheck converts a domain AddressCheck to an HTTP response.
func FromCheck(c *decision.AddressCheck) *CheckResponse {
	return &CheckResponse{
		ID:              c.ID,
		OrganizationID:  c.OrganizationID,
		Address:         c.Address,
		CityCode:        c.CityCode,
		ResultGrade:     string(c.ResultGrade),
		DecisionMode:    string(c.DecisionMode),
		BlockerFlags:    nonNil(c.BlockerFlags),
		RequiredActions: nonNil(c.RequiredActions),
		Evidence:        c.Evidence,
		Confidence:      c.Confidence,
		CreatedAt:       c.CreatedAt,
		Provenance:      c.Provenance,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
