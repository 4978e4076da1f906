package extractor

import (
	"strings"

	"permitpulse/internal/rules"
)

const (
	ClauseRegistrationRequired = "registration-required"
	ClausePrimaryResidence     = "primary-residence"
	ClauseTaxRegistration      = "tax-registration"
	ClauseFallbackManualReview = "fallback-manual-review-block"
)

// FallbackConfidence is assigned to the manual-review clause emitted when no
// trigger phrase matches.
const FallbackConfidence = 0.5

// RuleBased scans normalized text for trigger phrases and emits canned clauses.
// It never returns an empty slice.
func RuleBased(normalized string) []rules.ClauseDraft {
	lowered := strings.ToLower(normalized)
	var clauses []rules.ClauseDraft

	if strings.Contains(lowered, "register") {
		// "registration" contains "register"
		clauses = append(clauses, rules.ClauseDraft{
			ClauseID:        ClauseRegistrationRequired,
			Category:        string(rules.CategoryRequirement),
			Condition:       rules.NewExpression(rules.Always{}),
			RequirementText: "Host registration is required before listing.",
			PenaltyText:     "Listings may be removed if unregistered.",
			Confidence:      rules.Float(0.85),
		})
	}
	if strings.Contains(lowered, "primary residence") {
		clauses = append(clauses, rules.ClauseDraft{
			ClauseID: ClausePrimaryResidence,
			Category: string(rules.CategoryProhibition),
			Condition: rules.NewExpression(rules.Not{Term: rules.Predicate{
				Field: "property.is_primary_residence",
				Op:    rules.OpEq,
				Value: true,
			}}),
			RequirementText: "Only primary residences may be rented short-term.",
			PenaltyText:     "Non-primary homes are prohibited for STR operations.",
			Confidence:      rules.Float(0.82),
		})
	}
	if strings.Contains(lowered, "tax") {
		clauses = append(clauses, rules.ClauseDraft{
			ClauseID:        ClauseTaxRegistration,
			Category:        string(rules.CategoryTax),
			Condition:       rules.NewExpression(rules.Always{}),
			RequirementText: "Transient occupancy tax registration is required.",
			PenaltyText:     "Financial penalties may apply for unpaid taxes.",
			Confidence:      rules.Float(0.78),
		})
	}

	if len(clauses) == 0 {
		clauses = append(clauses, rules.ClauseDraft{
			ClauseID:        ClauseFallbackManualReview,
			Category:        string(rules.CategoryRequirement),
			Condition:       rules.NewExpression(rules.Always{}),
			RequirementText: "Rules changed but parser confidence is low. Treat as restricted until next cycle.",
			PenaltyText:     "Potential enforcement risk if operated without confirmation.",
			Confidence:      rules.Float(FallbackConfidence),
		})
	}
	return clauses
}
