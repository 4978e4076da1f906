// Package rules defines the regulatory ruleset model: versioned city snapshots, their
// clauses, and the condition trees that decide when a clause applies.
package rules

import (
	"strings"
	"time"

	id "permitpulse/pkg/domain"
)

// SnapshotStatus tracks whether a snapshot's content is still trusted.
type SnapshotStatus string

const (
	SnapshotStatusActive SnapshotStatus = "ACTIVE"
	SnapshotStatusStale  SnapshotStatus = "STALE"
	SnapshotStatusFailed SnapshotStatus = "FAILED"
)

// Category classifies what a clause asks of a host.
type Category string

const (
	CategoryRequirement  Category = "requirement"
	CategoryRegistration Category = "registration"
	CategoryProhibition  Category = "prohibition"
	CategoryTax          Category = "tax"
	CategoryBlocker      Category = "blocker"
	CategoryOther        Category = "other"
)

// NormalizeCategory lowercases and trims a free-form category.
func NormalizeCategory(s string) Category {
	return Category(strings.ToLower(strings.TrimSpace(s)))
}

// IsBlocking reports categories that make an address non-compliant.
func (c Category) IsBlocking() bool {
	switch NormalizeCategory(string(c)) {
	case CategoryProhibition, CategoryBlocker:
		return true
	}
	return false
}

// IsActionable reports categories that produce a required host action.
func (c Category) IsActionable() bool {
	switch NormalizeCategory(string(c)) {
	case CategoryRequirement, CategoryRegistration, CategoryTax:
		return true
	}
	return false
}

// Clause is one normalized regulatory rule owned by a snapshot.
type Clause struct {
	ClauseID        string         `json:"clause_id"`
	Category        Category       `json:"category"`
	Condition       Expression     `json:"condition_expr"`
	RequirementText string         `json:"requirement_text"`
	PenaltyText     string         `json:"penalty_text"`
	Confidence      float64        `json:"confidence"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ParsedPayload records how a snapshot was produced.
type ParsedPayload struct {
	ParserTraces []string `json:"parser_traces"`
	ClauseCount  int      `json:"clause_count"`
}

// Snapshot is a city's ruleset at one version. Versions per city only grow and
// at most one snapshot per city is active.
type Snapshot struct {
	ID              id.SnapshotID  `json:"id"`
	CityCode        id.CityCode    `json:"city_code"`
	Version         int            `json:"version"`
	Checksum        string         `json:"checksum"`
	Status          SnapshotStatus `json:"status"`
	ValidationScore float64        `json:"validation_score"`
	SourceURLs      []string       `json:"source_urls"`
	ParsedPayload   ParsedPayload  `json:"parsed_payload"`
	EffectiveDate   time.Time      `json:"effective_date"`
	PublishedAt     time.Time      `json:"published_at"`
	IsActive        bool           `json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Clauses         []Clause       `json:"clauses"`
}

// IsTrusted reports whether decisions may be confident against this snapshot.
func (s *Snapshot) IsTrusted() bool {
	return s != nil && s.Status == SnapshotStatusActive
}

// RawDocument is the fetched source text for a city.
type RawDocument struct {
	CityCode  id.CityCode
	SourceURL string
	Content   string
	FetchedAt time.Time
}

// ClauseDraft is an extracted clause before validation. Empty strings and a nil
// Confidence mean the field was absent from the extraction output.
type ClauseDraft struct {
	ClauseID        string
	Category        string
	Condition       Expression
	RequirementText string
	PenaltyText     string
	Confidence      *float64
}

// ConfidenceOrZero returns the draft confidence, treating absence as zero.
func (d ClauseDraft) ConfidenceOrZero() float64 {
	if d.Confidence == nil {
		return 0
	}
	return *d.Confidence
}

// ToClause converts a validated draft into a persisted clause.
func (d ClauseDraft) ToClause() Clause {
	return Clause{
		ClauseID:        d.ClauseID,
		Category:        NormalizeCategory(d.Category),
		Condition:       d.Condition,
		RequirementText: d.RequirementText,
		PenaltyText:     d.PenaltyText,
		Confidence:      d.ConfidenceOrZero(),
		Metadata:        map[string]any{},
	}
}

// Draft is the extractor output for one document.
type Draft struct {
	CityCode        id.CityCode
	Checksum        string
	ValidationScore float64
	Clauses         []ClauseDraft
	SourceURLs      []string
	ParserTraces    []string
}

// Float returns a pointer to f, for building drafts.
func Float(f float64) *float64 {
	return &f
}
