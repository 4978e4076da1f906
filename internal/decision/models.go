package decision

import (
	"time"

	"permitpulse/internal/organization"
	id "permitpulse/pkg/domain"
)

// Grade is the compliance verdict for an address.
type Grade string

const (
	GradeGreen        Grade = "GREEN"
	GradeYellow       Grade = "YELLOW"
	GradeRed          Grade = "RED"
	GradeUndetermined Grade = "UNDETERMINED"
)

// Mode records whether the engine trusted its own verdict.
type Mode string

const (
	ModeAutoConfident    Mode = "AUTO_CONFIDENT"
	ModeAutoConservative Mode = "AUTO_CONSERVATIVE"
)

const (
	BlockerNoActiveSnapshot = "no_active_snapshot"
	ActionAwaitIngestion    = "Wait for next rule ingestion cycle."
)

// Evidence is one applicable clause as cited in a check.
type Evidence struct {
	ClauseID        string `json:"clause_id"`
	Category        string `json:"category"`
	RequirementText string `json:"requirement_text"`
	PenaltyText     string `json:"penalty_text"`
}

// Provenance identifies the ruleset a check was evaluated against.
type Provenance struct {
	SnapshotID *id.SnapshotID `json:"snapshot_id"`
	Checksum   *string        `json:"checksum"`
	SourceURLs []string       `json:"source_urls"`
}

// AddressCheck is an immutable compliance verdict.
type AddressCheck struct {
	ID              id.CheckID         `json:"id"`
	OrganizationID  *id.OrganizationID `json:"organization_id,omitempty"`
	Address         string             `json:"address"`
	CityCode        id.CityCode        `json:"city_code"`
	ResultGrade     Grade              `json:"result_grade"`
	DecisionMode    Mode               `json:"decision_mode"`
	BlockerFlags    []string           `json:"blocker_flags"`
	RequiredActions []string           `json:"required_actions"`
	Evidence        []Evidence         `json:"evidence"`
	SnapshotID      *id.SnapshotID     `json:"-"`
	Confidence      float64            `json:"confidence"`
	CreatedAt       time.Time          `json:"created_at"`
	Provenance      Provenance         `json:"provenance"`
}

// DecisionTrace records which clauses produced a check. EvidenceDigest is the
// sha256 of the canonical (RFC 8785) JSON of the check's evidence.
type DecisionTrace struct {
	AddressCheckID id.CheckID     `json:"address_check_id"`
	SnapshotID     *id.SnapshotID `json:"snapshot_id"`
	RuleIDs        []string       `json:"rule_ids"`
	Confidence     float64        `json:"confidence"`
	EvidenceDigest string         `json:"evidence_digest"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// CheckRequest is a validated address check. Organization is nil for
// unscoped requests, which are never quota limited.
type CheckRequest struct {
	Address      string
	CityCode     id.CityCode
	Context      map[string]any
	Organization *organization.Organization
}
