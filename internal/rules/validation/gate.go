// Package validation decides whether a freshly extracted draft is safe to publish.
package validation

import (
	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
)

const (
	ReasonNoClauses          = "no_clauses"
	ReasonDiffSanityFailed   = "diff_sanity_failed"
	ReasonLowValidationScore = "low_validation_score"
	reasonMissingPrefix      = "missing:"
)

// Config holds the gate thresholds.
type Config struct {
	// MaxGrowthRatio rejects drafts with more than this multiple of the previous clause count.
	MaxGrowthRatio float64 `yaml:"max_growth_ratio"`
	// MinShrinkRatio rejects drafts with less than this fraction of the previous clause count.
	MinShrinkRatio float64 `yaml:"min_shrink_ratio"`
	// ScoreFloor rejects drafts scoring strictly below it.
	ScoreFloor float64 `yaml:"score_floor"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MaxGrowthRatio: 3.0,
		MinShrinkRatio: 0.33,
		ScoreFloor:     0.5,
	}
}

// Previous describes the snapshot a draft would replace.
type Previous struct {
	SnapshotID  id.SnapshotID
	ClauseCount int
}

// Result is the gate verdict. Reasons is empty iff Valid.
type Result struct {
	Valid           bool     `json:"is_valid"`
	ValidationScore float64  `json:"validation_score"`
	Reasons         []string `json:"reasons"`
}

// Gate is a pure function of its inputs.
type Gate struct {
	cfg Config
}

func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate checks the draft against the previous snapshot (nil when the city has none).
// Reasons are reported in a fixed order: empty draft, missing fields per clause,
// clause-count drift, low score.
func (g *Gate) Evaluate(city id.CityCode, draft *rules.Draft, previous *Previous) Result {
	reasons := []string{}

	if len(draft.Clauses) == 0 {
		reasons = append(reasons, ReasonNoClauses)
	}

	for _, c := range draft.Clauses {
		reasons = append(reasons, missingFields(c)...)
	}

	if previous != nil && previous.ClauseCount > 0 {
		ratio := float64(len(draft.Clauses)) / float64(previous.ClauseCount)
		if ratio > g.cfg.MaxGrowthRatio || ratio < g.cfg.MinShrinkRatio {
			reasons = append(reasons, ReasonDiffSanityFailed)
		}
	}

	if draft.ValidationScore < g.cfg.ScoreFloor {
		reasons = append(reasons, ReasonLowValidationScore)
	}

	return Result{
		Valid:           len(reasons) == 0,
		ValidationScore: draft.ValidationScore,
		Reasons:         reasons,
	}
}

func missingFields(c rules.ClauseDraft) []string {
	var missing []string
	if c.ClauseID == "" {
		missing = append(missing, reasonMissingPrefix+"clause_id")
	}
	if c.Category == "" {
		missing = append(missing, reasonMissingPrefix+"category")
	}
	if c.RequirementText == "" {
		missing = append(missing, reasonMissingPrefix+"requirement_text")
	}
	if c.Confidence == nil {
		missing = append(missing, reasonMissingPrefix+"confidence")
	}
	return missing
}
