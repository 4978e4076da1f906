package decision

import (
	"permitpulse/internal/rules"
)

// Engine evaluates a ruleset snapshot against an address context. It performs
// no I/O, so the same inputs always produce the same outcome.
type Engine struct {
	threshold float64
}

func NewEngine(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

// Evaluate walks the snapshot's clauses in order. A nil snapshot yields the
// no-active-snapshot outcome.
func (e *Engine) Evaluate(snapshot *rules.Snapshot, facts rules.Facts) Outcome {
	if snapshot == nil {
		return NoSnapshotOutcome()
	}

	out := Outcome{
		Blockers: []string{},
		Actions:  []string{},
		Evidence: []Evidence{},
		RuleIDs:  []string{},
	}
	confidenceSum := 0.0
	for _, clause := range snapshot.Clauses {
		if !clause.Condition.Eval(facts) {
			continue
		}
		out.RuleIDs = append(out.RuleIDs, clause.ClauseID)
		out.Evidence = append(out.Evidence, Evidence{
			ClauseID:        clause.ClauseID,
			Category:        string(clause.Category),
			RequirementText: clause.RequirementText,
			PenaltyText:     clause.PenaltyText,
		})
		confidenceSum += clause.Confidence

		switch {
		case clause.Category.IsBlocking():
			out.Blockers = append(out.Blockers, clause.RequirementText)
		case clause.Category.IsActionable():
			out.Actions = append(out.Actions, clause.RequirementText)
		}
	}

	if n := len(out.RuleIDs); n > 0 {
		out.Confidence = confidenceSum / float64(n)
	} else {
		out.Confidence = snapshot.ValidationScore
	}

	out.Grade, out.Mode = ApplyConservatism(Classify(out.Blockers, out.Actions), snapshot, out.Confidence, e.threshold)
	return out
}
