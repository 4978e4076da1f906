package decision

import "permitpulse/internal/rules"

// Outcome is the pure result of evaluating a snapshot for one address.
type Outcome struct {
	Grade      Grade
	Mode       Mode
	Blockers   []string
	Actions    []string
	Evidence   []Evidence
	RuleIDs    []string
	Confidence float64
}

// NoSnapshotOutcome is returned when the city has no active ruleset.
func NoSnapshotOutcome() Outcome {
	return Outcome{
		Grade:      GradeUndetermined,
		Mode:       ModeAutoConservative,
		Blockers:   []string{BlockerNoActiveSnapshot},
		Actions:    []string{ActionAwaitIngestion},
		Evidence:   []Evidence{},
		RuleIDs:    []string{},
		Confidence: 0,
	}
}

// Classify grades a set of blockers and actions. Blockers dominate.
func Classify(blockers, actions []string) Grade {
	switch {
	case len(blockers) > 0:
		return GradeRed
	case len(actions) > 0:
		return GradeYellow
	default:
		return GradeGreen
	}
}

// ApplyConservatism demotes GREEN to UNDETERMINED when the ruleset or the verdict
// is not trustworthy. RED and YELLOW are kept because they only ask for more caution.
func ApplyConservatism(grade Grade, snapshot *rules.Snapshot, confidence, threshold float64) (Grade, Mode) {
	if snapshot.IsTrusted() && confidence >= threshold && snapshot.ValidationScore >= threshold {
		return grade, ModeAutoConfident
	}
	if grade == GradeGreen {
		grade = GradeUndetermined
	}
	return grade, ModeAutoConservative
}
