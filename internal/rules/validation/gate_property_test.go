//go:build property

package validation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	id "permitpulse/pkg/domain"
)

// TestGateVerdictMatchesReasons verifies Valid is exactly "no reasons" and that the
// ratio rule follows the configured bounds for any clause counts.
func TestGateVerdictMatchesReasons(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	gate := New(DefaultConfig())

	properties.Property("valid iff no reasons", prop.ForAll(
		func(newCount, oldCount int, score float64) bool {
			result := gate.Evaluate(id.CityNYC, draftOf(clausesWithConfidence(newCount, score), score), &Previous{ClauseCount: oldCount})
			return result.Valid == (len(result.Reasons) == 0)
		},
		gen.IntRange(0, 60),
		gen.IntRange(0, 20),
		gen.Float64Range(0, 1),
	))

	properties.Property("ratio rule matches bounds", prop.ForAll(
		func(newCount, oldCount int) bool {
			result := gate.Evaluate(id.CityNYC, draftOf(clausesWithConfidence(newCount, 0.9), 0.9), &Previous{ClauseCount: oldCount})
			ratio := float64(newCount) / float64(oldCount)
			expectDiff := ratio > 3.0 || ratio < 0.33
			found := false
			for _, r := range result.Reasons {
				if r == ReasonDiffSanityFailed {
					found = true
				}
			}
			return found == expectDiff
		},
		gen.IntRange(1, 60),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
