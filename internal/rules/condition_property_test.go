//go:build property

package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConditionAlgebra checks the combinator laws the evaluator must respect for
// arbitrary facts.
func TestConditionAlgebra(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	predicate := func(zone string, nights int) (Condition, Facts) {
		facts := Facts{"property": map[string]any{"zone": zone, "nights": float64(nights)}}
		return Predicate{Field: "property.nights", Op: OpGte, Value: float64(90)}, facts
	}

	properties.Property("not(not(c)) == c", prop.ForAll(
		func(zone string, nights int) bool {
			c, facts := predicate(zone, nights)
			return Not{Term: Not{Term: c}}.Eval(facts) == c.Eval(facts)
		},
		gen.AlphaString(),
		gen.IntRange(0, 400),
	))

	properties.Property("all(c, not c) is false and any(c, not c) is true", prop.ForAll(
		func(zone string, nights int) bool {
			c, facts := predicate(zone, nights)
			return !All{Terms: []Condition{c, Not{Term: c}}}.Eval(facts) &&
				Any{Terms: []Condition{c, Not{Term: c}}}.Eval(facts)
		},
		gen.AlphaString(),
		gen.IntRange(0, 400),
	))

	properties.Property("in and not_in are complements", prop.ForAll(
		func(zone string, zones []string) bool {
			list := make([]any, 0, len(zones))
			for _, z := range zones {
				list = append(list, z)
			}
			facts := Facts{"property": map[string]any{"zone": zone}}
			in := Predicate{Field: "property.zone", Op: OpIn, Value: list}
			notIn := Predicate{Field: "property.zone", Op: OpNotIn, Value: list}
			return in.Eval(facts) != notIn.Eval(facts)
		},
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("wire form round-trips", prop.ForAll(
		func(field string, value string) bool {
			original := All{Terms: []Condition{
				Predicate{Field: field, Op: OpEq, Value: value},
				Not{Term: Predicate{Field: field, Op: OpExists}},
			}}
			parsed, err := ParseCondition(EncodeCondition(original))
			if err != nil {
				return false
			}
			facts := Facts{field: value}
			return parsed.Eval(facts) == original.Eval(facts)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
