package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Operator is a leaf predicate comparison.
type Operator string

const (
	OpExists Operator = "exists"
	OpEq     Operator = "eq"
	OpNeq    Operator = "neq"
	OpIn     Operator = "in"
	OpNotIn  Operator = "not_in"
	OpGte    Operator = "gte"
	OpLte    Operator = "lte"
)

// Known reports whether the evaluator understands op.
func (op Operator) Known() bool {
	switch op {
	case OpExists, OpEq, OpNeq, OpIn, OpNotIn, OpGte, OpLte:
		return true
	}
	return false
}

// Facts is the request context a condition is evaluated against: nested
// JSON-shaped maps addressed by dotted paths.
type Facts map[string]any

// Lookup resolves a dotted path. Missing keys and non-map intermediates yield nil.
func (f Facts) Lookup(path string) any {
	if path == "" {
		return nil
	}
	var current any = map[string]any(f)
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// Condition is a node of a clause applicability tree.
// Implementations: Always, All, Any, Not, Predicate.
type Condition interface {
	Eval(facts Facts) bool
	isCondition()
}

// Always is the empty expression; it applies unconditionally.
type Always struct{}

// All is a conjunction. An empty All is true.
type All struct{ Terms []Condition }

// Any is a disjunction. An empty Any is false.
type Any struct{ Terms []Condition }

// Not negates its term.
type Not struct{ Term Condition }

// Predicate compares the value at Field with Value using Op.
type Predicate struct {
	Field string
	Op    Operator
	Value any
}

func (Always) isCondition()    {}
func (All) isCondition()       {}
func (Any) isCondition()       {}
func (Not) isCondition()       {}
func (Predicate) isCondition() {}

func (Always) Eval(Facts) bool { return true }

func (c All) Eval(facts Facts) bool {
	for _, t := range c.Terms {
		if !evalTerm(t, facts) {
			return false
		}
	}
	return true
}

func (c Any) Eval(facts Facts) bool {
	for _, t := range c.Terms {
		if evalTerm(t, facts) {
			return true
		}
	}
	return false
}

func (c Not) Eval(facts Facts) bool {
	return !evalTerm(c.Term, facts)
}

// Eval applies the operator. Unknown operators evaluate to false; Validate reports them.
func (p Predicate) Eval(facts Facts) bool {
	observed := facts.Lookup(p.Field)
	switch p.Op {
	case OpExists:
		return observed != nil
	case OpEq:
		return equal(observed, p.Value)
	case OpNeq:
		return !equal(observed, p.Value)
	case OpIn:
		return contains(p.Value, observed)
	case OpNotIn:
		return !contains(p.Value, observed)
	case OpGte:
		cmp, ok := compare(observed, p.Value)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := compare(observed, p.Value)
		return ok && cmp <= 0
	default:
		return false
	}
}

func evalTerm(c Condition, facts Facts) bool {
	if c == nil {
		return true
	}
	return c.Eval(facts)
}

// Validate walks the tree and returns one issue per predicate the evaluator
// cannot honor.
func Validate(c Condition) []string {
	var issues []string
	var walk func(Condition)
	walk = func(c Condition) {
		switch n := c.(type) {
		case All:
			for _, t := range n.Terms {
				walk(t)
			}
		case Any:
			for _, t := range n.Terms {
				walk(t)
			}
		case Not:
			walk(n.Term)
		case Predicate:
			if !n.Op.Known() {
				issues = append(issues, fmt.Sprintf("unknown operator %q on field %q", n.Op, n.Field))
			}
		}
	}
	walk(c)
	return issues
}

// -----------------------------------------------------------------------------
// Value semantics
// -----------------------------------------------------------------------------

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Facts:
		return m, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// contains treats a list as membership and a string as substring containment.
// Any other container holds nothing.
func contains(container, item any) bool {
	switch c := container.(type) {
	case []any:
		for _, v := range c {
			if equal(v, item) {
				return true
			}
		}
	case []string:
		s, ok := item.(string)
		if !ok {
			return false
		}
		for _, v := range c {
			if v == s {
				return true
			}
		}
	case string:
		s, ok := item.(string)
		return ok && strings.Contains(c, s)
	}
	return false
}

// compare orders numbers with numbers and strings with strings.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Wire form
// -----------------------------------------------------------------------------

// ParseCondition builds a tree from the dict wire form:
//
//	{}                                  -> Always
//	{"all": [...]} / {"any": [...]}     -> All / Any
//	{"not": {...}}                      -> Not
//	{"field": "a.b", "op": "eq", "value": true} -> Predicate (op defaults to eq)
//
// Combinator keys take precedence in the order all, any, not.
func ParseCondition(raw map[string]any) (Condition, error) {
	if len(raw) == 0 {
		return Always{}, nil
	}
	if v, ok := raw["all"]; ok {
		terms, err := parseTerms(v, "all")
		if err != nil {
			return nil, err
		}
		return All{Terms: terms}, nil
	}
	if v, ok := raw["any"]; ok {
		terms, err := parseTerms(v, "any")
		if err != nil {
			return nil, err
		}
		return Any{Terms: terms}, nil
	}
	if v, ok := raw["not"]; ok {
		m, isMap := asMap(v)
		if !isMap && v != nil {
			return nil, fmt.Errorf("not: expected object, got %T", v)
		}
		term, err := ParseCondition(m)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Term: term}, nil
	}

	p := Predicate{Op: OpEq, Value: raw["value"]}
	if f, ok := raw["field"]; ok && f != nil {
		field, isString := f.(string)
		if !isString {
			return nil, fmt.Errorf("field: expected string, got %T", f)
		}
		p.Field = field
	}
	if op, ok := raw["op"]; ok && op != nil {
		s, isString := op.(string)
		if !isString {
			return nil, fmt.Errorf("op: expected string, got %T", op)
		}
		p.Op = Operator(s)
	}
	return p, nil
}

func parseTerms(v any, key string) ([]Condition, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected array, got %T", key, v)
	}
	terms := make([]Condition, 0, len(items))
	for i, item := range items {
		m, isMap := asMap(item)
		if !isMap {
			return nil, fmt.Errorf("%s[%d]: expected object, got %T", key, i, item)
		}
		term, err := ParseCondition(m)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// EncodeCondition renders a tree back into the dict wire form.
func EncodeCondition(c Condition) map[string]any {
	switch n := c.(type) {
	case nil, Always:
		return map[string]any{}
	case All:
		return map[string]any{"all": encodeTerms(n.Terms)}
	case Any:
		return map[string]any{"any": encodeTerms(n.Terms)}
	case Not:
		return map[string]any{"not": EncodeCondition(n.Term)}
	case Predicate:
		return map[string]any{"field": n.Field, "op": string(n.Op), "value": n.Value}
	}
	return map[string]any{}
}

func encodeTerms(terms []Condition) []any {
	out := make([]any, 0, len(terms))
	for _, t := range terms {
		out = append(out, EncodeCondition(t))
	}
	return out
}

// Expression wraps a condition tree so it round-trips through JSON columns and
// API payloads. The zero value applies unconditionally.
type Expression struct {
	Root Condition
}

// NewExpression wraps c.
func NewExpression(c Condition) Expression {
	return Expression{Root: c}
}

// Eval evaluates the wrapped tree; an empty expression is true.
func (e Expression) Eval(facts Facts) bool {
	return evalTerm(e.Root, facts)
}

func (e Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeCondition(e.Root))
}

func (e *Expression) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		e.Root = Always{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("condition_expr: %w", err)
	}
	c, err := ParseCondition(raw)
	if err != nil {
		return fmt.Errorf("condition_expr: %w", err)
	}
	e.Root = c
	return nil
}
