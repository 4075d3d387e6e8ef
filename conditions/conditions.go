// Package conditions evaluates a policy's declarative condition tree against
// an event payload. Semantics are AND-only across fields: a policy matches
// iff every top-level field matches. There is no OR or NOT; policies are
// authored against that limitation and it must not change.
package conditions

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Predicate is a tagged variant of the per-field matching forms.
type Predicate interface {
	// Match reports whether the payload value satisfies the predicate.
	// A missing payload field is passed as nil.
	Match(value any) bool
}

// Equals matches on exact equality with a scalar.
type Equals struct {
	Value any
}

func (p Equals) Match(value any) bool {
	return looseEqual(p.Value, value)
}

// Membership matches when the payload value is a member of the set.
type Membership struct {
	Values []any
}

func (p Membership) Match(value any) bool {
	for _, candidate := range p.Values {
		if looseEqual(candidate, value) {
			return true
		}
	}
	return false
}

// Comparison operators.
const (
	OpGT  = "$gt"
	OpGTE = "$gte"
	OpLT  = "$lt"
	OpLTE = "$lte"
	OpEQ  = "$eq"
	OpNE  = "$ne"
)

// Comparison applies one operator against the payload value.
type Comparison struct {
	Op    string
	Value any
}

func (p Comparison) Match(value any) bool {
	switch p.Op {
	case OpEQ:
		return looseEqual(p.Value, value)
	case OpNE:
		return !looseEqual(p.Value, value)
	}

	left, okL := toFloat(value)
	right, okR := toFloat(p.Value)
	if !okL || !okR {
		return false
	}

	switch p.Op {
	case OpGT:
		return left > right
	case OpGTE:
		return left >= right
	case OpLT:
		return left < right
	case OpLTE:
		return left <= right
	default:
		return false
	}
}

// UnsupportedOperator is a distinct variant for operator names the evaluator
// does not know. It never matches (fail-closed) and is reportable.
type UnsupportedOperator struct {
	Op string
}

func (p UnsupportedOperator) Match(value any) bool {
	return false
}

// FieldCondition binds one payload field to its predicates. A field with
// multiple operators carries one predicate per operator, all of which must
// hold.
type FieldCondition struct {
	Field      string
	Predicates []Predicate
}

// Parse converts a raw condition object (field name to array / operator
// object / scalar) into field conditions. Fields come out in sorted order so
// evaluation and reporting are deterministic.
func Parse(raw map[string]any) []FieldCondition {
	if len(raw) == 0 {
		return nil
	}

	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conds := make([]FieldCondition, 0, len(fields))
	for _, field := range fields {
		conds = append(conds, FieldCondition{
			Field:      field,
			Predicates: parsePredicates(raw[field]),
		})
	}
	return conds
}

func parsePredicates(spec any) []Predicate {
	switch v := spec.(type) {
	case []any:
		return []Predicate{Membership{Values: v}}
	case map[string]any:
		ops := make([]string, 0, len(v))
		for op := range v {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		preds := make([]Predicate, 0, len(ops))
		for _, op := range ops {
			switch op {
			case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpNE:
				preds = append(preds, Comparison{Op: op, Value: v[op]})
			default:
				preds = append(preds, UnsupportedOperator{Op: op})
			}
		}
		return preds
	default:
		return []Predicate{Equals{Value: spec}}
	}
}

// Unsupported returns the unknown operator names in a parsed condition set,
// for warning logs.
func Unsupported(conds []FieldCondition) []string {
	var ops []string
	for _, cond := range conds {
		for _, pred := range cond.Predicates {
			if u, ok := pred.(UnsupportedOperator); ok {
				ops = append(ops, u.Op)
			}
		}
	}
	return ops
}

// Helpers

// looseEqual compares values the way JSON round-trips produce them: numbers
// compare numerically regardless of Go type, everything else via DeepEqual.
func looseEqual(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
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
	default:
		return 0, false
	}
}
