package showif

import (
	"strings"

	"github.com/roach88/formdoc/internal/answer"
)

// Evaluate reports whether the question guarded by c is active given the
// submitted answers. A nil condition is always active.
//
// Leaf semantics:
//   - equals / notEquals: value comparison (answer.Equal); a list answer
//     equals a scalar when it contains it
//   - contains / notContains: substring test on text answers, element test
//     on list answers
//   - isEmpty / isNotEmpty: absent, null, "" or [] counts as empty
//   - greaterThan / lessThan: numeric comparison, false if either side is
//     not numeric
//   - in / notIn: membership in a list-valued operand
//
// An unknown operator evaluates to true, so a malformed condition never
// hides a question.
func Evaluate(c Condition, answers answer.Answers) bool {
	switch cond := c.(type) {
	case nil:
		return true
	case Leaf:
		return evaluateLeaf(cond, answers)
	case And:
		result := true
		for _, child := range cond.Conditions {
			if !Evaluate(child, answers) {
				result = false
			}
		}
		return result
	case Or:
		result := false
		for _, child := range cond.Conditions {
			if Evaluate(child, answers) {
				result = true
			}
		}
		return result
	default:
		return true
	}
}

// Active is Evaluate for an optional expression.
func Active(e *Expr, answers answer.Answers) bool {
	if e == nil {
		return true
	}
	return Evaluate(e.Condition, answers)
}

func evaluateLeaf(leaf Leaf, answers answer.Answers) bool {
	got := answers[leaf.QuestionID]

	switch leaf.Operator {
	case OpEquals:
		return equals(got, leaf.Value)
	case OpNotEquals:
		return !equals(got, leaf.Value)
	case OpContains:
		return contains(got, leaf.Value)
	case OpNotContains:
		return !contains(got, leaf.Value)
	case OpIsEmpty:
		return answer.IsEmpty(got)
	case OpIsNotEmpty:
		return !answer.IsEmpty(got)
	case OpGreaterThan:
		a, aok := answer.AsNumber(got)
		b, bok := answer.AsNumber(leaf.Value)
		return aok && bok && a > b
	case OpLessThan:
		a, aok := answer.AsNumber(got)
		b, bok := answer.AsNumber(leaf.Value)
		return aok && bok && a < b
	case OpIn:
		return in(got, leaf.Value)
	case OpNotIn:
		return !in(got, leaf.Value)
	default:
		return true
	}
}

func equals(got, want answer.Value) bool {
	if list, ok := got.(answer.List); ok {
		if _, wantList := want.(answer.List); !wantList {
			return listHas(list, want)
		}
	}
	return answer.Equal(got, want)
}

func contains(got, want answer.Value) bool {
	switch g := got.(type) {
	case answer.String:
		w, ok := want.(answer.String)
		if !ok {
			return false
		}
		return strings.Contains(string(g), string(w))
	case answer.List:
		return listHas(g, want)
	default:
		return false
	}
}

// in reports whether got (or, for a list answer, any of its elements) is a
// member of the list operand.
func in(got, set answer.Value) bool {
	members, ok := set.(answer.List)
	if !ok {
		return false
	}
	for _, v := range answer.Flatten(got) {
		if listHas(members, v) {
			return true
		}
	}
	return false
}

func listHas(list answer.List, v answer.Value) bool {
	for _, elem := range list {
		if answer.Equal(elem, v) {
			return true
		}
	}
	return false
}
