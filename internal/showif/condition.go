// Package showif evaluates the conditional-visibility expressions attached
// to questions.
//
// An expression is a closed sum type: a Leaf tests one earlier answer, And
// and Or combine child conditions. Evaluation has no side effects, so the
// order children are visited in does not matter.
package showif

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/formdoc/internal/answer"
)

// Operator names a leaf comparison or a compound combinator.
type Operator string

// Leaf operators.
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpIsEmpty     Operator = "isEmpty"
	OpIsNotEmpty  Operator = "isNotEmpty"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
)

// Compound operators.
const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// Condition is sealed: only Leaf, And and Or implement it.
type Condition interface {
	condition()
}

// Leaf compares the answer to QuestionID against Value.
// Value is nil for operators that take no operand (isEmpty, isNotEmpty).
type Leaf struct {
	QuestionID string
	Operator   Operator
	Value      answer.Value
}

func (Leaf) condition() {}

// And holds when no child evaluates false.
type And struct {
	Conditions []Condition
}

func (And) condition() {}

// Or holds when at least one child evaluates true.
type Or struct {
	Conditions []Condition
}

func (Or) condition() {}

// Expr wraps a Condition so it can be embedded in JSON documents.
type Expr struct {
	Condition Condition
}

// wireCondition is the JSON shape shared by leaves and compounds.
type wireCondition struct {
	QuestionID string            `json:"questionId,omitempty"`
	Operator   Operator          `json:"operator,omitempty"`
	Value      json.RawMessage   `json:"value,omitempty"`
	Conditions []json.RawMessage `json:"conditions,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expr) UnmarshalJSON(data []byte) error {
	c, err := Decode(data)
	if err != nil {
		return err
	}
	e.Condition = c
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e Expr) MarshalJSON() ([]byte, error) {
	return Encode(e.Condition)
}

// Decode parses a JSON condition.
//
// An object whose operator is "and" or "or" is a compound; anything else is
// a leaf. A leaf with an unrecognised operator is kept as-is and evaluates
// to true (see Evaluate).
func Decode(data []byte) (Condition, error) {
	var w wireCondition
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("showif: %w", err)
	}

	switch w.Operator {
	case OpAnd, OpOr:
		children := make([]Condition, 0, len(w.Conditions))
		for i, raw := range w.Conditions {
			child, err := Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("conditions[%d]: %w", i, err)
			}
			children = append(children, child)
		}
		if w.Operator == OpAnd {
			return And{Conditions: children}, nil
		}
		return Or{Conditions: children}, nil
	}

	leaf := Leaf{QuestionID: w.QuestionID, Operator: w.Operator}
	if len(w.Value) > 0 && !bytes.Equal(w.Value, []byte("null")) {
		v, err := answer.Parse(w.Value)
		if err != nil {
			return nil, fmt.Errorf("showif: value for %q: %w", w.QuestionID, err)
		}
		leaf.Value = v
	}
	return leaf, nil
}

// Encode writes a condition in its JSON shape.
func Encode(c Condition) ([]byte, error) {
	switch cond := c.(type) {
	case nil:
		return []byte("null"), nil
	case Leaf:
		w := wireCondition{QuestionID: cond.QuestionID, Operator: cond.Operator}
		if cond.Value != nil {
			b, err := answer.Marshal(cond.Value)
			if err != nil {
				return nil, err
			}
			w.Value = b
		}
		return json.Marshal(w)
	case And:
		return encodeCompound(OpAnd, cond.Conditions)
	case Or:
		return encodeCompound(OpOr, cond.Conditions)
	default:
		return nil, fmt.Errorf("showif: unknown condition type %T", c)
	}
}

func encodeCompound(op Operator, children []Condition) ([]byte, error) {
	w := wireCondition{Operator: op, Conditions: make([]json.RawMessage, len(children))}
	for i, child := range children {
		b, err := Encode(child)
		if err != nil {
			return nil, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		w.Conditions[i] = b
	}
	return json.Marshal(w)
}

// References returns the question ids a condition reads, in visit order.
func References(c Condition) []string {
	var ids []string
	var walk func(Condition)
	walk = func(c Condition) {
		switch cond := c.(type) {
		case Leaf:
			if cond.QuestionID != "" {
				ids = append(ids, cond.QuestionID)
			}
		case And:
			for _, child := range cond.Conditions {
				walk(child)
			}
		case Or:
			for _, child := range cond.Conditions {
				walk(child)
			}
		}
	}
	walk(c)
	return ids
}
