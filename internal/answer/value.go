// Package answer provides the tagged value type stored under a question id
// in a response.
//
// Answers are schema-less on the wire (any JSON scalar or array of scalars),
// so they are modelled as a sealed sum type instead of an untyped any. Shape
// checks against a question's declared type happen at the submission
// boundary in package form, not here.
package answer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Value is a sealed interface over the answer shapes.
// Only Null, String, Number, Bool and List implement it.
type Value interface {
	answerValue()
}

// Null is an explicit JSON null answer.
type Null struct{}

func (Null) answerValue() {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a textual answer.
type String string

func (String) answerValue() {}

// Number is a numeric answer. Unlike most ids in the store, answers may be
// fractional (ratings, scales, free numbers), so the representation is float64.
type Number float64

func (Number) answerValue() {}

// MarshalJSON implements json.Marshaler. Integral values are written
// without a fractional part.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("answer: unsupported number %v", f)
	}
	return json.Marshal(f)
}

// Bool is a boolean answer.
type Bool bool

func (Bool) answerValue() {}

// List is an ordered list of scalar answers (multi-select, matrix).
// Nested lists are rejected on decode.
type List []Value

func (List) answerValue() {}

// MarshalJSON implements json.Marshaler.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Marshal encodes a Value to JSON. A nil Value encodes as null.
func Marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return marshalString(string(val))
	case Number:
		return val.MarshalJSON()
	case Bool:
		return json.Marshal(bool(val))
	case List:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("answer: unknown value type %T", v)
	}
}

// Parse decodes a JSON answer. Objects and nested arrays are rejected.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts a decoded JSON or YAML value into a Value.
func FromAny(v any) (Value, error) {
	return fromAny(v, true)
}

func fromAny(v any, allowList bool) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("answer: invalid number %s", val)
		}
		return Number(f), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case []any:
		if !allowList {
			return nil, fmt.Errorf("answer: nested lists are not allowed")
		}
		list := make(List, len(val))
		for i, elem := range val {
			item, err := fromAny(elem, false)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = item
		}
		return list, nil
	case []string:
		list := make(List, len(val))
		for i, s := range val {
			list[i] = String(s)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("answer: unsupported type %T", v)
	}
}

// Answers maps question ids to answer values.
type Answers map[string]Value

// UnmarshalJSON implements json.Unmarshaler.
func (a *Answers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = make(Answers, len(raw))
	for k, v := range raw {
		val, err := Parse(v)
		if err != nil {
			return fmt.Errorf("answer %q: %w", k, err)
		}
		(*a)[k] = val
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Keys are written in sorted order
// so the wire format is stable.
func (a Answers) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := Marshal(a[k])
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalString encodes s without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Flatten returns the scalar elements of v: the elements of a list, the
// value itself for a scalar, nothing for null. Duplicates inside a list
// are preserved.
func Flatten(v Value) []Value {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case List:
		out := make([]Value, 0, len(val))
		for _, elem := range val {
			if _, isNull := elem.(Null); isNull || elem == nil {
				continue
			}
			out = append(out, elem)
		}
		return out
	default:
		return []Value{v}
	}
}

// Key stringifies a scalar value for use as a tally key.
func Key(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case nil, Null:
		return ""
	default:
		b, err := Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// IsEmpty reports whether v is absent, null, an empty string or an empty list.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case String:
		return val == ""
	case List:
		return len(val) == 0
	default:
		return false
	}
}

// AsNumber returns the numeric value of v. Numeric strings are accepted.
func AsNumber(v Value) (float64, bool) {
	switch val := v.(type) {
	case Number:
		return float64(val), true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsText returns the text of a String value.
func AsText(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// Equal compares two values. Numbers compare numerically, and a numeric
// string equals the number it spells ("5" == 5), since form inputs often
// submit numbers as text.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number, String:
		if as, ok := a.(String); ok {
			if bs, ok := b.(String); ok {
				return as == bs
			}
		}
		an, aok := AsNumber(a)
		bn, bok := AsNumber(b)
		return aok && bok && an == bn
	default:
		return false
	}
}
