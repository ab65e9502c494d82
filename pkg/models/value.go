package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind is the closed set of scalar kinds a record field can hold
type ValueKind string

const (
	ValueKindNull   ValueKind = "null"
	ValueKindString ValueKind = "string"
	ValueKindNumber ValueKind = "number"
	ValueKindBool   ValueKind = "bool"
)

// Value is a single scalar field value. The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// Null returns the null value
func Null() Value {
	return Value{kind: ValueKindNull}
}

// String returns a string value
func String(s string) Value {
	return Value{kind: ValueKindString, str: s}
}

// Number returns a numeric value
func Number(n float64) Value {
	return Value{kind: ValueKindNumber, num: n}
}

// Bool returns a boolean value
func Bool(b bool) Value {
	return Value{kind: ValueKindBool, b: b}
}

// ValueOf converts a decoded JSON scalar or a Go scalar into a Value
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", v)
	}
}

// MustValueOf is ValueOf for literals known to be scalars. It panics otherwise.
func MustValueOf(v any) Value {
	value, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return value
}

// Kind returns the kind of the value
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return ValueKindNull
	}
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.Kind() == ValueKindNull
}

// IsEmpty reports whether the value is null or the empty string
func (v Value) IsEmpty() bool {
	return v.IsNull() || (v.kind == ValueKindString && v.str == "")
}

// Str returns the string payload if the value is a string
func (v Value) Str() (string, bool) {
	return v.str, v.kind == ValueKindString
}

// Num returns the numeric payload if the value is a number
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == ValueKindNumber
}

// Boolean returns the boolean payload if the value is a bool
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == ValueKindBool
}

// String renders the value the way the backend prints it in encoded queries
func (v Value) String() string {
	switch v.Kind() {
	case ValueKindString:
		return v.str
	case ValueKindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueKindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Equal compares kind and payload. Values of different kinds are never equal.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}

	switch v.Kind() {
	case ValueKindString:
		return v.str == other.str
	case ValueKindNumber:
		return v.num == other.num
	case ValueKindBool:
		return v.b == other.b
	default:
		return true
	}
}

// Interface returns the value as a plain Go scalar
func (v Value) Interface() any {
	switch v.Kind() {
	case ValueKindString:
		return v.str
	case ValueKindNumber:
		return v.num
	case ValueKindBool:
		return v.b
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	value, err := ValueOf(raw)
	if err != nil {
		return err
	}

	*v = value
	return nil
}
