package event

import (
	"encoding/json"
	"strconv"
)

// Kind discriminates the scalar types a property value can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a property scalar: string, number, bool or null. Accessors
// coerce or default instead of failing, so malformed property bags never
// abort an aggregation pass.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Null() Value            { return Value{} }

func (v Value) Kind() Kind { return v.kind }

// AsString coerces the value to its string form. Numbers render without a
// trailing ".0", bools as "true"/"false", null as "".
func (v Value) AsString() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// AsNumber returns the numeric value, or 0 for non-numbers.
func (v Value) AsNumber() float64 {
	if v.kind == KindNumber {
		return v.num
	}
	return 0
}

// MarshalJSON renders the value as its native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any JSON scalar; objects and arrays collapse to
// null rather than erroring.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		*v = Null()
		return nil
	}
	*v = fromInterface(raw)
	return nil
}

func fromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case string:
		return String(t)
	case float64:
		return Number(t)
	case bool:
		return Bool(t)
	default:
		return Null()
	}
}

// Properties is an open key-value bag attached to an event. Lookups on a
// nil bag behave like lookups on an empty one.
type Properties map[string]Value

// GetString returns the coerced string value for key and whether the key
// was present.
func (p Properties) GetString(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return v.AsString(), true
}

// ParseProperties decodes a JSON object into a property bag. Malformed
// input or a non-object document yields an empty bag, never an error.
func ParseProperties(raw []byte) Properties {
	if len(raw) == 0 {
		return Properties{}
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Properties{}
	}
	props := make(Properties, len(decoded))
	for k, v := range decoded {
		props[k] = fromInterface(v)
	}
	return props
}
