// Package respval implements the tagged return-value type exchanged
// between the scripted response layer and the external transport.
package respval

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant carried by a Value.
type Kind int

const (
	Unknown Kind = iota
	Bool
	Int
	Real
	String
	BoolArray
	IntArray
	RealArray
	StringArray
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Real:
		return "real"
	case String:
		return "string"
	case BoolArray:
		return "bool[]"
	case IntArray:
		return "int[]"
	case RealArray:
		return "real[]"
	case StringArray:
		return "string[]"
	default:
		return "unknown"
	}
}

// Value is a tagged union. The core never introspects the payload; it
// is only copied and compared for equality by the caller.
type Value struct {
	kind        Kind
	boolVal     bool
	intVal      int64
	realVal     float64
	stringVal   string
	boolArray   []bool
	intArray    []int64
	realArray   []float64
	stringArray []string
}

// UnknownValue is the zero Value: kind Unknown.
var UnknownValue = Value{}

func NewBool(b bool) Value     { return Value{kind: Bool, boolVal: b} }
func NewInt(i int64) Value     { return Value{kind: Int, intVal: i} }
func NewReal(f float64) Value  { return Value{kind: Real, realVal: f} }
func NewString(s string) Value { return Value{kind: String, stringVal: s} }

func NewBoolArray(v []bool) Value {
	return Value{kind: BoolArray, boolArray: append([]bool(nil), v...)}
}

func NewIntArray(v []int64) Value {
	return Value{kind: IntArray, intArray: append([]int64(nil), v...)}
}

func NewRealArray(v []float64) Value {
	return Value{kind: RealArray, realArray: append([]float64(nil), v...)}
}

func NewStringArray(v []string) Value {
	return Value{kind: StringArray, stringArray: append([]string(nil), v...)}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)         { return v.boolVal, v.kind == Bool }
func (v Value) AsInt() (int64, bool)         { return v.intVal, v.kind == Int }
func (v Value) AsReal() (float64, bool)      { return v.realVal, v.kind == Real }
func (v Value) AsString() (string, bool)     { return v.stringVal, v.kind == String }
func (v Value) AsBoolArray() ([]bool, bool)  { return v.boolArray, v.kind == BoolArray }
func (v Value) AsIntArray() ([]int64, bool)  { return v.intArray, v.kind == IntArray }
func (v Value) AsRealArray() ([]float64, bool) {
	return v.realArray, v.kind == RealArray
}
func (v Value) AsStringArray() ([]string, bool) {
	return v.stringArray, v.kind == StringArray
}

// Equal reports whether two values carry the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Bool:
		return v.boolVal == other.boolVal
	case Int:
		return v.intVal == other.intVal
	case Real:
		return v.realVal == other.realVal
	case String:
		return v.stringVal == other.stringVal
	case BoolArray:
		return equalSlices(v.boolArray, other.boolArray)
	case IntArray:
		return equalSlices(v.intArray, other.intArray)
	case RealArray:
		return equalSlices(v.realArray, other.realArray)
	case StringArray:
		return equalSlices(v.stringArray, other.stringArray)
	default:
		return true // both Unknown
	}
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders v for logging.
func (v Value) String() string {
	switch v.kind {
	case Bool:
		return strconv.FormatBool(v.boolVal)
	case Int:
		return strconv.FormatInt(v.intVal, 10)
	case Real:
		return strconv.FormatFloat(v.realVal, 'g', -1, 64)
	case String:
		return v.stringVal
	case BoolArray, IntArray, RealArray, StringArray:
		return fmt.Sprintf("%s%v", v.kind, v.rawArray())
	default:
		return "<unknown>"
	}
}

// MarshalJSON renders v as {"kind": "...", "value": ...} so debug
// endpoints such as the scheduler snapshot can serialize a Value
// without reaching into its unexported fields.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}{Kind: v.kind.String(), Value: v.raw()})
}

func (v Value) raw() any {
	switch v.kind {
	case Bool:
		return v.boolVal
	case Int:
		return v.intVal
	case Real:
		return v.realVal
	case String:
		return v.stringVal
	default:
		return v.rawArray()
	}
}

func (v Value) rawArray() any {
	switch v.kind {
	case BoolArray:
		return v.boolArray
	case IntArray:
		return v.intArray
	case RealArray:
		return v.realArray
	case StringArray:
		return v.stringArray
	default:
		return nil
	}
}

// ParseScalar parses a single whitespace-delimited token into a Value
// of the named type ("bool", "int", "real", "string"; empty/"unknown"
// defaults to string).
func ParseScalar(typeName, token string) (Value, error) {
	switch strings.ToLower(typeName) {
	case "bool", "boolean":
		b, err := strconv.ParseBool(token)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", token, err)
		}
		return NewBool(b), nil
	case "int", "integer":
		i, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", token, err)
		}
		return NewInt(i), nil
	case "real", "float", "double":
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse real %q: %w", token, err)
		}
		return NewReal(f), nil
	case "string", "", "unknown":
		return NewString(token), nil
	default:
		return Value{}, fmt.Errorf("unknown type name %q", typeName)
	}
}

// ParseArray parses a sequence of whitespace-delimited tokens into an
// array Value of the named element type.
func ParseArray(typeName string, tokens []string) (Value, error) {
	switch strings.ToLower(typeName) {
	case "bool", "boolean":
		out := make([]bool, len(tokens))
		for i, t := range tokens {
			b, err := strconv.ParseBool(t)
			if err != nil {
				return Value{}, fmt.Errorf("parse bool element %q: %w", t, err)
			}
			out[i] = b
		}
		return NewBoolArray(out), nil
	case "int", "integer":
		out := make([]int64, len(tokens))
		for i, t := range tokens {
			v, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("parse int element %q: %w", t, err)
			}
			out[i] = v
		}
		return NewIntArray(out), nil
	case "real", "float", "double":
		out := make([]float64, len(tokens))
		for i, t := range tokens {
			v, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return Value{}, fmt.Errorf("parse real element %q: %w", t, err)
			}
			out[i] = v
		}
		return NewRealArray(out), nil
	case "string", "", "unknown":
		return NewStringArray(append([]string(nil), tokens...)), nil
	default:
		return Value{}, fmt.Errorf("unknown array element type %q", typeName)
	}
}
