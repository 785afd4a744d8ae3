package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: literal values embedded in bytecode
// ---------------------------------------------------------------------------

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

var valueKindNames = map[ValueKind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindList:   "list",
	KindMap:    "map",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// Value is a literal carried by a Push operation. Int and Float are the two
// number variants; they stay distinct in bytecode but the host treats them
// uniformly in arithmetic.
//
// Value is a flat tagged struct rather than an interface so that programs
// serialize losslessly without a type registry.
type Value struct {
	Kind  ValueKind `cbor:"1,keyasint"`
	Bool  bool      `cbor:"2,keyasint,omitempty"`
	Int   int32     `cbor:"3,keyasint,omitempty"`
	Float float32   `cbor:"4,keyasint,omitempty"`
	Str   string    `cbor:"5,keyasint,omitempty"`
	List  []Value   `cbor:"6,keyasint,omitempty"`
	Map   []Field   `cbor:"7,keyasint,omitempty"`
}

// Field is one entry of an insertion-ordered map literal.
type Field struct {
	Key   string `cbor:"1,keyasint"`
	Value Value  `cbor:"2,keyasint"`
}

// NullValue returns the Null literal.
func NullValue() Value { return Value{Kind: KindNull} }

// BoolValue returns a Bool literal.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue returns an Int number literal.
func IntValue(i int32) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue returns a Float number literal.
func FloatValue(f float32) Value { return Value{Kind: KindFloat, Float: f} }

// StringValue returns a String literal.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// ListValue returns a List literal.
func ListValue(items ...Value) Value { return Value{Kind: KindList, List: items} }

// MapValue returns a Map literal. Field order is preserved.
func MapValue(fields ...Field) Value { return Value{Kind: KindMap, Map: fields} }

// IsNumber reports whether v is an Int or Float literal.
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// Equal reports whether two literals are identical, including number variant.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for i := range v.Map {
			if v.Map[i].Key != o.Map[i].Key || !v.Map[i].Value.Equal(o.Map[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the literal the way it is displayed in diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case KindString:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.quoted()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, len(v.Map))
		for i, f := range v.Map {
			parts[i] = strconv.Quote(f.Key) + ": " + f.Value.quoted()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("<%s>", v.Kind)
}

// quoted is String with string literals quoted, used inside containers.
func (v Value) quoted() string {
	if v.Kind == KindString {
		return strconv.Quote(v.Str)
	}
	return v.String()
}
