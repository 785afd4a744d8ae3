package vm

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Operator semantics for the native host
// ---------------------------------------------------------------------------

// number is a numeric operand. isInt is true when the operand came from an
// integer type.
type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

// toNumber extracts a number from any Go numeric value.
func toNumber(o Object) (number, bool) {
	switch t := o.(type) {
	case int64:
		return number{i: t, isInt: true}, true
	case float64:
		return number{f: t}, true
	case nil, bool, string:
		return number{}, false
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{i: rv.Int(), isInt: true}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return number{i: int64(rv.Uint()), isInt: true}, true
	case reflect.Float32, reflect.Float64:
		return number{f: rv.Float()}, true
	}
	return number{}, false
}

// truthy treats nil, false, numeric zero, NaN and "" as false; everything
// else, including empty objects and lists, is true.
func truthy(o Object) bool {
	switch t := o.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if isNil(o) {
		return false
	}
	if n, ok := toNumber(o); ok {
		if n.isInt {
			return n.i != 0
		}
		return n.f != 0 && !math.IsNaN(n.f)
	}
	return true
}

// Binary applies a two-operand opcode.
func (h *NativeHost) Binary(op Opcode, left, right Object) (Object, error) {
	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	case OpAnd:
		return truthy(left) && truthy(right), nil
	case OpOr:
		return truthy(left) || truthy(right), nil
	case OpAdd:
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return describe(left, false) + describe(right, false), nil
		}
		return arith(op, left, right)
	case OpSub, OpMul, OpDiv, OpMod:
		return arith(op, left, right)
	case OpLt, OpGt, OpLte, OpGte:
		return compare(op, left, right)
	}
	return nil, badType("%s is not a binary operator", op)
}

// arith implements + - * / % on numbers. Integer operands stay integers
// except for inexact or by-zero division, which produce float64.
func arith(op Opcode, left, right Object) (Object, error) {
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return nil, badType("%s %s %s", typeName(left), op, typeName(right))
	}

	if l.isInt && r.isInt {
		a, b := l.i, r.i
		switch op {
		case OpAdd:
			return a + b, nil
		case OpSub:
			return a - b, nil
		case OpMul:
			return a * b, nil
		case OpDiv:
			if b == 0 {
				switch {
				case a > 0:
					return math.Inf(1), nil
				case a < 0:
					return math.Inf(-1), nil
				}
				return math.NaN(), nil
			}
			if a%b == 0 {
				return a / b, nil
			}
			return float64(a) / float64(b), nil
		case OpMod:
			if b == 0 {
				return math.NaN(), nil
			}
			return a % b, nil
		}
	}

	a, b := l.float(), r.float()
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpMod:
		return math.Mod(a, b), nil
	}
	return nil, badType("%s is not arithmetic", op)
}

// compare implements < > <= >= on numbers and on strings.
func compare(op Opcode, left, right Object) (Object, error) {
	var c int
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, badType("%s %s %s", typeName(left), op, typeName(right))
		}
		c = strings.Compare(ls, rs)
	} else {
		l, lok := toNumber(left)
		r, rok := toNumber(right)
		if !lok || !rok {
			return nil, badType("%s %s %s", typeName(left), op, typeName(right))
		}
		if l.isInt && r.isInt {
			switch {
			case l.i < r.i:
				c = -1
			case l.i > r.i:
				c = 1
			}
		} else {
			a, b := l.float(), r.float()
			if math.IsNaN(a) || math.IsNaN(b) {
				return false, nil
			}
			switch {
			case a < b:
				c = -1
			case a > b:
				c = 1
			}
		}
	}

	switch op {
	case OpLt:
		return c < 0, nil
	case OpGt:
		return c > 0, nil
	case OpLte:
		return c <= 0, nil
	default:
		return c >= 0, nil
	}
}

// Equal reports structural equality under the native host's rules.
func Equal(a, b Object) bool {
	return equal(a, b)
}

func equal(a, b Object) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if an, ok := toNumber(a); ok {
		bn, ok := toNumber(b)
		if !ok {
			return false
		}
		if an.isInt && bn.isInt {
			return an.i == bn.i
		}
		return an.float() == bn.float()
	}
	switch at := a.(type) {
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case *Record:
		bt, ok := b.(*Record)
		if !ok || at.Len() != bt.Len() {
			return false
		}
		for _, k := range at.keys {
			bv, ok := bt.Get(k)
			if !ok || !equal(at.values[k], bv) {
				return false
			}
		}
		return true
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if isListKind(av.Kind()) && isListKind(bv.Kind()) {
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !equal(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	if av.Type() == bv.Type() && av.Type().Comparable() {
		return a == b
	}
	if av.Kind() == reflect.Func && bv.Kind() == reflect.Func {
		return av.Pointer() == bv.Pointer()
	}
	return false
}

func isListKind(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array
}

// describe renders o. Strings nested inside containers are quoted.
func describe(o Object, nested bool) string {
	switch t := o.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		if nested {
			return strconv.Quote(t)
		}
		return t
	case *Record:
		parts := make([]string, 0, t.Len())
		for _, k := range t.keys {
			parts = append(parts, strconv.Quote(k)+": "+describe(t.values[k], true))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Func:
		return "<function>"
	case error:
		return t.Error()
	}
	if n, ok := toNumber(o); ok {
		if n.isInt {
			return strconv.FormatInt(n.i, 10)
		}
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "null"
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = describe(rv.Index(i).Interface(), true)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case reflect.Func:
		return "<function>"
	}
	return "<" + typeName(o) + ">"
}
