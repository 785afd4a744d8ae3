package vm

import (
	"errors"
	"math"
	"testing"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   Object
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{int64(0), false},
		{int64(-1), true},
		{float64(0), false},
		{math.NaN(), false},
		{0.5, true},
		{"", false},
		{"0", true},
		{NewRecord(), true},
		{[]Object{}, true},
		{(*counter)(nil), false},
		{int32(3), true},
	}
	for _, tt := range tests {
		if got := truthy(tt.in); got != tt.want {
			t.Errorf("truthy(%#v) = %t, want %t", tt.in, got, tt.want)
		}
	}
}

func TestBinaryArithmetic(t *testing.T) {
	h := NewNativeHost()
	tests := []struct {
		op    Opcode
		left  Object
		right Object
		want  Object
	}{
		{OpAdd, int64(2), int64(3), int64(5)},
		{OpSub, int64(2), int64(3), int64(-1)},
		{OpMul, int64(4), int64(3), int64(12)},
		{OpDiv, int64(12), int64(3), int64(4)},
		{OpDiv, int64(7), int64(2), 3.5},
		{OpMod, int64(7), int64(3), int64(1)},
		{OpAdd, int64(1), 0.5, 1.5},
		{OpMul, 1.5, int64(2), 3.0},
		{OpMod, 7.5, int64(2), 1.5},
		{OpAdd, "a", "b", "ab"},
		{OpAdd, "n=", int64(3), "n=3"},
		{OpAdd, int64(3), "!", "3!"},
		{OpDiv, int64(1), int64(0), math.Inf(1)},
		{OpDiv, int64(-1), int64(0), math.Inf(-1)},
		{OpAdd, int(2), uint8(3), int64(5)},
	}
	for _, tt := range tests {
		got, err := h.Binary(tt.op, tt.left, tt.right)
		if err != nil {
			t.Errorf("%v %s %v: %v", tt.left, tt.op, tt.right, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v %s %v = %#v, want %#v", tt.left, tt.op, tt.right, got, tt.want)
		}
	}
}

func TestBinaryDivideZeroByZero(t *testing.T) {
	h := NewNativeHost()
	got, err := h.Binary(OpDiv, int64(0), int64(0))
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := got.(float64); !ok || !math.IsNaN(f) {
		t.Errorf("0 / 0 = %#v, want NaN", got)
	}
}

func TestBinaryBadOperands(t *testing.T) {
	h := NewNativeHost()
	tests := []struct {
		op    Opcode
		left  Object
		right Object
	}{
		{OpSub, "a", int64(1)},
		{OpMul, nil, int64(1)},
		{OpAdd, true, int64(1)},
		{OpLt, "a", int64(1)},
		{OpGt, NewRecord(), NewRecord()},
		{OpNot, int64(1), int64(1)},
	}
	for _, tt := range tests {
		_, err := h.Binary(tt.op, tt.left, tt.right)
		if !errors.Is(err, ErrBadType) {
			t.Errorf("%v %s %v: err = %v, want ErrBadType", tt.left, tt.op, tt.right, err)
		}
	}
}

func TestBinaryComparison(t *testing.T) {
	h := NewNativeHost()
	tests := []struct {
		op    Opcode
		left  Object
		right Object
		want  bool
	}{
		{OpLt, int64(1), int64(2), true},
		{OpGt, int64(1), int64(2), false},
		{OpLte, int64(2), int64(2), true},
		{OpGte, 1.5, int64(2), false},
		{OpLt, "abc", "abd", true},
		{OpGte, "b", "a", true},
		{OpLt, math.NaN(), 1.0, false},
		{OpEq, int64(1), 1.0, true},
		{OpEq, "a", "a", true},
		{OpEq, nil, nil, true},
		{OpEq, nil, int64(0), false},
		{OpNeq, "a", int64(1), true},
		{OpEq, []Object{int64(1), "x"}, []Object{1.0, "x"}, true},
		{OpAnd, int64(1), "", false},
		{OpOr, int64(0), "x", true},
	}
	for _, tt := range tests {
		got, err := h.Binary(tt.op, tt.left, tt.right)
		if err != nil {
			t.Errorf("%v %s %v: %v", tt.left, tt.op, tt.right, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v %s %v = %v, want %t", tt.left, tt.op, tt.right, got, tt.want)
		}
	}
}

func TestEqualRecords(t *testing.T) {
	a := NewRecord()
	a.Set("x", int64(1))
	a.Set("y", "z")
	b := NewRecord()
	b.Set("y", "z")
	b.Set("x", 1.0)
	if !Equal(a, b) {
		t.Error("records with the same entries should be equal")
	}
	b.Set("w", nil)
	if Equal(a, b) {
		t.Error("records with different sizes should differ")
	}
}

func TestDescribe(t *testing.T) {
	rec := NewRecord()
	rec.Set("name", "orc")
	rec.Set("tags", []Object{"a", int64(2)})
	tests := []struct {
		in   Object
		want string
	}{
		{nil, "null"},
		{true, "true"},
		{int64(-3), "-3"},
		{2.5, "2.5"},
		{"plain", "plain"},
		{rec, `{"name": "orc", "tags": ["a", 2]}`},
		{Func(nil), "<function>"},
		{errors.New("bad"), "bad"},
	}
	h := NewNativeHost()
	for _, tt := range tests {
		if got := h.Describe(tt.in); got != tt.want {
			t.Errorf("Describe(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
