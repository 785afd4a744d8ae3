package vm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type monster struct {
	Name   string
	HP     int
	secret string
}

func (m monster) Describe() string { return m.Name + ":" + fmt.Sprint(m.HP) }

func (m *monster) Hurt(n int) (int, error) {
	if n < 0 {
		return 0, errors.New("negative damage")
	}
	m.HP -= n
	return m.HP, nil
}

func TestNativeProject(t *testing.T) {
	h := NewNativeHost()
	tests := []struct {
		in   Value
		want Object
	}{
		{NullValue(), nil},
		{BoolValue(true), true},
		{IntValue(-4), int64(-4)},
		{FloatValue(0.25), 0.25},
		{StringValue("s"), "s"},
	}
	for _, tt := range tests {
		if got := h.Project(tt.in); got != tt.want {
			t.Errorf("Project(%v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestNativeStructFields(t *testing.T) {
	h := NewNativeHost()
	m := &monster{Name: "orc", HP: 10, secret: "x"}

	tests := []struct {
		key  string
		has  bool
		want Object
	}{
		{"Name", true, "orc"},
		{"name", true, "orc"},
		{"hp", false, nil},
		{"HP", true, int64(10)},
		{"secret", false, nil},
		{"missing", false, nil},
	}
	for _, tt := range tests {
		has, err := h.Has(m, tt.key)
		if err != nil {
			t.Fatalf("Has(%q): %v", tt.key, err)
		}
		if has != tt.has {
			t.Errorf("Has(%q) = %t, want %t", tt.key, has, tt.has)
		}
		got, err := h.Get(m, tt.key)
		if err != nil {
			t.Fatalf("Get(%q): %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Get(%q) = %#v, want %#v", tt.key, got, tt.want)
		}
	}
}

func TestNativeMethods(t *testing.T) {
	h := NewNativeHost()
	m := &monster{Name: "orc", HP: 10}

	describeFn, err := h.Get(m, "describe")
	if err != nil {
		t.Fatal(err)
	}
	got, err := h.Invoke(describeFn, m, true, nil)
	if err != nil || got != "orc:10" {
		t.Errorf("describe() = %v, %v; want orc:10", got, err)
	}

	hurt, err := h.Get(m, "hurt")
	if err != nil {
		t.Fatal(err)
	}
	got, err = h.Invoke(hurt, m, true, []Object{int64(3)})
	if err != nil || got != int64(7) {
		t.Errorf("hurt(3) = %v, %v; want 7", got, err)
	}
	if _, err := h.Invoke(hurt, m, true, []Object{int64(-1)}); err == nil || err.Error() != "negative damage" {
		t.Errorf("hurt(-1) err = %v, want negative damage", err)
	}
	if _, err := h.Invoke(hurt, m, true, nil); err == nil || !strings.Contains(err.Error(), "not enough arguments") {
		t.Errorf("hurt() err = %v, want argument count error", err)
	}
}

func TestNativeSet(t *testing.T) {
	h := NewNativeHost()

	m := &monster{}
	if err := h.Set(m, "name", "goblin"); err != nil {
		t.Fatal(err)
	}
	if err := h.Set(m, "HP", int64(3)); err != nil {
		t.Fatal(err)
	}
	if m.Name != "goblin" || m.HP != 3 {
		t.Errorf("monster = %+v", m)
	}
	if err := h.Set(m, "Name", int64(1)); err == nil {
		t.Error("assigning an int to a string field should fail")
	}
	if err := h.Set(monster{}, "Name", "x"); !errors.Is(err, ErrNoProperty) {
		t.Errorf("Set on struct value: err = %v, want ErrNoProperty", err)
	}

	scores := map[string]int{}
	if err := h.Set(scores, "a", int64(5)); err != nil {
		t.Fatal(err)
	}
	if scores["a"] != 5 {
		t.Errorf("scores = %v", scores)
	}
	got, err := h.Get(scores, "a")
	if err != nil || got != int64(5) {
		t.Errorf("Get(scores, a) = %v, %v", got, err)
	}
	has, _ := h.Has(scores, "b")
	if has {
		t.Error("Has(scores, b) = true")
	}
}

func TestNativeLengthAndIndex(t *testing.T) {
	h := NewNativeHost()
	list := []Object{"a", "b", "c"}

	tests := []struct {
		obj  Object
		key  Object
		want Object
	}{
		{list, "length", int64(3)},
		{list, int64(0), "a"},
		{list, int64(5), nil},
		{list, int64(-1), nil},
		{list, 2.0, "c"},
		{list, 1.5, nil},
		{"héllo", "length", int64(5)},
		{"héllo", int64(1), "é"},
		{[]int{4, 5}, int64(1), int64(5)},
	}
	for _, tt := range tests {
		got, err := h.Index(tt.obj, tt.key)
		if err != nil {
			t.Errorf("Index(%v, %v): %v", tt.obj, tt.key, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Index(%v, %v) = %#v, want %#v", tt.obj, tt.key, got, tt.want)
		}
	}

	if _, err := h.Index(list, true); !errors.Is(err, ErrBadType) {
		t.Errorf("Index with bool: err = %v, want ErrBadType", err)
	}
	if _, err := h.Index(int64(1), int64(0)); !IsBadType(err) {
		t.Errorf("Index into int: err = %v, want a bad type error", err)
	}
}

func TestNativeNullHasNoProperties(t *testing.T) {
	h := NewNativeHost()
	var m *monster
	for _, o := range []Object{nil, m} {
		if _, err := h.Get(o, "x"); !errors.Is(err, ErrNoProperty) {
			t.Errorf("Get(%#v): err = %v, want ErrNoProperty", o, err)
		}
		if _, err := h.Has(o, "x"); !errors.Is(err, ErrNoProperty) {
			t.Errorf("Has(%#v): err = %v, want ErrNoProperty", o, err)
		}
		if !h.IsNull(o) {
			t.Errorf("IsNull(%#v) = false", o)
		}
	}
}

func TestNativeInvokeVariadic(t *testing.T) {
	h := NewNativeHost()
	join := func(sep string, parts ...string) string { return strings.Join(parts, sep) }

	got, err := h.Invoke(join, nil, false, []Object{"-", "a", "b", "c"})
	if err != nil || got != "a-b-c" {
		t.Errorf("join = %v, %v; want a-b-c", got, err)
	}
	got, err = h.Invoke(join, nil, false, []Object{","})
	if err != nil || got != "" {
		t.Errorf("join(,) = %#v, %v; want empty", got, err)
	}
}

func TestNativeInvokeSliceArgument(t *testing.T) {
	h := NewNativeHost()
	sum := func(xs []int) int {
		total := 0
		for _, x := range xs {
			total += x
		}
		return total
	}
	got, err := h.Invoke(sum, nil, false, []Object{[]Object{int64(1), int64(2), int64(3)}})
	if err != nil || got != int64(6) {
		t.Errorf("sum = %v, %v; want 6", got, err)
	}
}

func TestNativeInvokeRecoversPanic(t *testing.T) {
	h := NewNativeHost()
	_, err := h.Invoke(func() { panic(errors.New("deep")) }, nil, false, nil)
	if err == nil || !strings.Contains(err.Error(), "deep") {
		t.Errorf("err = %v, want recovered panic", err)
	}
}

func TestNativeInvokeNotCallable(t *testing.T) {
	h := NewNativeHost()
	var nilFunc func(Object, []Object) (Object, error)
	var nilGo func(int64) int64
	for _, fn := range []Object{nil, int64(1), "f", NewRecord(), Func(nil), nilFunc, nilGo} {
		if _, err := h.Invoke(fn, nil, false, nil); !errors.Is(err, ErrNotCallable) {
			t.Errorf("Invoke(%#v): err = %v, want ErrNotCallable", fn, err)
		}
	}
}

func TestNilFuncOnBlackboardIsBadType(t *testing.T) {
	bb := NewBlackboard()
	bb.Set("f", Func(nil))
	p := NewProgram([]Operation{GetBlackBoard("f"), Call(0, false), EndTick(Success)})

	_, err := NewMachine(nil).Execute(p, bb)
	if !errors.Is(err, ErrBadType) {
		t.Fatalf("err = %v, want ErrBadType", err)
	}
	if errors.Is(err, ErrFuncCallFailed) {
		t.Errorf("err = %v, should not be a call failure", err)
	}
	if !NewNativeHost().IsNull(Func(nil)) {
		t.Error("a nil Func should be null")
	}
}
