package vm

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRecordKeepsInsertionOrder(t *testing.T) {
	r := NewRecord()
	r.Set("b", int64(1))
	r.Set("a", int64(2))
	r.Set("b", int64(3))
	r.Delete("missing")

	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("keys = %v, want [b a]", keys)
	}
	if v, _ := r.Get("b"); v != int64(3) {
		t.Errorf("b = %v, want 3", v)
	}
	if !r.Delete("b") || r.Has("b") || r.Len() != 1 {
		t.Errorf("Delete(b) left %v", r.Keys())
	}
}

func TestRecordJSON(t *testing.T) {
	inner := NewRecord()
	inner.Set("z", true)
	r := NewRecord()
	r.Set("name", "orc")
	r.Set("hp", int64(7))
	r.Set("pos", []Object{1.5, int64(2)})
	r.Set("inner", inner)
	r.Set("fn", Func(nil))

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"orc","hp":7,"pos":[1.5,2],"inner":{"z":true},"fn":null}`
	if string(data) != want {
		t.Errorf("json = %s\nwant   %s", data, want)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if keys := back.Keys(); len(keys) != 5 || keys[0] != "name" || keys[4] != "fn" {
		t.Errorf("keys = %v", keys)
	}
	if v, _ := back.Get("hp"); v != int64(7) {
		t.Errorf("hp = %#v, want int64 7", v)
	}
	pos, _ := back.Get("pos")
	if list, ok := pos.([]Object); !ok || list[0] != 1.5 || list[1] != int64(2) {
		t.Errorf("pos = %#v", pos)
	}
	in, _ := back.Get("inner")
	if rec, ok := in.(*Record); !ok || !rec.Has("z") {
		t.Errorf("inner = %#v", in)
	}
}

func TestDecodeJSONScalars(t *testing.T) {
	tests := []struct {
		in   string
		want Object
	}{
		{`null`, nil},
		{`true`, true},
		{`"s"`, "s"},
		{`3`, int64(3)},
		{`3.25`, 3.25},
	}
	for _, tt := range tests {
		got, err := DecodeJSON([]byte(tt.in))
		if err != nil {
			t.Fatalf("DecodeJSON(%s): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("DecodeJSON(%s) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestBlackboardBindOverwritesAndRestores(t *testing.T) {
	bb := NewBlackboard()
	bb.Set("a", int64(1))
	restore := bb.Bind(map[string]Object{"a": int64(2), "b": "tmp"})

	if v, _ := bb.Get("a"); v != int64(2) {
		t.Errorf("a = %v during binding, want 2", v)
	}
	restore()
	if v, _ := bb.Get("a"); v != int64(1) {
		t.Errorf("a = %v after restore, want 1", v)
	}
	if _, ok := bb.Get("b"); ok {
		t.Error("b survived restore")
	}
	if keys := bb.Keys(); len(keys) != 1 || keys[0] != "a" {
		t.Errorf("keys = %v, want [a]", keys)
	}
}

func TestBlackboardBindOrder(t *testing.T) {
	bindings := map[string]Object{"zeta": 1, "alpha": 2, "mid": 3, "beta": 4, "omega": 5, "kappa": 6}
	for i := 0; i < 20; i++ {
		bb := NewBlackboard()
		bb.Set("self", "creep")
		bb.Set("kappa", 0)
		restore := bb.Bind(bindings)

		got := strings.Join(bb.Keys(), ",")
		if want := "self,kappa,alpha,beta,mid,omega,zeta"; got != want {
			t.Fatalf("keys during binding = %s, want %s", got, want)
		}
		restore()
		if got := strings.Join(bb.Keys(), ","); got != "self,kappa" {
			t.Fatalf("keys after restore = %s", got)
		}
	}
}
