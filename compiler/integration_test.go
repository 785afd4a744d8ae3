package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/htn/vm"
)

// Integration tests: compile and execute scripts against a blackboard

func run(t *testing.T, src string, bb *vm.Blackboard) (vm.EndState, error) {
	t.Helper()
	p, err := Compile(src)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if bb == nil {
		bb = vm.NewBlackboard()
	}
	return vm.NewMachine(nil).Execute(p, bb)
}

func mustRun(t *testing.T, src string, bb *vm.Blackboard) vm.EndState {
	t.Helper()
	state, err := run(t, src, bb)
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return state
}

func TestIntegrationExit(t *testing.T) {
	if state := mustRun(t, "exit Success;", nil); state != vm.Success {
		t.Errorf("state = %v, want Success", state)
	}
	if state := mustRun(t, "x = 1; exit Running; exit Failure;", nil); state != vm.Running {
		t.Errorf("state = %v, want Running", state)
	}
}

func TestIntegrationRunsOffTheEnd(t *testing.T) {
	_, err := run(t, "1 + 2;", nil)
	if !errors.Is(err, vm.ErrOutOfOps) {
		t.Fatalf("err = %v, want ErrOutOfOps", err)
	}
	var ee *vm.ExecError
	if !errors.As(err, &ee) || ee.IP != 4 {
		t.Errorf("err = %#v, want IP 4", err)
	}
}

func TestIntegrationNullCoalesce(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Object
	}{
		{"y = Null ?? 5; exit Success;", int64(5)},
		{"y = 3 ?? 5; exit Success;", int64(3)},
		{"y = Null ?? Null ?? 'last'; exit Success;", "last"},
		{"y = False ?? 1; exit Success;", false},
		{"y = nothing.here ?? 7; exit Success;", int64(7)},
	}

	for _, tc := range tests {
		bb := vm.NewBlackboard()
		if state := mustRun(t, tc.src, bb); state != vm.Success {
			t.Errorf("%q: state = %v", tc.src, state)
		}
		if got, _ := bb.Get("y"); got != tc.want {
			t.Errorf("%q: y = %#v, want %#v", tc.src, got, tc.want)
		}
	}
}

func TestIntegrationConditional(t *testing.T) {
	src := `
if ready {
  exit Success;
} else {
  exit Failure;
}`
	tests := []struct {
		ready vm.Object
		want  vm.EndState
	}{
		{true, vm.Success},
		{false, vm.Failure},
		{int64(0), vm.Failure},
		{"yes", vm.Success},
		{nil, vm.Failure},
	}

	for _, tc := range tests {
		bb := vm.NewBlackboard()
		bb.Set("ready", tc.ready)
		if state := mustRun(t, src, bb); state != tc.want {
			t.Errorf("ready=%v: state = %v, want %v", tc.ready, state, tc.want)
		}
	}
}

func TestIntegrationElseIfChain(t *testing.T) {
	src := `
if hp > 50 {
  mode = "fight";
} else if hp > 10 {
  mode = "flee";
} else {
  mode = "hide";
}
exit Success;`
	tests := []struct {
		hp   int64
		want string
	}{
		{80, "fight"},
		{30, "flee"},
		{5, "hide"},
	}

	for _, tc := range tests {
		bb := vm.NewBlackboard()
		bb.Set("hp", tc.hp)
		mustRun(t, src, bb)
		if got, _ := bb.Get("mode"); got != tc.want {
			t.Errorf("hp=%d: mode = %v, want %s", tc.hp, got, tc.want)
		}
	}
}

func TestIntegrationArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want vm.Object
	}{
		{"1 + 2 * 3", int64(7)},
		{"(1 + 2) * 3", int64(9)},
		{"10 - 4 - 3", int64(9)}, // right-associative: 10 - (4 - 3)
		{"-5 * 2", int64(-10)},
		{"7 % 3", int64(1)},
		{"7 / 2", 3.5},
		{"1.5 + 1", 2.5},
		{`"a" + "b"`, "ab"},
		{"1 < 2 && 2 < 3", true},
		{"1 == 1.0", true},
		{"!0", true},
	}

	for _, tc := range tests {
		bb := vm.NewBlackboard()
		mustRun(t, "x = "+tc.expr+"; exit Success;", bb)
		if got, _ := bb.Get("x"); got != tc.want {
			t.Errorf("%s = %#v, want %#v", tc.expr, got, tc.want)
		}
	}
}

func TestIntegrationObjectsAndLists(t *testing.T) {
	bb := vm.NewBlackboard()
	mustRun(t, `
o = {"name": "goblin", hp: 3 + 4};
hp = o.hp;
items = [1, "two", [3]];
second = items[1];
exit Success;`, bb)

	o, _ := bb.Get("o")
	rec, ok := o.(*vm.Record)
	if !ok {
		t.Fatalf("o = %#v, want *vm.Record", o)
	}
	if keys := fmt.Sprint(rec.Keys()); keys != "[name hp]" {
		t.Errorf("keys = %s, want [name hp]", keys)
	}
	if hp, _ := bb.Get("hp"); hp != int64(7) {
		t.Errorf("hp = %#v, want 7", hp)
	}
	if second, _ := bb.Get("second"); second != "two" {
		t.Errorf("second = %#v, want two", second)
	}
}

func TestIntegrationCalls(t *testing.T) {
	bb := vm.NewBlackboard()
	bb.Set("double", func(n int64) int64 { return n * 2 })

	creep := vm.NewRecord()
	creep.Set("name", "worker")
	creep.Set("greet", vm.Func(func(this vm.Object, args []vm.Object) (vm.Object, error) {
		name, _ := this.(*vm.Record).Get("name")
		return fmt.Sprintf("%s, %v", args[0], name), nil
	}))
	bb.Set("creep", creep)

	mustRun(t, `
d = double(21);
g = creep.greet("hello");
exit Success;`, bb)

	if d, _ := bb.Get("d"); d != int64(42) {
		t.Errorf("d = %#v, want 42", d)
	}
	if g, _ := bb.Get("g"); g != "hello, worker" {
		t.Errorf("g = %#v", g)
	}
}

func TestIntegrationCallFailure(t *testing.T) {
	bb := vm.NewBlackboard()
	boom := errors.New("boom")
	bb.Set("fail", func() error { return boom })

	_, err := run(t, "fail();", bb)
	if !errors.Is(err, vm.ErrFuncCallFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want call failure wrapping boom", err)
	}
}

func TestIntegrationGlobals(t *testing.T) {
	p := MustCompile("t = @time + 1; exit Success;")
	host := vm.NewNativeHost()
	host.Globals["time"] = int64(41)

	bb := vm.NewBlackboard()
	if _, err := vm.NewMachine(host).Execute(p, bb); err != nil {
		t.Fatal(err)
	}
	if got, _ := bb.Get("t"); got != int64(42) {
		t.Errorf("t = %#v, want 42", got)
	}
}

func TestIntegrationBlackboardPersistsAcrossTicks(t *testing.T) {
	p := MustCompile(`
count = (count ?? 0) + 1;
if count >= 3 { exit Success; }
exit Running;`)
	m := vm.NewMachine(nil)
	bb := vm.NewBlackboard()
	bb.Set("count", nil)

	var states []vm.EndState
	for i := 0; i < 3; i++ {
		state, err := m.Execute(p, bb)
		if err != nil {
			t.Fatal(err)
		}
		states = append(states, state)
	}
	if fmt.Sprint(states) != "[Running Running Success]" {
		t.Errorf("states = %v", states)
	}
}
