package conformance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/htn/compiler"
	"github.com/chazu/htn/vm"
)

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner executes conformance tests
type Runner struct {
	// Trace logs every dispatched operation through the htn.vm logger.
	Trace bool
}

// NewRunner creates a new test runner
func NewRunner() *Runner {
	return &Runner{}
}

// errorNames maps the names used in expect.error to the errors they denote.
var errorNames = map[string]error{
	"StackUnderflow": vm.ErrStackUnderflow,
	"FuncNotFound":   vm.ErrFuncNotFound,
	"FuncCallFailed": vm.ErrFuncCallFailed,
	"BadType":        vm.ErrBadType,
	"OutOfOps":       vm.ErrOutOfOps,
	"TooLong":        vm.ErrProgramTooLong,
}

// Fixtures are the host objects a test can place on its blackboard by name.
// Each call builds a fresh object.
var Fixtures = map[string]func() vm.Object{
	"double": func() vm.Object {
		return func(n int64) int64 { return n * 2 }
	},
	"join": func() vm.Object {
		return vm.Func(func(this vm.Object, args []vm.Object) (vm.Object, error) {
			host := vm.NewNativeHost()
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = host.Describe(a)
			}
			return strings.Join(parts, "-"), nil
		})
	},
	"fail": func() vm.Object {
		return func() error { return errors.New("host failure") }
	},
	"explode": func() vm.Object {
		return func() { panic("kaboom") }
	},
	"creep": func() vm.Object {
		pos := vm.NewRecord()
		pos.Set("x", int64(3))
		pos.Set("y", int64(4))
		creep := vm.NewRecord()
		creep.Set("name", "worker")
		creep.Set("hp", int64(10))
		creep.Set("pos", pos)
		creep.Set("moveTo", vm.Func(func(this vm.Object, args []vm.Object) (vm.Object, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("moveTo takes 1 argument, got %d", len(args))
			}
			this.(*vm.Record).Set("pos", args[0])
			return "moving", nil
		}))
		creep.Set("greet", vm.Func(func(this vm.Object, args []vm.Object) (vm.Object, error) {
			name, _ := this.(*vm.Record).Get("name")
			return fmt.Sprintf("%v, %v", args[0], name), nil
		}))
		return creep
	},
}

// Run executes a single test case
func (r *Runner) Run(test LoadedTest) TestResult {
	// Check if test should be skipped
	if skipped, reason := test.Test.IsSkipped(); skipped {
		return TestResult{
			Test:       test,
			Skipped:    true,
			SkipReason: reason,
		}
	}

	err := r.run(test)
	return TestResult{
		Test:   test,
		Passed: err == nil,
		Error:  err,
	}
}

// RunAll executes all loaded tests
func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	results := make([]TestResult, len(tests))
	for i, test := range tests {
		results[i] = r.Run(test)
	}
	return results
}

func (r *Runner) run(test LoadedTest) error {
	tc := test.Test
	expect := tc.Expect

	p, err := compiler.Compile(tc.Source)
	if err != nil {
		if expect.Error == "ParseError" {
			return checkMessage(expect, err)
		}
		return fmt.Errorf("compile error: %w", err)
	}
	if len(expect.Ops) > 0 {
		if err := checkOps(expect.Ops, p); err != nil {
			return err
		}
	}
	if err := p.Validate(tc.MaxOps); err != nil {
		return checkError(expect, err)
	}
	if expect.Error == "ParseError" {
		return fmt.Errorf("expected a parse error, program compiled to %d operations", p.Len())
	}

	host := vm.NewNativeHost()
	if test.Suite != nil {
		for k, v := range test.Suite.Globals.Map() {
			host.Globals[k] = v
		}
	}
	for k, v := range tc.Globals.Map() {
		host.Globals[k] = v
	}

	bb := vm.NewBlackboard()
	var fixtures []string
	if test.Suite != nil {
		fixtures = append(fixtures, test.Suite.Fixtures...)
	}
	for _, name := range append(fixtures, tc.Fixtures...) {
		build, ok := Fixtures[name]
		if !ok {
			return fmt.Errorf("unknown fixture %q", name)
		}
		bb.Set(name, build())
	}
	for _, k := range tc.Blackboard.Keys {
		bb.Set(k, tc.Blackboard.Objects[k])
	}

	var debug []string
	m := vm.NewMachine(host)
	m.Trace = r.Trace
	m.OnDebug = func(text string) { debug = append(debug, text) }

	ticks := tc.Ticks
	if ticks <= 0 {
		ticks = 1
	}
	var states []string
	var tickErr error
	for i := 0; i < ticks; i++ {
		state, err := m.Tick(p, bb, tc.Bindings.Map())
		if err != nil {
			tickErr = err
			break
		}
		states = append(states, state.String())
	}

	if tickErr != nil || expect.Error != "" {
		if err := checkError(expect, tickErr); err != nil {
			return err
		}
	}
	if err := checkStates(expect, states); err != nil {
		return err
	}
	if err := checkBlackboard(expect, bb); err != nil {
		return err
	}
	if expect.Debug != nil && strings.Join(expect.Debug, "\n") != strings.Join(debug, "\n") {
		return fmt.Errorf("debug output %q, want %q", debug, expect.Debug)
	}
	return nil
}

// checkError compares a failure with expect.error, expect.message and
// expect.ip.
func checkError(expect Expectation, err error) error {
	if expect.Error == "" {
		return fmt.Errorf("unexpected error: %w", err)
	}
	if err == nil {
		return fmt.Errorf("expected error %s, got none", expect.Error)
	}
	want, ok := errorNames[expect.Error]
	if !ok {
		return fmt.Errorf("unknown error name: %s", expect.Error)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("expected error %s, got %v", expect.Error, err)
	}
	if expect.IP != nil {
		var ee *vm.ExecError
		if !errors.As(err, &ee) || ee.IP != *expect.IP {
			return fmt.Errorf("expected failure at operation %d, got %v", *expect.IP, err)
		}
	}
	return checkMessage(expect, err)
}

func checkMessage(expect Expectation, err error) error {
	if expect.Message != "" && !strings.Contains(err.Error(), expect.Message) {
		return fmt.Errorf("error %q does not mention %q", err, expect.Message)
	}
	return nil
}

func checkOps(want []string, p *vm.Program) error {
	ops := p.Ops()
	got := make([]string, len(ops))
	for i, op := range ops {
		got[i] = op.String()
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		return fmt.Errorf("compiled to:\n  %s\nwant:\n  %s",
			strings.Join(got, "\n  "), strings.Join(want, "\n  "))
	}
	return nil
}

func checkStates(expect Expectation, states []string) error {
	if expect.State != "" {
		want, ok := vm.ParseEndState(expect.State)
		if !ok {
			return fmt.Errorf("unknown end state: %s", expect.State)
		}
		if len(states) == 0 || states[len(states)-1] != want.String() {
			return fmt.Errorf("expected state %s, got %v", want, states)
		}
	}
	if expect.States != nil {
		if len(states) != len(expect.States) {
			return fmt.Errorf("expected states %v, got %v", expect.States, states)
		}
		for i, s := range expect.States {
			want, ok := vm.ParseEndState(s)
			if !ok {
				return fmt.Errorf("unknown end state: %s", s)
			}
			if states[i] != want.String() {
				return fmt.Errorf("tick %d: expected state %s, got %s", i+1, want, states[i])
			}
		}
	}
	return nil
}

func checkBlackboard(expect Expectation, bb *vm.Blackboard) error {
	host := vm.NewNativeHost()
	for _, k := range expect.Blackboard.Keys {
		want := expect.Blackboard.Objects[k]
		got, ok := bb.Get(k)
		if !ok {
			return fmt.Errorf("blackboard has no %s, want %s", k, host.Describe(want))
		}
		if !vm.Equal(got, want) {
			return fmt.Errorf("blackboard %s = %s, want %s", k, host.Describe(got), host.Describe(want))
		}
	}
	for _, k := range expect.Absent {
		if v, ok := bb.Get(k); ok {
			return fmt.Errorf("blackboard %s = %s, want it absent", k, host.Describe(v))
		}
	}
	return nil
}

// SummaryStats computes statistics from test results
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		if r.Skipped {
			stats.Skipped++
		} else if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}
