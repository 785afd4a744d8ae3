package conformance

import (
	"sort"
	"strings"
	"testing"

	"github.com/chazu/htn/vm"
)

func TestConformance(t *testing.T) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		t.Fatalf("Failed to load tests: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("No tests loaded")
	}

	results := NewRunner().RunAll(tests)
	stats := ComputeStats(results)

	// Group results by file for organized output
	fileGroups := make(map[string][]TestResult)
	var files []string
	for _, result := range results {
		if _, ok := fileGroups[result.Test.File]; !ok {
			files = append(files, result.Test.File)
		}
		fileGroups[result.Test.File] = append(fileGroups[result.Test.File], result)
	}
	sort.Strings(files)

	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			for _, result := range fileGroups[file] {
				t.Run(result.Test.Test.Name, func(t *testing.T) {
					if result.Skipped {
						t.Skipf("Skipped: %s", result.SkipReason)
					} else if !result.Passed {
						t.Errorf("Test failed: %v\nsource: %s", result.Error, result.Test.Test.Source)
					}
				})
			}
		})
	}

	t.Logf("\n=== Summary ===\n%s", FormatStats(stats))
}

func TestLoadAllTests(t *testing.T) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		t.Fatalf("Failed to load tests: %v", err)
	}
	t.Logf("Loaded %d test cases", len(tests))

	if len(tests) < 80 {
		t.Errorf("Expected at least 80 tests, got %d", len(tests))
	}
	for _, lt := range tests {
		if lt.Suite == nil || lt.Suite.Name == "" {
			t.Errorf("%s: suite has no name", lt.File)
		}
		if strings.Contains(lt.File, "/") {
			t.Errorf("file %q should be relative to the test directory", lt.File)
		}
	}
}

func TestParseSuiteKeepsOrder(t *testing.T) {
	suite, err := ParseSuite([]byte(`
name: order
tests:
  - name: t
    source: exit S;
    blackboard:
      zeta: 1
      alpha: {b: 2, a: [1, 2.5, null, "s"]}
      mid: true
`))
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}
	bb := suite.Tests[0].Blackboard
	if got := strings.Join(bb.Keys, ","); got != "zeta,alpha,mid" {
		t.Errorf("keys = %s, want zeta,alpha,mid", got)
	}
	if bb.Len() != 3 {
		t.Errorf("Len = %d, want 3", bb.Len())
	}

	rec, ok := bb.Objects["alpha"].(*vm.Record)
	if !ok {
		t.Fatalf("alpha = %T, want *vm.Record", bb.Objects["alpha"])
	}
	if got := strings.Join(rec.Keys(), ","); got != "b,a" {
		t.Errorf("record keys = %s, want b,a", got)
	}
	a, _ := rec.Get("a")
	want := []vm.Object{int64(1), 2.5, nil, "s"}
	if !vm.Equal(a, want) {
		t.Errorf("alpha.a = %v, want %v", a, want)
	}
	if bb.Objects["zeta"] != int64(1) {
		t.Errorf("zeta = %#v, want int64(1)", bb.Objects["zeta"])
	}
	if bb.Objects["mid"] != true {
		t.Errorf("mid = %#v, want true", bb.Objects["mid"])
	}
}

func TestParseSuiteErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: s\ntests:\n  - name: t\n    sauce: exit S;\n", "sauce"},
		{"unnamed test", "name: s\ntests:\n  - source: exit S;\n", "no name"},
		{"blackboard not a mapping", "name: s\ntests:\n  - name: t\n    blackboard: [1]\n", "expected a mapping"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestIsSkipped(t *testing.T) {
	tests := []struct {
		skip       any
		want       bool
		wantReason string
	}{
		{nil, false, ""},
		{false, false, ""},
		{true, true, "skipped"},
		{"not yet", true, "not yet"},
	}
	for _, tc := range tests {
		c := TestCase{Skip: tc.skip}
		got, reason := c.IsSkipped()
		if got != tc.want || reason != tc.wantReason {
			t.Errorf("IsSkipped(%v) = %v, %q; want %v, %q", tc.skip, got, reason, tc.want, tc.wantReason)
		}
	}
}

func TestRunnerReportsMismatches(t *testing.T) {
	suite, err := ParseSuite([]byte(`
name: wrong
tests:
  - name: wrong value
    source: x = 1; exit S;
    expect:
      blackboard: {x: 2}
  - name: wrong state
    source: exit S;
    expect:
      state: Failure
  - name: missing error
    source: exit S;
    expect:
      error: BadType
  - name: unexpected error
    source: x = 1;
  - name: wrong ops
    source: exit S;
    expect:
      ops: [END_TICK Failure]
  - name: unknown fixture
    source: exit S;
    fixtures: [nope]
  - name: should be absent
    source: x = 1; exit S;
    expect:
      absent: [x]
  - name: skipped
    skip: later
    source: this does not parse (
`))
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}

	var tests []LoadedTest
	for _, tc := range suite.Tests {
		tests = append(tests, LoadedTest{File: "wrong.yaml", Suite: suite, Test: tc})
	}
	results := NewRunner().RunAll(tests)

	wants := []string{
		"blackboard x = 1, want 2",
		"expected state Failure",
		"expected error BadType, got none",
		"unexpected error",
		"compiled to",
		"unknown fixture",
		"want it absent",
	}
	for i, want := range wants {
		r := results[i]
		if r.Passed || r.Error == nil {
			t.Errorf("%s: passed, want a failure", r.Test.Test.Name)
			continue
		}
		if !strings.Contains(r.Error.Error(), want) {
			t.Errorf("%s: error %q does not mention %q", r.Test.Test.Name, r.Error, want)
		}
	}
	last := results[len(results)-1]
	if !last.Skipped || last.SkipReason != "later" {
		t.Errorf("skipped test = %+v", last)
	}

	stats := ComputeStats(results)
	if stats.Failed != 7 || stats.Skipped != 1 || stats.Passed != 0 || stats.Total != 8 {
		t.Errorf("stats = %+v", stats)
	}
	if got := FormatStats(stats); got != "0 passed, 7 failed, 1 skipped (8 total)" {
		t.Errorf("FormatStats = %q", got)
	}
}
