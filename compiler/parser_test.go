package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/htn/vm"
)

// parseExpr parses src as a single expression statement and returns the
// bracketed form of its expression.
func parseExpr(t *testing.T, src string) string {
	t.Helper()
	stmts, lexErrs, err := Parse(src + ";")
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	if len(lexErrs) != 0 {
		t.Fatalf("Parse(%q) lex errors: %v", src, lexErrs)
	}
	if len(stmts) != 1 {
		t.Fatalf("Parse(%q) = %d statements, want 1", src, len(stmts))
	}
	es, ok := stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("Parse(%q) = %T, want *ExprStmt", src, stmts[0])
	}
	return es.Value.String()
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "{1 Add {2 Mul 3}}"},
		{"1 * 2 + 3", "{{1 Mul 2} Add 3}"},
		{"(1 + 2) * 3", "{{1 Add 2} Mul 3}"},
		{"a || b && c", "{a Or {b And c}}"},
		{"a && b || c", "{{a And b} Or c}"},
		{"a < b + 1", "{a Lt {b Add 1}}"},
		{"a + 1 >= b", "{{a Add 1} Gte b}"},
		{"a != b && c", "{{a Neq b} And c}"},
		{"a % 2 == 0", "{{a Mod 2} Eq 0}"},
		{"(a = b)", "{a Eq b}"},
		{"a <= b || c > d", "{{a Lte b} Or {c Gt d}}"},
	}

	for _, tc := range tests {
		if got := parseExpr(t, tc.input); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseRightAssociative(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a + b + c", "{a Add {b Add c}}"},
		{"a - b - c", "{a Sub {b Sub c}}"},
		{"a / b / c", "{a Div {b Div c}}"},
		{"a < b < c", "{a Lt {b Lt c}}"},
		{"a || b || c", "{a Or {b Or c}}"},
	}

	for _, tc := range tests {
		if got := parseExpr(t, tc.input); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseUnaryAndCoalesce(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"-a", "{Neg a}"},
		{"!a", "{Not a}"},
		{"$a", "{Dbg a}"},
		{"!!a", "{Not {Not a}}"},
		{"-a * b", "{{Neg a} Mul b}"},
		{"a * -b", "{a Mul {Neg b}}"},
		{"a ?? b", "{a ?? b}"},
		{"a ?? b ?? c", "{{a ?? b} ?? c}"},
		{"!a ?? b", "{Not {a ?? b}}"},
		{"a ?? !b", "{a ?? {Not b}}"},
		{"a ?? b + 1", "{{a ?? b} Add 1}"},
		{"a.x ?? b[0]", "{a.x ?? b[0]}"},
		{"-1", "{Neg 1}"},
	}

	for _, tc := range tests {
		if got := parseExpr(t, tc.input); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

// Prefix operators take the whole postfix chain, coalesces included, as
// their operand: !creep.busy negates the member, not creep.
func TestParsePrefixOperand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"-a.b", "{Neg a.b}"},
		{"!a.b", "{Not a.b}"},
		{"!creep.busy()", "{Not creep.busy()}"},
		{"$a[0]", "{Dbg a[0]}"},
		{"!a ?? b", "{Not {a ?? b}}"},
		{"-a.b ?? 0", "{Neg {a.b ?? 0}}"},
		{"(-a).b", "{Neg a}.b"},
	}

	for _, tc := range tests {
		if got := parseExpr(t, tc.input); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParsePostfix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a.b.c", "a.b.c"},
		{"f()", "f()"},
		{"f(1, 2)", "f(1, 2)"},
		{"f(1, 2,)", "f(1, 2)"},
		{"o.m(x)[0]", "o.m(x)[0]"},
		{"a[b][c]", "a[b][c]"},
		{"a[i + 1]", "a[{i Add 1}]"},
		{"@world.spawn(kind)", "@world.spawn(kind)"},
		{"f(g(1))", "f(g(1))"},
	}

	for _, tc := range tests {
		if got := parseExpr(t, tc.input); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"3.5", "3.5"},
		{"True", "true"},
		{"False", "false"},
		{"Null", "null"},
		{`"hi"`, `"hi"`},
		{`'raw'`, `"raw"`},
		{"[]", "[]"},
		{"[1, -2, [True, Null], 'x']", `[1, -2, [true, null], "x"]`},
		{"[1.5, -0.5,]", "[1.5, -0.5]"},
		{`{"a": 1, b: x}`, `{"a": 1, "b": x}`},
		{"{}", "{}"},
	}

	for _, tc := range tests {
		if got := parseExpr(t, tc.input); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseCallIsMethod(t *testing.T) {
	stmts, _, err := Parse("o.m(); f();")
	if err != nil {
		t.Fatal(err)
	}
	if !stmts[0].(*ExprStmt).Value.(*Call).IsMethod() {
		t.Error("o.m() should be a method call")
	}
	if stmts[1].(*ExprStmt).Value.(*Call).IsMethod() {
		t.Error("f() should not be a method call")
	}
}

func TestParseStatements(t *testing.T) {
	stmts, _, err := Parse(`
x = 1;
x == 1;
;
exit Success;
y = 2`)
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 5 {
		t.Fatalf("got %d statements, want 5", len(stmts))
	}

	if a, ok := stmts[0].(*Assign); !ok || a.Name != "x" || a.Value.String() != "1" {
		t.Errorf("stmt 0 = %#v, want x = 1", stmts[0])
	}
	if es, ok := stmts[1].(*ExprStmt); !ok || es.Value.String() != "{x Eq 1}" {
		t.Errorf("stmt 1 = %#v, want x == 1", stmts[1])
	}
	if _, ok := stmts[2].(*Noop); !ok {
		t.Errorf("stmt 2 = %T, want *Noop", stmts[2])
	}
	if e, ok := stmts[3].(*Exit); !ok || e.State != vm.Success {
		t.Errorf("stmt 3 = %#v, want exit Success", stmts[3])
	}
	if a, ok := stmts[4].(*Assign); !ok || a.Name != "y" {
		t.Errorf("stmt 4 = %#v, want y = 2", stmts[4])
	}
}

func TestParseExitStates(t *testing.T) {
	tests := []struct {
		input string
		want  vm.EndState
	}{
		{"exit Success;", vm.Success},
		{"exit Failure;", vm.Failure},
		{"exit Running;", vm.Running},
		{"exit S;", vm.Success},
		{"exit F;", vm.Failure},
		{"exit R;", vm.Running},
		{"exit C;", vm.Running},
	}

	for _, tc := range tests {
		stmts, _, err := Parse(tc.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.input, err)
			continue
		}
		if got := stmts[0].(*Exit).State; got != tc.want {
			t.Errorf("Parse(%q) state = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseIfElseChain(t *testing.T) {
	stmts, _, err := Parse(`
if a {
  x = 1;
} else if b {
  x = 2
} else {
  exit Failure
}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}

	outer := stmts[0].(*If)
	if outer.Cond.String() != "a" || len(outer.Then.Stmts) != 1 {
		t.Fatalf("outer if = %#v", outer)
	}
	if outer.Else == nil || !outer.Else.Chained || len(outer.Else.Stmts) != 1 {
		t.Fatalf("outer else = %#v, want chained block", outer.Else)
	}

	inner := outer.Else.Stmts[0].(*If)
	if inner.Cond.String() != "b" {
		t.Errorf("inner cond = %s, want b", inner.Cond)
	}
	if inner.Else == nil || inner.Else.Chained {
		t.Fatalf("inner else = %#v, want plain block", inner.Else)
	}
	if _, ok := inner.Else.Stmts[0].(*Exit); !ok {
		t.Errorf("inner else body = %T, want *Exit", inner.Else.Stmts[0])
	}
}

func TestParseSpans(t *testing.T) {
	stmts, _, err := Parse("x = 1 + 2;\n  foo.bar;")
	if err != nil {
		t.Fatal(err)
	}

	span := stmts[0].Span()
	if span.Start.Column != 1 || span.End.Column != 11 {
		t.Errorf("assignment span = %s-%s, want 1:1-1:11", span.Start, span.End)
	}
	value := stmts[0].(*Assign).Value.Span()
	if value.Start.Column != 5 || value.End.Column != 10 {
		t.Errorf("value span = %s-%s, want 1:5-1:10", value.Start, value.End)
	}
	span = stmts[1].Span()
	if span.Start.Line != 2 || span.Start.Column != 3 {
		t.Errorf("second statement starts at %s, want 2:3", span.Start)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		pos   string
		msg   string
	}{
		{"x = ;", "1:5", `expected expression, found ";"`},
		{"exit Maybe;", "1:6", `unknown end state "Maybe" (want Success, Failure or Running)`},
		{"exit 1;", "1:6", `expected end state after exit, found INT "1"`},
		{"if a { x = 1;", "1:14", "expected '}' to close block opened at 1:6"},
		{"if a x = 1;", "1:6", `expected '{', found IDENT "x"`},
		{"[a];", "1:2", `list elements must be constants, found IDENT "a"`},
		{"[-a];", "1:3", `expected number after '-', found IDENT "a"`},
		{"a b", "1:3", `expected ';', found IDENT "b"`},
		{"1 +", "1:4", "expected expression, found end of input"},
		{"f(1 2)", "1:5", `expected ')', found INT "2"`},
		{"a.1;", "1:3", `expected property name after '.', found INT "1"`},
		{"{1: 2};", "1:2", `expected object key, found INT "1"`},
		{"x = 1; y = ;", "1:12", `expected expression, found ";"`},
	}

	for _, tc := range tests {
		_, _, err := Parse(tc.input)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tc.input)
			continue
		}
		pe, ok := err.(*ParseError)
		if !ok {
			t.Errorf("Parse(%q): error type %T, want *ParseError", tc.input, err)
			continue
		}
		if pe.Pos.String() != tc.pos || pe.Msg != tc.msg {
			t.Errorf("Parse(%q) = %s: %s, want %s: %s", tc.input, pe.Pos, pe.Msg, tc.pos, tc.msg)
		}
		if !strings.HasPrefix(pe.Error(), tc.pos+": ") {
			t.Errorf("Error() = %q", pe.Error())
		}
	}
}

func TestParseRecoversFromLexErrors(t *testing.T) {
	stmts, lexErrs, err := Parse("x = 1 ~;")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(lexErrs) != 1 {
		t.Fatalf("lex errors = %v, want one", lexErrs)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements", len(stmts))
	}
}

func TestNewParserAppendsEOF(t *testing.T) {
	tokens := []Token{{Type: TokenExit}, {Type: TokenIdent, Literal: "Success"}}
	stmts, err := NewParser(tokens).ParseProgram()
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements", len(stmts))
	}

	stmts, err = NewParser(nil).ParseProgram()
	if err != nil || len(stmts) != 0 {
		t.Fatalf("empty parse = %v, %v", stmts, err)
	}
}
