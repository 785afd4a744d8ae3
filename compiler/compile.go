package compiler

import (
	"github.com/chazu/htn/vm"
)

// Compile runs the full pipeline over src: lex, parse, emit. Lex errors are
// recovered and do not stop compilation; use Check to see them.
func Compile(src string) (*vm.Program, error) {
	ops, err := CompileOps(src)
	if err != nil {
		return nil, err
	}
	return vm.NewProgram(ops), nil
}

// CompileOps compiles src to its operation vector.
func CompileOps(src string) ([]vm.Operation, error) {
	stmts, _, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Emit(stmts), nil
}

// MustCompile is like Compile but panics on error. It is meant for programs
// embedded in Go source.
func MustCompile(src string) *vm.Program {
	p, err := Compile(src)
	if err != nil {
		panic("compiler: " + err.Error())
	}
	return p
}

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a problem found in source text.
type Diagnostic struct {
	Severity Severity
	Pos      Position
	End      Position
	Msg      string
}

func (d Diagnostic) String() string {
	return d.Pos.String() + ": " + d.Severity.String() + ": " + d.Msg
}

// Check compiles src and reports every problem without producing a program.
// Dropped tokens are warnings since lexing recovers from them; a parse
// failure is an error.
func Check(src string) []Diagnostic {
	_, lexErrs, err := Parse(src)

	var diags []Diagnostic
	for _, le := range lexErrs {
		diags = append(diags, Diagnostic{Severity: SeverityWarning, Pos: le.Pos, End: le.End, Msg: le.Msg})
	}
	if pe, ok := err.(*ParseError); ok {
		diags = append(diags, Diagnostic{Severity: SeverityError, Pos: pe.Pos, End: pe.End, Msg: pe.Msg})
	}
	return diags
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
