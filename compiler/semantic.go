package compiler

import (
	"fmt"
	"math"

	"github.com/chazu/htn/vm"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: checks on a parsed program
// ---------------------------------------------------------------------------

// SemanticAnalyzer looks for likely mistakes in a program that parses:
// unreachable statements, constant conditions, self-assignments, calls of
// literals and reads of names nothing assigns. Every finding is a warning
// since the host may legitimately supply any blackboard entry.
type SemanticAnalyzer struct {
	diags []Diagnostic

	// Names the host is known to provide, such as tick bindings.
	known map[string]bool

	// Names assigned anywhere in the program.
	assigned map[string]bool

	// Names already reported as unassigned.
	reported map[string]bool
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	return &SemanticAnalyzer{
		known:    make(map[string]bool),
		assigned: make(map[string]bool),
		reported: make(map[string]bool),
	}
}

// AddKnownName marks name as provided by the host.
func (s *SemanticAnalyzer) AddKnownName(name string) {
	s.known[name] = true
}

// Diagnostics returns the accumulated warnings.
func (s *SemanticAnalyzer) Diagnostics() []Diagnostic {
	return s.diags
}

func (s *SemanticAnalyzer) warnAt(node Node, format string, args ...any) {
	span := node.Span()
	s.diags = append(s.diags, Diagnostic{
		Severity: SeverityWarning,
		Pos:      span.Start,
		End:      span.End,
		Msg:      fmt.Sprintf(format, args...),
	})
}

// AnalyzeProgram checks a whole program.
func (s *SemanticAnalyzer) AnalyzeProgram(stmts []Stmt) {
	s.collectAssignments(stmts)
	s.analyzeStatements(stmts)
}

func (s *SemanticAnalyzer) collectAssignments(stmts []Stmt) {
	for _, stmt := range stmts {
		switch st := stmt.(type) {
		case *Assign:
			s.assigned[st.Name] = true
		case *If:
			s.collectAssignments(st.Then.Stmts)
			if st.Else != nil {
				s.collectAssignments(st.Else.Stmts)
			}
		}
	}
}

// analyzeStatements analyzes a statement list and reports the first
// statement that can never run.
func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		s.analyzeStmt(stmt)
	}
	s.checkUnreachableCode(stmts)
}

func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *Assign:
		if v, ok := st.Value.(*Variable); ok && v.Name == st.Name {
			s.warnAt(st, "assigning %s to itself has no effect", st.Name)
		}
		s.analyzeExpr(st.Value)
	case *ExprStmt:
		s.analyzeExpr(st.Value)
	case *If:
		s.analyzeExpr(st.Cond)
		if lit, ok := st.Cond.(*Literal); ok {
			s.warnAt(lit, "condition is always %t", literalTruthy(lit.Value))
		}
		s.analyzeStatements(st.Then.Stmts)
		if st.Else != nil {
			s.analyzeStatements(st.Else.Stmts)
		}
	}
}

func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case *Variable:
		s.checkVariableAssigned(e)
	case *Access:
		s.analyzeExpr(e.Target)
	case *Index:
		s.analyzeExpr(e.Target)
		s.analyzeExpr(e.Key)
	case *Call:
		if _, ok := e.Target.(*Literal); ok {
			s.warnAt(e, "calling a literal always fails")
		}
		s.analyzeExpr(e.Target)
		for _, arg := range e.Args {
			s.analyzeExpr(arg)
		}
	case *Binary:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *Unary:
		s.analyzeExpr(e.Operand)
	case *NullCoalesce:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *Object:
		for _, f := range e.Fields {
			s.analyzeExpr(f.Value)
		}
	// Literals and globals don't need checking
	case *Literal, *Global:
	}
}

// checkVariableAssigned reports the first read of a name that the program
// never assigns and the host is not known to provide.
func (s *SemanticAnalyzer) checkVariableAssigned(v *Variable) {
	name := v.Name
	if s.assigned[name] || s.known[name] || s.reported[name] {
		return
	}
	s.reported[name] = true
	s.warnAt(v, "%s is never assigned here (assuming the host provides it)", name)
}

// checkUnreachableCode checks for code after a statement that always ends
// the tick.
func (s *SemanticAnalyzer) checkUnreachableCode(stmts []Stmt) {
	for i, stmt := range stmts {
		if !terminates(stmt) {
			continue
		}
		for _, next := range stmts[i+1:] {
			if _, noop := next.(*Noop); !noop {
				s.warnAt(next, "unreachable code after exit")
				return // Only warn once
			}
		}
		return
	}
}

// terminates reports whether stmt always ends the tick: an exit, or an if
// whose branches both end in one.
func terminates(stmt Stmt) bool {
	switch st := stmt.(type) {
	case *Exit:
		return true
	case *If:
		return st.Else != nil && blockTerminates(st.Then) && blockTerminates(st.Else)
	}
	return false
}

func blockTerminates(b *Block) bool {
	for _, stmt := range b.Stmts {
		if terminates(stmt) {
			return true
		}
	}
	return false
}

// literalTruthy mirrors the native host's truthiness for constants.
func literalTruthy(v vm.Value) bool {
	switch v.Kind {
	case vm.KindNull:
		return false
	case vm.KindBool:
		return v.Bool
	case vm.KindInt:
		return v.Int != 0
	case vm.KindFloat:
		return v.Float != 0 && !math.IsNaN(float64(v.Float))
	case vm.KindString:
		return v.Str != ""
	}
	return true
}

// ---------------------------------------------------------------------------
// Integration with Check
// ---------------------------------------------------------------------------

// Analyze runs semantic analysis on parsed statements. known lists names the
// host provides.
func Analyze(stmts []Stmt, known []string) []Diagnostic {
	analyzer := NewSemanticAnalyzer()
	for _, name := range known {
		analyzer.AddKnownName(name)
	}
	analyzer.AnalyzeProgram(stmts)
	return analyzer.Diagnostics()
}

// Vet is Check followed, when src parses, by semantic analysis.
func Vet(src string, known []string) []Diagnostic {
	diags := Check(src)
	if HasErrors(diags) {
		return diags
	}
	stmts, _, err := Parse(src)
	if err != nil {
		return diags
	}
	return append(diags, Analyze(stmts, known)...)
}
