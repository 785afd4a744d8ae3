package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/htn/vm"
)

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for htn scripts
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number, counted in runes
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// BinaryOp is a two-operand operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
)

var binaryOps = [...]struct {
	name   string
	symbol string
	opcode vm.Opcode
}{
	OpAdd: {"Add", "+", vm.OpAdd},
	OpSub: {"Sub", "-", vm.OpSub},
	OpMul: {"Mul", "*", vm.OpMul},
	OpDiv: {"Div", "/", vm.OpDiv},
	OpMod: {"Mod", "%", vm.OpMod},
	OpAnd: {"And", "&&", vm.OpAnd},
	OpOr:  {"Or", "||", vm.OpOr},
	OpEq:  {"Eq", "==", vm.OpEq},
	OpNeq: {"Neq", "!=", vm.OpNeq},
	OpLt:  {"Lt", "<", vm.OpLt},
	OpGt:  {"Gt", ">", vm.OpGt},
	OpLte: {"Lte", "<=", vm.OpLte},
	OpGte: {"Gte", ">=", vm.OpGte},
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOps) {
		return binaryOps[op].name
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// Symbol returns the canonical source spelling of op.
func (op BinaryOp) Symbol() string {
	return binaryOps[op].symbol
}

// Opcode returns the instruction implementing op.
func (op BinaryOp) Opcode() vm.Opcode {
	return binaryOps[op].opcode
}

// precedence returns op's binding tier: 1 binds loosest (||), 5 tightest (* / %).
func (op BinaryOp) precedence() int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte:
		return 3
	case OpAdd, OpSub:
		return 4
	default:
		return 5
	}
}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota // !
	OpNeg                // -
	OpDbg                // $
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "Not"
	case OpNeg:
		return "Neg"
	case OpDbg:
		return "Dbg"
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

// Symbol returns the source spelling of op.
func (op UnaryOp) Symbol() string {
	switch op {
	case OpNot:
		return "!"
	case OpNeg:
		return "-"
	default:
		return "$"
	}
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. String renders the tree in a
// fully bracketed debug form.
type Expr interface {
	Node
	fmt.Stringer
	expr() // marker method
}

// Literal is a constant embedded in bytecode: True, False, Null, numbers,
// strings and constant lists.
type Literal struct {
	SpanVal Span
	Value   vm.Value
}

func (n *Literal) Span() Span { return n.SpanVal }
func (n *Literal) node()      {}
func (n *Literal) expr()      {}
func (n *Literal) String() string {
	if n.Value.Kind == vm.KindString {
		return strconv.Quote(n.Value.Str)
	}
	return n.Value.String()
}

// Variable reads a blackboard entry.
type Variable struct {
	SpanVal Span
	Name    string
}

func (n *Variable) Span() Span     { return n.SpanVal }
func (n *Variable) node()          {}
func (n *Variable) expr()          {}
func (n *Variable) String() string { return n.Name }

// Global reads from the host's global namespace: @name.
type Global struct {
	SpanVal Span
	Name    string
}

func (n *Global) Span() Span     { return n.SpanVal }
func (n *Global) node()          {}
func (n *Global) expr()          {}
func (n *Global) String() string { return "@" + n.Name }

// Access reads a named property: target.field.
type Access struct {
	SpanVal Span
	Target  Expr
	Field   string
}

func (n *Access) Span() Span     { return n.SpanVal }
func (n *Access) node()          {}
func (n *Access) expr()          {}
func (n *Access) String() string { return n.Target.String() + "." + n.Field }

// Index reads target[key].
type Index struct {
	SpanVal Span
	Target  Expr
	Key     Expr
}

func (n *Index) Span() Span     { return n.SpanVal }
func (n *Index) node()          {}
func (n *Index) expr()          {}
func (n *Index) String() string { return n.Target.String() + "[" + n.Key.String() + "]" }

// Call invokes target with arguments. When target is an Access the call is a
// method call and the access target is passed as the receiver.
type Call struct {
	SpanVal Span
	Target  Expr
	Args    []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}
func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Target.String() + "(" + strings.Join(args, ", ") + ")"
}

// IsMethod reports whether the call passes a receiver.
func (n *Call) IsMethod() bool {
	_, ok := n.Target.(*Access)
	return ok
}

// Binary is lhs op rhs.
type Binary struct {
	SpanVal Span
	Left    Expr
	Op      BinaryOp
	Right   Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}
func (n *Binary) String() string {
	return "{" + n.Left.String() + " " + n.Op.String() + " " + n.Right.String() + "}"
}

// Unary is a prefix operator applied to an operand.
type Unary struct {
	SpanVal Span
	Op      UnaryOp
	Operand Expr
}

func (n *Unary) Span() Span     { return n.SpanVal }
func (n *Unary) node()          {}
func (n *Unary) expr()          {}
func (n *Unary) String() string { return "{" + n.Op.String() + " " + n.Operand.String() + "}" }

// NullCoalesce is lhs ?? rhs: rhs is evaluated only when lhs is null.
type NullCoalesce struct {
	SpanVal Span
	Left    Expr
	Right   Expr
}

func (n *NullCoalesce) Span() Span { return n.SpanVal }
func (n *NullCoalesce) node()      {}
func (n *NullCoalesce) expr()      {}
func (n *NullCoalesce) String() string {
	return "{" + n.Left.String() + " ?? " + n.Right.String() + "}"
}

// ObjectField is one key of an object literal.
type ObjectField struct {
	Key   string
	Value Expr
}

// Object builds a fresh host object: { "key": expr, ... }. Fields keep
// declaration order.
type Object struct {
	SpanVal Span
	Fields  []ObjectField
}

func (n *Object) Span() Span { return n.SpanVal }
func (n *Object) node()      {}
func (n *Object) expr()      {}
func (n *Object) String() string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		parts[i] = strconv.Quote(f.Key) + ": " + f.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Assign stores a value on the blackboard: name = expr;
type Assign struct {
	SpanVal Span
	Name    string
	Value   Expr
}

func (n *Assign) Span() Span { return n.SpanVal }
func (n *Assign) node()      {}
func (n *Assign) stmt()      {}

// ExprStmt evaluates an expression and discards the result: expr;
type ExprStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Block is a braced statement list.
type Block struct {
	SpanVal Span
	Stmts   []Stmt

	// Chained marks the implicit block wrapping the If of an "else if".
	Chained bool
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}

// If is if cond { ... } else { ... }. Else is nil when absent.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    *Block
	Else    *Block
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// Exit ends the tick with a state: exit Success;
type Exit struct {
	SpanVal Span
	State   vm.EndState
}

func (n *Exit) Span() Span { return n.SpanVal }
func (n *Exit) node()      {}
func (n *Exit) stmt()      {}

// Noop is an empty statement: a stray ';'.
type Noop struct {
	SpanVal Span
}

func (n *Noop) Span() Span { return n.SpanVal }
func (n *Noop) node()      {}
func (n *Noop) stmt()      {}
