package compiler

import (
	"fmt"

	"github.com/chazu/htn/vm"
)

// ---------------------------------------------------------------------------
// Code generation: statements to a flat operation vector
// ---------------------------------------------------------------------------

// Emit lowers statements to bytecode in a single pass. Branches are emitted
// before the jump that guards them, so every skip operand is the known,
// forward length of code already generated and no back-patching is needed.
func Emit(stmts []Stmt) []vm.Operation {
	var ops []vm.Operation
	for _, s := range stmts {
		ops = append(ops, EmitStmt(s)...)
	}
	return ops
}

// EmitStmt lowers one statement.
func EmitStmt(s Stmt) []vm.Operation {
	switch s := s.(type) {
	case *Assign:
		return append(EmitExpr(s.Value), vm.SetBlackBoard(s.Name))

	case *ExprStmt:
		return append(EmitExpr(s.Value), vm.Pop(1))

	case *Exit:
		return []vm.Operation{vm.EndTick(s.State)}

	case *Noop:
		return nil

	case *If:
		then := Emit(s.Then.Stmts)
		var els []vm.Operation
		skip := len(then)
		if s.Else != nil {
			els = Emit(s.Else.Stmts)
			skip++
		}

		ops := EmitExpr(s.Cond)
		ops = append(ops, vm.SkipIf(uint32(skip), true))
		ops = append(ops, then...)
		if s.Else != nil {
			ops = append(ops, vm.Skip(uint32(len(els))))
			ops = append(ops, els...)
		}
		return ops
	}
	panic(fmt.Sprintf("compiler: unknown statement %T", s))
}

// EmitExpr lowers an expression in post-order: operands are pushed before the
// operation that consumes them, left operand first.
func EmitExpr(e Expr) []vm.Operation {
	switch e := e.(type) {
	case *Literal:
		return []vm.Operation{vm.Push(e.Value)}

	case *Variable:
		return []vm.Operation{vm.GetBlackBoard(e.Name)}

	case *Global:
		return []vm.Operation{vm.GetGlobal(e.Name)}

	case *Access:
		return append(EmitExpr(e.Target), vm.Access(e.Field))

	case *Index:
		ops := EmitExpr(e.Target)
		ops = append(ops, EmitExpr(e.Key)...)
		return append(ops, vm.Index())

	case *Binary:
		ops := EmitExpr(e.Left)
		ops = append(ops, EmitExpr(e.Right)...)
		return append(ops, vm.Simple(e.Op.Opcode()))

	case *Unary:
		ops := EmitExpr(e.Operand)
		switch e.Op {
		case OpNot:
			return append(ops, vm.Simple(vm.OpNot))
		case OpNeg:
			return append(ops, vm.Push(vm.IntValue(-1)), vm.Simple(vm.OpMul))
		default:
			return append(ops, vm.Simple(vm.OpDbg))
		}

	case *NullCoalesce:
		rhs := EmitExpr(e.Right)
		ops := EmitExpr(e.Left)
		ops = append(ops,
			vm.IsNull(),
			vm.SkipIf(uint32(len(rhs)+1), true),
			vm.Pop(1))
		return append(ops, rhs...)

	case *Call:
		// Arguments go first so the machine pops them last, in reverse. A
		// method call also pushes the receiver, evaluated on its own, below
		// the callable.
		var ops []vm.Operation
		for _, arg := range e.Args {
			ops = append(ops, EmitExpr(arg)...)
		}
		access, method := e.Target.(*Access)
		if method {
			ops = append(ops, EmitExpr(access.Target)...)
		}
		ops = append(ops, EmitExpr(e.Target)...)
		return append(ops, vm.Call(uint32(len(e.Args)), method))

	case *Object:
		var ops []vm.Operation
		keys := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			ops = append(ops, EmitExpr(f.Value)...)
			keys[i] = f.Key
		}
		return append(ops, vm.DefineObj(keys...))
	}
	panic(fmt.Sprintf("compiler: unknown expression %T", e))
}
