package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Operation: one bytecode instruction
// ---------------------------------------------------------------------------

// EndState is the terminal tag a program reports through EndTick.
type EndState uint8

const (
	Success EndState = iota
	Failure
	Running
)

func (s EndState) String() string {
	switch s {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	case Running:
		return "Running"
	default:
		return fmt.Sprintf("EndState(%d)", s)
	}
}

// ParseEndState accepts the long names and the S/F/R shorthand. C is an
// alias of Running.
func ParseEndState(s string) (EndState, bool) {
	switch s {
	case "Success", "S":
		return Success, true
	case "Failure", "F":
		return Failure, true
	case "Running", "R", "C":
		return Running, true
	}
	return 0, false
}

// Operation is a single instruction. Only the operand fields relevant to Op
// are set; the rest stay zero so programs compare and serialize cleanly.
type Operation struct {
	Op     Opcode   `cbor:"1,keyasint"`
	Key    string   `cbor:"2,keyasint,omitempty"` // SetBlackBoard, GetBlackBoard, GetGlobal, Has, Access
	Value  Value    `cbor:"3,keyasint,omitempty"` // Push
	Fields []string `cbor:"4,keyasint,omitempty"` // DefineObj
	Count  uint32   `cbor:"5,keyasint,omitempty"` // Pop count, Call argument count
	Skip   uint32   `cbor:"6,keyasint,omitempty"` // Skip, SkipIf
	Invert bool     `cbor:"7,keyasint,omitempty"` // SkipIf
	Method bool     `cbor:"8,keyasint,omitempty"` // Call
	State  EndState `cbor:"9,keyasint,omitempty"` // EndTick
}

// SetBlackBoard builds a SetBlackBoard{key} operation.
func SetBlackBoard(key string) Operation { return Operation{Op: OpSetBlackBoard, Key: key} }

// GetBlackBoard builds a GetBlackBoard{key} operation.
func GetBlackBoard(key string) Operation { return Operation{Op: OpGetBlackBoard, Key: key} }

// GetGlobal builds a GetGlobal{key} operation.
func GetGlobal(key string) Operation { return Operation{Op: OpGetGlobal, Key: key} }

// Push builds a Push{value} operation.
func Push(v Value) Operation { return Operation{Op: OpPush, Value: v} }

// Pop builds a Pop{count} operation.
func Pop(count uint32) Operation { return Operation{Op: OpPop, Count: count} }

// DefineObj builds a DefineObj{fields} operation.
func DefineObj(fields ...string) Operation { return Operation{Op: OpDefineObj, Fields: fields} }

// IsNull builds an IsNull operation.
func IsNull() Operation { return Operation{Op: OpIsNull} }

// Has builds a Has{key} operation.
func Has(key string) Operation { return Operation{Op: OpHas, Key: key} }

// Access builds an Access{key} operation.
func Access(key string) Operation { return Operation{Op: OpAccess, Key: key} }

// Index builds an Index operation.
func Index() Operation { return Operation{Op: OpIndex} }

// Call builds a Call{args, method} operation.
func Call(args uint32, method bool) Operation {
	return Operation{Op: OpCall, Count: args, Method: method}
}

// SkipIf builds a SkipIf{skip, invert} operation.
func SkipIf(skip uint32, invert bool) Operation {
	return Operation{Op: OpSkipIf, Skip: skip, Invert: invert}
}

// Skip builds a Skip{skip} operation.
func Skip(skip uint32) Operation { return Operation{Op: OpSkip, Skip: skip} }

// EndTick builds an EndTick(state) operation.
func EndTick(state EndState) Operation { return Operation{Op: OpEndTick, State: state} }

// Simple builds an operand-free operation (binary operators, Not, Dbg).
func Simple(op Opcode) Operation { return Operation{Op: op} }

// Arity returns how many stack values the operation needs present and how
// many it leaves pushed. Peeking operations need their operand present but do
// not consume it, so need counts peeked values too.
func (o Operation) Arity() (need, pop, push int) {
	info := GetOpcodeInfo(o.Op)
	pop = info.StackPop
	switch o.Op {
	case OpPop:
		pop = int(o.Count)
	case OpDefineObj:
		pop = len(o.Fields)
	case OpCall:
		pop = int(o.Count) + 1
		if o.Method {
			pop++
		}
	}
	return pop + info.Peek, pop, info.StackPush
}

// Equal reports whether two operations are identical.
func (o Operation) Equal(other Operation) bool {
	if o.Op != other.Op || o.Key != other.Key || o.Count != other.Count ||
		o.Skip != other.Skip || o.Invert != other.Invert || o.Method != other.Method ||
		o.State != other.State || len(o.Fields) != len(other.Fields) {
		return false
	}
	for i := range o.Fields {
		if o.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return o.Value.Equal(other.Value)
}

// String renders the operation as a single disassembly line body.
func (o Operation) String() string {
	name := o.Op.String()
	switch o.Op {
	case OpSetBlackBoard, OpGetBlackBoard, OpGetGlobal, OpHas, OpAccess:
		return fmt.Sprintf("%s %s", name, o.Key)
	case OpPush:
		if o.Value.Kind == KindString {
			return fmt.Sprintf("%s %s", name, strconv.Quote(o.Value.Str))
		}
		return fmt.Sprintf("%s %s", name, o.Value)
	case OpPop:
		return fmt.Sprintf("%s count=%d", name, o.Count)
	case OpDefineObj:
		return fmt.Sprintf("%s [%s]", name, strings.Join(o.Fields, ", "))
	case OpCall:
		return fmt.Sprintf("%s args=%d method=%t", name, o.Count, o.Method)
	case OpSkipIf:
		return fmt.Sprintf("%s skip=%d invert=%t", name, o.Skip, o.Invert)
	case OpSkip:
		return fmt.Sprintf("%s skip=%d", name, o.Skip)
	case OpEndTick:
		return fmt.Sprintf("%s %s", name, o.State)
	}
	return name
}
