package vm

import "fmt"

// Opcode identifies the kind of an Operation.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Blackboard and globals (0x00-0x0F)
	// ========================================================================

	OpSetBlackBoard Opcode = 0x00 // Pop and store under Key
	OpGetBlackBoard Opcode = 0x01 // Push entry for Key, or a fresh empty object
	OpGetGlobal     Opcode = 0x02 // Push host global Key

	// ========================================================================
	// Stack and construction (0x10-0x1F)
	// ========================================================================

	OpPush      Opcode = 0x10 // Push projection of Value
	OpPop       Opcode = 0x11 // Pop Count values
	OpDefineObj Opcode = 0x12 // Pop one value per field (reverse order), push new object

	// ========================================================================
	// Reflection (0x20-0x2F)
	// ========================================================================

	OpIsNull Opcode = 0x20 // Peek, push whether top is null
	OpHas    Opcode = 0x21 // Peek, push whether top has property Key
	OpAccess Opcode = 0x22 // Pop object, push its Key property
	OpIndex  Opcode = 0x23 // Pop key, pop object, push object[key]
	OpCall   Opcode = 0x24 // Pop callable (and receiver if Method), pop Args, push result

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpSkipIf  Opcode = 0x30 // Pop; skip Skip ops iff truthy != Invert
	OpSkip    Opcode = 0x31 // Skip Skip ops
	OpEndTick Opcode = 0x32 // Halt with State

	// ========================================================================
	// Arithmetic (0x40-0x4F)
	// ========================================================================

	OpAdd Opcode = 0x40
	OpSub Opcode = 0x41 // left - right, right is TOS
	OpMul Opcode = 0x42
	OpDiv Opcode = 0x43
	OpMod Opcode = 0x44

	// ========================================================================
	// Logical and comparison (0x50-0x5F)
	// ========================================================================

	OpAnd Opcode = 0x50
	OpOr  Opcode = 0x51
	OpEq  Opcode = 0x52
	OpNeq Opcode = 0x53
	OpLt  Opcode = 0x54
	OpGt  Opcode = 0x55
	OpLte Opcode = 0x56
	OpGte Opcode = 0x57
	OpNot Opcode = 0x58

	// ========================================================================
	// Diagnostics (0xF0-0xFF)
	// ========================================================================

	OpDbg Opcode = 0xF0 // Peek, dump top of stack
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string // Human-readable name
	StackPop  int    // Values popped from the stack (-1 = depends on operands)
	StackPush int    // Values pushed to the stack
	Peek      int    // Values that must be present but are not consumed
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpSetBlackBoard: {"SET_BB", 1, 0, 0},
	OpGetBlackBoard: {"GET_BB", 0, 1, 0},
	OpGetGlobal:     {"GET_GLOBAL", 0, 1, 0},

	OpPush:      {"PUSH", 0, 1, 0},
	OpPop:       {"POP", -1, 0, 0},
	OpDefineObj: {"DEFINE_OBJ", -1, 1, 0},

	OpIsNull: {"IS_NULL", 0, 1, 1},
	OpHas:    {"HAS", 0, 1, 1},
	OpAccess: {"ACCESS", 1, 1, 0},
	OpIndex:  {"INDEX", 2, 1, 0},
	OpCall:   {"CALL", -1, 1, 0},

	OpSkipIf:  {"SKIP_IF", 1, 0, 0},
	OpSkip:    {"SKIP", 0, 0, 0},
	OpEndTick: {"END_TICK", 0, 0, 0},

	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},
	OpMod: {"MOD", 2, 1, 0},

	OpAnd: {"AND", 2, 1, 0},
	OpOr:  {"OR", 2, 1, 0},
	OpEq:  {"EQ", 2, 1, 0},
	OpNeq: {"NEQ", 2, 1, 0},
	OpLt:  {"LT", 2, 1, 0},
	OpGt:  {"GT", 2, 1, 0},
	OpLte: {"LTE", 2, 1, 0},
	OpGte: {"GTE", 2, 1, 0},
	OpNot: {"NOT", 1, 1, 0},

	OpDbg: {"DBG", 0, 0, 1},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an info with Name "UNKNOWN" for unrecognized opcodes.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), StackPop: 0, StackPush: 0}
}

// String returns the opcode name.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsValid returns true if the opcode is defined.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsBinary returns true for the two-operand arithmetic, logical and
// comparison opcodes.
func (op Opcode) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpAnd, OpOr, OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte:
		return true
	}
	return false
}

// IsJump returns true if the opcode moves the cursor by an operand.
func (op Opcode) IsJump() bool {
	return op == OpSkip || op == OpSkipIf
}

// binaryOpcodes lists the binary opcodes in declaration order.
var binaryOpcodes = []Opcode{
	OpAdd, OpSub, OpMul, OpDiv, OpMod,
	OpAnd, OpOr, OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte,
}

// BinaryOpcodes returns the thirteen binary opcodes.
func BinaryOpcodes() []Opcode {
	out := make([]Opcode, len(binaryOpcodes))
	copy(out, binaryOpcodes)
	return out
}
