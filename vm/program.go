package vm

import "fmt"

// Program is an immutable operation vector plus the cursor used while it
// runs. The cursor is reset to zero at the start of every tick; a program is
// never resumed mid-body.
type Program struct {
	ops []Operation
	ip  int
}

// NewProgram wraps an operation vector. The slice is copied so later changes
// by the caller do not affect the program.
func NewProgram(ops []Operation) *Program {
	cp := make([]Operation, len(ops))
	copy(cp, ops)
	return &Program{ops: cp}
}

// Ops returns a copy of the operation vector.
func (p *Program) Ops() []Operation {
	cp := make([]Operation, len(p.ops))
	copy(cp, p.ops)
	return cp
}

// Len returns the number of operations.
func (p *Program) Len() int {
	return len(p.ops)
}

// At returns the operation at offset i.
func (p *Program) At(i int) Operation {
	return p.ops[i]
}

// IP returns the cursor position reached by the most recent tick.
func (p *Program) IP() int {
	return p.ip
}

// Validate checks a program before it is trusted for repeated execution:
// every opcode must be known and, when maxOps is positive, the program must
// not exceed maxOps operations. Skip operands are unsigned, so every jump is
// forward and a program of length N halts within N+1 steps.
func (p *Program) Validate(maxOps int) error {
	if maxOps > 0 && len(p.ops) > maxOps {
		return fmt.Errorf("%w: %d operations, limit is %d", ErrProgramTooLong, len(p.ops), maxOps)
	}
	for i, op := range p.ops {
		if !op.Op.IsValid() {
			return fmt.Errorf("operation %d: unknown opcode 0x%02X", i, byte(op.Op))
		}
	}
	return nil
}
