package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header. Jump operations
// are annotated with their target offset.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; %d operations\n", len(p.ops)))

	for i, op := range p.ops {
		sb.WriteString(fmt.Sprintf("[%04d] %s", i, op))
		if op.Op.IsJump() {
			sb.WriteString(fmt.Sprintf("  ; -> %04d", i+1+int(op.Skip)))
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}
