package vm

import (
	"errors"
	"fmt"
)

// Errors returned by Execute. Every failure is fatal to the current tick and
// is delivered wrapped in an *ExecError; compare with errors.Is.
var (
	// ErrStackUnderflow: an operation needed more operands than were present.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrFuncNotFound: a call by name found nothing to call.
	ErrFuncNotFound = errors.New("function not found")

	// ErrFuncCallFailed: the host function returned an error. The host's
	// error is wrapped alongside it.
	ErrFuncCallFailed = errors.New("function call failed")

	// ErrBadType: a reflective operation was applied to a value that does not
	// support it.
	ErrBadType = errors.New("bad type")

	// ErrOutOfOps: the cursor ran off the end of the program without EndTick.
	ErrOutOfOps = errors.New("out of operations")
)

// Host bridge errors. The machine maps these onto the taxonomy above.
var (
	ErrNotCallable = errors.New("value is not callable")
	ErrNoProperty  = errors.New("value has no properties")
)

// ErrProgramTooLong is returned by Program.Validate for a program over the
// configured operation ceiling.
var ErrProgramTooLong = errors.New("program too long")

// ExecError records where in the program a tick failed.
type ExecError struct {
	IP  int    // Offset of the failing operation
	Op  Opcode // Opcode at IP (zero when the cursor ran off the end)
	Err error  // One of the sentinel errors, possibly wrapping a host error
}

func (e *ExecError) Error() string {
	if errors.Is(e.Err, ErrOutOfOps) {
		return fmt.Sprintf("at %04d: %v", e.IP, e.Err)
	}
	return fmt.Sprintf("at %04d (%s): %v", e.IP, e.Op, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// callFailed wraps a host error so that errors.Is matches both
// ErrFuncCallFailed and the host error itself.
func callFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrFuncCallFailed, err)
}

// badType annotates ErrBadType with the offending detail.
func badType(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadType, fmt.Sprintf(format, args...))
}
