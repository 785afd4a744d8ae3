package vm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Program wire format
// ---------------------------------------------------------------------------

// A compiled program file is the magic header followed by the canonical CBOR
// encoding of a programFile. The operation vector is the only payload; no
// symbol table or debug info is needed to execute it.
var programMagic = []byte("HTNC")

// WireVersion is the current program file version.
const WireVersion = 1

// ErrBadProgramFile is returned when data is not a compiled program.
var ErrBadProgramFile = errors.New("not a compiled htn program")

type programFile struct {
	Version uint        `cbor:"1,keyasint"`
	Ops     []Operation `cbor:"2,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalOperations encodes an operation vector as canonical CBOR.
func MarshalOperations(ops []Operation) ([]byte, error) {
	return cborEncMode.Marshal(ops)
}

// UnmarshalOperations decodes an operation vector produced by
// MarshalOperations.
func UnmarshalOperations(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := cbor.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("vm: unmarshal operations: %w", err)
	}
	return ops, nil
}

// MarshalProgram serializes p to the compiled program file format.
func MarshalProgram(p *Program) ([]byte, error) {
	body, err := cborEncMode.Marshal(programFile{Version: WireVersion, Ops: p.ops})
	if err != nil {
		return nil, fmt.Errorf("vm: marshal program: %w", err)
	}
	out := make([]byte, 0, len(programMagic)+len(body))
	out = append(out, programMagic...)
	return append(out, body...), nil
}

// UnmarshalProgram deserializes a compiled program file and validates it.
func UnmarshalProgram(data []byte) (*Program, error) {
	if !bytes.HasPrefix(data, programMagic) {
		return nil, ErrBadProgramFile
	}
	var f programFile
	if err := cbor.Unmarshal(data[len(programMagic):], &f); err != nil {
		return nil, fmt.Errorf("vm: unmarshal program: %w", err)
	}
	if f.Version != WireVersion {
		return nil, fmt.Errorf("vm: unsupported program version %d", f.Version)
	}
	p := &Program{ops: f.Ops}
	if err := p.Validate(0); err != nil {
		return nil, fmt.Errorf("vm: %w", err)
	}
	return p, nil
}

// IsProgramFile reports whether data starts with the compiled program magic.
func IsProgramFile(data []byte) bool {
	return bytes.HasPrefix(data, programMagic)
}

// Hash returns the hex SHA-256 of the program's canonical encoding. Two
// programs with equal operation vectors always hash the same.
func (p *Program) Hash() string {
	data, err := cborEncMode.Marshal(p.ops)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
