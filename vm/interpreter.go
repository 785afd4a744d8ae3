package vm

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Machine: the stack interpreter
// ---------------------------------------------------------------------------

// Machine executes programs against a blackboard through a Host. A machine
// is single-threaded: one tick runs to completion on the calling goroutine,
// and host calls happen synchronously on that goroutine.
type Machine struct {
	host Host

	// Trace logs every dispatched operation at debug level.
	Trace bool

	// OnDebug receives the rendering of the value dumped by Dbg. When nil the
	// dump goes to the htn.vm logger.
	OnDebug func(text string)

	steps int
}

// NewMachine creates a machine bound to host. A nil host selects a fresh
// NativeHost.
func NewMachine(host Host) *Machine {
	if host == nil {
		host = NewNativeHost()
	}
	return &Machine{host: host}
}

// Host returns the bridge the machine was created with.
func (m *Machine) Host() Host {
	return m.host
}

// Steps returns the number of operations dispatched by the last tick.
func (m *Machine) Steps() int {
	return m.steps
}

// stack is the evaluation stack. Values are pushed last-on-top.
type stack []Object

func (s *stack) push(o Object) {
	*s = append(*s, o)
}

func (s *stack) pop() Object {
	old := *s
	o := old[len(old)-1]
	old[len(old)-1] = nil
	*s = old[:len(old)-1]
	return o
}

func (s stack) peek() Object {
	return s[len(s)-1]
}

// Tick injects execution-scoped bindings into bb, executes p and restores bb's
// previous entries for those keys, whatever the outcome.
func (m *Machine) Tick(p *Program, bb *Blackboard, bindings map[string]Object) (EndState, error) {
	if bb == nil {
		bb = NewBlackboard()
	}
	restore := bb.Bind(bindings)
	defer restore()
	return m.Execute(p, bb)
}

// Execute runs p from its first operation with an empty evaluation stack.
// It returns the state given to EndTick, or an *ExecError. Because every step
// moves the cursor forward by at least one, a program of length N finishes
// within N+1 dispatches.
func (m *Machine) Execute(p *Program, bb *Blackboard) (EndState, error) {
	if bb == nil {
		bb = NewBlackboard()
	}
	p.ip = 0
	m.steps = 0
	st := make(stack, 0, 16)

	for p.ip < len(p.ops) {
		op := p.ops[p.ip]
		m.steps++

		if m.Trace && log.AllowLevel(commonlog.Debug) {
			log.Debugf("[%04d] %-28s depth=%d", p.ip, op, len(st))
		}

		need, _, _ := op.Arity()
		if len(st) < need {
			return 0, m.fail(p, op, ErrStackUnderflow)
		}

		switch op.Op {
		case OpSetBlackBoard:
			bb.Set(op.Key, st.pop())

		case OpGetBlackBoard:
			v, ok := bb.Get(op.Key)
			if !ok {
				v = m.host.NewObject()
			}
			st.push(v)

		case OpGetGlobal:
			v, err := m.host.Global(op.Key)
			if err != nil {
				return 0, m.fail(p, op, asBadType(err))
			}
			st.push(v)

		case OpPush:
			st.push(m.host.Project(op.Value))

		case OpPop:
			for i := uint32(0); i < op.Count; i++ {
				st.pop()
			}

		case OpDefineObj:
			obj := m.host.NewObject()
			for i := len(op.Fields) - 1; i >= 0; i-- {
				if err := m.host.Set(obj, op.Fields[i], st.pop()); err != nil {
					return 0, m.fail(p, op, asBadType(err))
				}
			}
			st.push(obj)

		case OpIsNull:
			st.push(m.host.IsNull(st.peek()))

		case OpHas:
			ok, err := m.host.Has(st.peek(), op.Key)
			if err != nil {
				return 0, m.fail(p, op, asBadType(err))
			}
			st.push(ok)

		case OpAccess:
			v, err := m.host.Get(st.pop(), op.Key)
			if err != nil {
				return 0, m.fail(p, op, asBadType(err))
			}
			st.push(v)

		case OpIndex:
			key := st.pop()
			v, err := m.host.Index(st.pop(), key)
			if err != nil {
				return 0, m.fail(p, op, asBadType(err))
			}
			st.push(v)

		case OpCall:
			callee := st.pop()
			var recv Object
			if op.Method {
				recv = st.pop()
			}
			args := make([]Object, op.Count)
			for i := len(args) - 1; i >= 0; i-- {
				args[i] = st.pop()
			}
			result, err := m.host.Invoke(callee, recv, op.Method, args)
			if err != nil {
				if errors.Is(err, ErrNotCallable) {
					return 0, m.fail(p, op, fmt.Errorf("%w: %w", ErrBadType, err))
				}
				return 0, m.fail(p, op, callFailed(err))
			}
			st.push(result)

		case OpSkipIf:
			if m.host.Truthy(st.pop()) != op.Invert {
				p.ip += int(op.Skip)
			}

		case OpSkip:
			p.ip += int(op.Skip)

		case OpEndTick:
			return op.State, nil

		case OpAdd, OpSub, OpMul, OpDiv, OpMod,
			OpAnd, OpOr, OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte:
			right := st.pop()
			left := st.pop()
			result, err := m.host.Binary(op.Op, left, right)
			if err != nil {
				return 0, m.fail(p, op, asBadType(err))
			}
			st.push(result)

		case OpNot:
			st.push(!m.host.Truthy(st.pop()))

		case OpDbg:
			text := m.host.Describe(st.peek())
			if m.OnDebug != nil {
				m.OnDebug(text)
			} else {
				log.Infof("dbg [%04d]: %s", p.ip, text)
			}

		default:
			return 0, m.fail(p, op, fmt.Errorf("%w: unknown opcode 0x%02X", ErrBadType, byte(op.Op)))
		}

		p.ip++
	}

	return 0, &ExecError{IP: p.ip, Err: ErrOutOfOps}
}

// CallByName invokes the callable stored under name, looking first on the
// blackboard and then in the host's global namespace. It is the lookup-by-name
// entry point hosts use to drive script-visible functions directly.
func (m *Machine) CallByName(bb *Blackboard, name string, args ...Object) (Object, error) {
	var fn Object
	if bb != nil {
		fn, _ = bb.Get(name)
	}
	if m.host.IsNull(fn) {
		g, err := m.host.Global(name)
		if err != nil {
			return nil, asBadType(err)
		}
		fn = g
	}
	if m.host.IsNull(fn) {
		return nil, fmt.Errorf("%w: %s", ErrFuncNotFound, name)
	}
	result, err := m.host.Invoke(fn, nil, false, args)
	if err != nil {
		if errors.Is(err, ErrNotCallable) {
			return nil, fmt.Errorf("%w: %s: %w", ErrBadType, name, err)
		}
		return nil, callFailed(err)
	}
	return result, nil
}

// fail wraps err with the current position.
func (m *Machine) fail(p *Program, op Operation, err error) error {
	if m.Trace {
		log.Debugf("[%04d] %s failed: %v", p.ip, op.Op, err)
	}
	return &ExecError{IP: p.ip, Op: op.Op, Err: err}
}

// asBadType makes sure a host reflection error reports as ErrBadType.
func asBadType(err error) error {
	if errors.Is(err, ErrBadType) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBadType, err)
}
