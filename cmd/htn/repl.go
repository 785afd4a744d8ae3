package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/htn/compiler"
	"github.com/chazu/htn/manifest"
	"github.com/chazu/htn/vm"
)

func handleReplCommand(args []string) error {
	fs, verbosity := newFlagSet("repl")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, _, err := project(*verbosity)
	if err != nil {
		return err
	}
	newREPL(m, os.Stdout).run(os.Stdin)
	return nil
}

// repl ticks each complete input against one blackboard, so assignments
// carry over from line to line.
type repl struct {
	out      io.Writer
	host     *vm.NativeHost
	machine  *vm.Machine
	bb       *vm.Blackboard
	bindings map[string]vm.Object
	last     *vm.Program
}

func newREPL(m *manifest.Manifest, out io.Writer) *repl {
	host := vm.NewNativeHost()
	for k, v := range m.GlobalObjects() {
		host.Globals[k] = v
	}
	machine := vm.NewMachine(host)
	machine.Trace = m.Runtime.Trace
	return &repl{
		out:      out,
		host:     host,
		machine:  machine,
		bb:       vm.NewBlackboard(),
		bindings: m.BindingObjects(),
	}
}

// run reads input until end of file or 'exit'. Lines accumulate until the
// braces balance and the input ends a statement; an empty line runs whatever
// has accumulated.
func (r *repl) run(in io.Reader) {
	fmt.Fprintln(r.out, "htn REPL (type 'exit' to quit, ':help' for commands)")

	scanner := bufio.NewScanner(in)
	var pending strings.Builder
	for {
		if pending.Len() == 0 {
			fmt.Fprint(r.out, ">> ")
		} else {
			fmt.Fprint(r.out, ".. ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if pending.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "exit" || trimmed == "quit" {
				break
			}
			if strings.HasPrefix(trimmed, ":") {
				r.command(trimmed)
				continue
			}
		}

		if strings.TrimSpace(line) == "" {
			if pending.Len() > 0 {
				r.eval(pending.String())
				pending.Reset()
			}
			continue
		}

		if pending.Len() > 0 {
			pending.WriteString("\n")
		}
		pending.WriteString(line)
		if complete(pending.String()) {
			r.eval(pending.String())
			pending.Reset()
		}
	}
	fmt.Fprintln(r.out)
}

// complete reports whether input has balanced braces and ends with ';' or
// '}'. A lone expression without ';' waits for an empty line.
func complete(input string) bool {
	tokens, _ := compiler.Lex(input)
	depth := 0
	last := compiler.TokenEOF
	for _, tok := range tokens {
		switch tok.Type {
		case compiler.TokenLBrace:
			depth++
		case compiler.TokenRBrace:
			depth--
		case compiler.TokenEOF:
			continue
		}
		last = tok.Type
	}
	return depth <= 0 && (last == compiler.TokenSemicolon || last == compiler.TokenRBrace)
}

func (r *repl) command(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :bb               Show the blackboard")
		fmt.Fprintln(r.out, "  :ops              Disassemble the last input")
		fmt.Fprintln(r.out, "  :reset            Start again with an empty blackboard")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")
	case ":bb":
		if r.bb.Len() == 0 {
			fmt.Fprintln(r.out, "(empty)")
			return
		}
		printBlackboard(r.out, r.host, r.bb)
	case ":ops":
		if r.last == nil {
			fmt.Fprintln(r.out, "nothing compiled yet")
			return
		}
		fmt.Fprint(r.out, r.last.Disassemble())
	case ":reset":
		r.bb = vm.NewBlackboard()
		r.last = nil
		fmt.Fprintln(r.out, "blackboard cleared")
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// eval compiles and ticks input. A lone expression statement is echoed with
// => in place of being discarded.
func (r *repl) eval(input string) {
	stmts, _, err := compiler.Parse(input)
	if err != nil {
		fmt.Fprintf(r.out, "Parse error: %v\n", err)
		return
	}

	echo := false
	if len(stmts) == 1 {
		if es, ok := stmts[0].(*compiler.ExprStmt); ok {
			stmts[0] = &compiler.ExprStmt{
				SpanVal: es.SpanVal,
				Value:   &compiler.Unary{SpanVal: es.Value.Span(), Op: compiler.OpDbg, Operand: es.Value},
			}
			echo = true
		}
	}
	p := vm.NewProgram(compiler.Emit(stmts))
	r.last = p

	var dumps []string
	r.machine.OnDebug = func(text string) { dumps = append(dumps, text) }
	state, err := r.machine.Tick(p, r.bb, r.bindings)

	for i, text := range dumps {
		if echo && i == len(dumps)-1 {
			fmt.Fprintf(r.out, "=> %s\n", text)
		} else {
			fmt.Fprintf(r.out, "dbg: %s\n", text)
		}
	}
	switch {
	case errors.Is(err, vm.ErrOutOfOps):
		// Ran off the end without exit; normal for assignments.
	case err != nil:
		fmt.Fprintf(r.out, "Error: %v\n", err)
	default:
		fmt.Fprintf(r.out, "exit %s\n", state)
	}
}
