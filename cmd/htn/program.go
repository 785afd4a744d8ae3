package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/htn/compiler"
	"github.com/chazu/htn/manifest"
	"github.com/chazu/htn/store"
	"github.com/chazu/htn/vm"
)

// handleCompileCommand processes `htn compile`.
// Usage:
//
//	htn compile guard.htn                 # ./guard.htnc
//	htn compile -o out.htnc guard.htn     # custom output
//	htn compile -name guard guard.htn     # save into the store only
func handleCompileCommand(args []string) error {
	fs, verbosity := newFlagSet("compile")
	out := fs.String("o", "", "output file (default: the source name with .htnc)")
	storePath := fs.String("store", "", "SQLite store (default from htn.toml)")
	name := fs.String("name", "", "save the program into the store under this name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitStatus(2)
	}
	m, _, err := project(*verbosity)
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	src := string(data)
	p, err := compileSource(path, src)
	if err != nil {
		return err
	}
	if err := p.Validate(m.Runtime.MaxOps); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if *name != "" {
		st, err := openStore(m, *storePath)
		if err != nil {
			return err
		}
		defer st.Close()
		rev, err := st.SaveProgram(*name, p, src)
		if err != nil {
			return err
		}
		fmt.Printf("saved %s to %s (%d operations, rev %s)\n", *name, st.Path(), p.Len(), rev)
		if *out == "" {
			return nil
		}
	}

	if *out == "" {
		*out = strings.TrimSuffix(path, filepath.Ext(path)) + ".htnc"
	}
	encoded, err := vm.MarshalProgram(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d operations)\n", *out, p.Len())
	return nil
}

// handleRunCommand processes `htn run`. Globals and bindings come from
// htn.toml. With a store the blackboard is loaded from and saved back to a
// scope, and every tick is appended to the tick log.
func handleRunCommand(args []string) error {
	fs, verbosity := newFlagSet("run")
	ticks := fs.Int("ticks", 0, "number of ticks (default from htn.toml, else 1)")
	storePath := fs.String("store", "", "SQLite store; enables blackboard persistence")
	scope := fs.String("scope", "", "blackboard scope in the store (default from htn.toml)")
	name := fs.String("name", "", "run the named program from the store")
	maxOps := fs.Int("max-ops", -1, "reject programs longer than this (default from htn.toml)")
	trace := fs.Bool("trace", false, "log every dispatched operation")
	quiet := fs.Bool("q", false, "do not print the blackboard after the run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, _, err := project(*verbosity)
	if err != nil {
		return err
	}

	var st *store.Store
	if *storePath != "" || *scope != "" || *name != "" {
		st, err = openStore(m, *storePath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	p, progName, err := loadProgram(st, *name, fs.Args())
	if err != nil {
		return err
	}
	limit := m.Runtime.MaxOps
	if *maxOps >= 0 {
		limit = *maxOps
	}
	if err := p.Validate(limit); err != nil {
		return err
	}

	if *scope == "" {
		*scope = m.Store.Scope
	}
	bb := vm.NewBlackboard()
	if st != nil {
		if bb, err = st.LoadBlackboard(*scope); err != nil {
			return err
		}
	}

	host := vm.NewNativeHost()
	for k, v := range m.GlobalObjects() {
		host.Globals[k] = v
	}
	machine := vm.NewMachine(host)
	machine.Trace = *trace || m.Runtime.Trace
	machine.OnDebug = func(text string) {
		fmt.Printf("dbg: %s\n", text)
	}

	n := *ticks
	if n <= 0 {
		n = m.Runtime.Ticks
	}
	if n <= 0 {
		n = 1
	}
	runErr := tickN(machine, p, bb, m.BindingObjects(), n, func(i int, state vm.EndState, err error) {
		if st != nil {
			if _, lerr := st.RecordTick(progName, state, err); lerr != nil {
				log.Errorf("tick log: %s", lerr)
			}
		}
		if err == nil {
			fmt.Printf("tick %d: %s (%d steps)\n", i, state, machine.Steps())
		}
	})

	if st != nil {
		if err := st.SaveBlackboard(*scope, bb); err != nil {
			return err
		}
		log.Infof("saved blackboard %q to %s", *scope, st.Path())
	}
	if !*quiet {
		printBlackboard(os.Stdout, host, bb)
	}
	return runErr
}

// tickN ticks p n times, reporting each tick to after. It stops at the first
// failing tick and returns its error.
func tickN(machine *vm.Machine, p *vm.Program, bb *vm.Blackboard, bindings map[string]vm.Object, n int, after func(i int, state vm.EndState, err error)) error {
	for i := 1; i <= n; i++ {
		state, err := machine.Tick(p, bb, bindings)
		if after != nil {
			after(i, state, err)
		}
		if err != nil {
			return fmt.Errorf("tick %d: %w", i, err)
		}
	}
	return nil
}

// handleDisasmCommand processes `htn disasm`.
func handleDisasmCommand(args []string) error {
	fs, verbosity := newFlagSet("disasm")
	storePath := fs.String("store", "", "SQLite store (default from htn.toml)")
	name := fs.String("name", "", "disassemble the named program from the store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, _, err := project(*verbosity)
	if err != nil {
		return err
	}

	var st *store.Store
	if *name != "" {
		if st, err = openStore(m, *storePath); err != nil {
			return err
		}
		defer st.Close()
	}
	p, title, err := loadProgram(st, *name, fs.Args())
	if err != nil {
		return err
	}
	fmt.Print(p.DisassembleWithName(title))
	return nil
}

// loadProgram returns the program named in the store, or the single file in
// args, along with a name for logs and listings.
func loadProgram(st *store.Store, name string, args []string) (*vm.Program, string, error) {
	if name != "" {
		if len(args) > 0 {
			return nil, "", errors.New("give either -name or a file, not both")
		}
		p, err := st.LoadProgram(name)
		if err != nil {
			return nil, "", err
		}
		return p, name, nil
	}

	if len(args) != 1 {
		return nil, "", errors.New("expected one program file")
	}
	path := args[0]
	p, err := readProgram(path)
	if err != nil {
		return nil, "", err
	}
	return p, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), nil
}

// readProgram loads a compiled .htnc file or compiles a source file,
// deciding by content rather than extension.
func readProgram(path string) (*vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if vm.IsProgramFile(data) {
		p, err := vm.UnmarshalProgram(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return p, nil
	}
	return compileSource(path, string(data))
}

// compileSource compiles src, logging dropped tokens as warnings.
func compileSource(path, src string) (*vm.Program, error) {
	for _, d := range compiler.Check(src) {
		if d.Severity == compiler.SeverityWarning {
			log.Warningf("%s:%s", path, d)
		}
	}
	p, err := compiler.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", path, err)
	}
	return p, nil
}

func openStore(m *manifest.Manifest, path string) (*store.Store, error) {
	if path == "" {
		path = m.StorePath()
	}
	return store.Open(path)
}

// printBlackboard writes one key = value line per entry. Strings are quoted
// so that they can be told apart from numbers and keywords.
func printBlackboard(w io.Writer, host *vm.NativeHost, bb *vm.Blackboard) {
	for _, k := range bb.Keys() {
		v, _ := bb.Get(k)
		fmt.Fprintf(w, "%s = %s\n", k, show(host, v))
	}
}

func show(host *vm.NativeHost, v vm.Object) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return host.Describe(v)
}
