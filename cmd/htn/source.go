package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/htn/compiler"
	"github.com/chazu/htn/manifest"
	"github.com/chazu/htn/server"
)

// handleCheckCommand processes `htn check`. Without arguments it checks every
// script under the project's source directories. Exits 1 when any file has
// an error; dropped tokens and -vet findings are only warnings.
func handleCheckCommand(args []string) error {
	fs, verbosity := newFlagSet("check")
	vet := fs.Bool("vet", true, "also warn about unreachable code and names nothing assigns")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, _, err := project(*verbosity)
	if err != nil {
		return err
	}
	files, err := sourceFiles(m, fs.Args())
	if err != nil {
		return err
	}

	var known []string
	for name := range m.BindingObjects() {
		known = append(known, name)
	}

	failed := false
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		diags := compiler.Check(string(data))
		if *vet {
			diags = compiler.Vet(string(data), known)
		}
		for _, d := range diags {
			fmt.Printf("%s:%s\n", path, d)
		}
		if compiler.HasErrors(diags) {
			failed = true
		}
	}
	log.Infof("checked %d files", len(files))
	if failed {
		return exitStatus(1)
	}
	return nil
}

// handleFmtCommand processes `htn fmt`. Without files it formats standard
// input to standard output.
func handleFmtCommand(args []string) error {
	fs, verbosity := newFlagSet("fmt")
	write := fs.Bool("w", false, "write the result back to the source file")
	list := fs.Bool("l", false, "list files whose formatting differs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, _, err := project(*verbosity); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		if *write {
			return errors.New("cannot use -w with standard input")
		}
		return formatStream(os.Stdin, os.Stdout)
	}

	failed := false
	for _, path := range fs.Args() {
		changed, err := formatFile(path, *write)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed = true
			continue
		}
		if *list && changed {
			fmt.Println(path)
		}
	}
	if failed {
		return exitStatus(1)
	}
	return nil
}

// formatFile formats the script at path. With write the file is replaced
// when it changed; otherwise the result goes to standard output.
func formatFile(path string, write bool) (changed bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, err := compiler.Format(string(data))
	if err != nil {
		return false, fmt.Errorf("%s:%w", path, err)
	}
	changed = out != string(data)

	if !write {
		fmt.Print(out)
		return changed, nil
	}
	if changed {
		if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
			return false, err
		}
		log.Infof("formatted %s", path)
	}
	return changed, nil
}

func formatStream(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	out, err := compiler.Format(string(data))
	if err != nil {
		return fmt.Errorf("<stdin>:%w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// sourceFiles returns args, or the project's scripts when args is empty.
func sourceFiles(m *manifest.Manifest, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	files, err := m.SourceFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .htn files under %v", m.SourceDirPaths())
	}
	return files, nil
}

// handleLspCommand processes `htn lsp`. Completion and hover draw globals
// and bindings from htn.toml when one is found.
func handleLspCommand(args []string) error {
	fs, verbosity := newFlagSet("lsp")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, found, err := project(*verbosity)
	if err != nil {
		return err
	}
	if !found {
		m = nil
	}
	return server.NewLSP(m).Run()
}
