// Command htn compiles, runs and inspects .htn behaviour scripts.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/htn/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("htn.cli")

type command struct {
	name    string
	args    string
	summary string
	run     func(args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"compile", "[-o out.htnc] [-store db -name n] file.htn", "compile a script to bytecode", handleCompileCommand},
		{"run", "[-ticks n] [-store db] [-scope s] file.htn|file.htnc|-name n", "tick a program against a blackboard", handleRunCommand},
		{"check", "[file...]", "report lex and parse problems", handleCheckCommand},
		{"disasm", "file.htn|file.htnc|-name n", "print the operations of a program", handleDisasmCommand},
		{"fmt", "[-w] [-l] [file...]", "reformat scripts canonically", handleFmtCommand},
		{"lsp", "", "start the language server on stdio", handleLspCommand},
		{"repl", "", "compile and tick each input against one blackboard", handleReplCommand},
	}
}

// exitStatus ends the process with a status code without printing an error.
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	name, args := os.Args[1], os.Args[2:]
	switch name {
	case "help", "-h", "-help", "--help":
		usage(os.Stdout)
		return
	}

	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(args)
		var status exitStatus
		switch {
		case err == nil:
			return
		case errors.Is(err, flag.ErrHelp):
			os.Exit(2)
		case errors.As(err, &status):
			os.Exit(int(status))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "htn: unknown command %q\n\n", name)
	usage(os.Stderr)
	os.Exit(2)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: htn <command> [options] [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nRun 'htn <command> -h' for the options of a command.\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  htn run -ticks 3 scripts/guard.htn      # Tick a script three times\n")
	fmt.Fprintf(w, "  htn compile -o guard.htnc guard.htn     # Write bytecode\n")
	fmt.Fprintf(w, "  htn compile -name guard guard.htn       # Save into the project store\n")
	fmt.Fprintf(w, "  htn run -name guard -scope arena        # Run a stored program on a stored blackboard\n")
	fmt.Fprintf(w, "  htn fmt -w ./scripts/*.htn              # Rewrite scripts in place\n")
}

// newFlagSet builds the flag set for a subcommand. Every subcommand accepts
// -v to raise log verbosity.
func newFlagSet(name string) (*flag.FlagSet, *int) {
	fs := flag.NewFlagSet("htn "+name, flag.ContinueOnError)
	verbosity := fs.Int("v", 0, "log verbosity (1 = info, 2 = debug)")
	fs.Usage = func() {
		for _, c := range commands {
			if c.name == name {
				fmt.Fprintf(fs.Output(), "Usage: htn %s %s\n\n%s.\n\n", c.name, c.args, c.summary)
			}
		}
		fs.PrintDefaults()
	}
	return fs, verbosity
}

// project finds htn.toml above the working directory and configures logging.
// found is false when defaults were used.
func project(verbosity int) (m *manifest.Manifest, found bool, err error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, false, err
	}
	m, err = manifest.FindAndLoad(wd)
	if err != nil {
		return nil, false, err
	}
	found = m != nil
	if !found {
		m = manifest.Default(wd)
	}

	if m.Runtime.Verbosity > verbosity {
		verbosity = m.Runtime.Verbosity
	}
	commonlog.Configure(verbosity, nil)
	if found {
		log.Debugf("using %s in %s", manifest.FileName, m.Dir)
	}
	return m, found, nil
}
