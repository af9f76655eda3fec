package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/loadpath/interp"
)

const replHelp = `Commands:
  :help           Show this help
  :pwd            Show the virtual working directory
  :ls             List files in the virtual file system
  :require NAME   Require a feature
  :load PATH      Load a virtual file
  :resolve NAME   Show where NAME would be loaded from
  exit, quit      Leave the REPL
`

func runREPL(it *interp.Interpreter) {
	fmt.Println("Loadpath REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Println()
	repl(it, os.Stdin, os.Stdout)
}

// repl reads lines from in and evaluates them. Input that ends early is
// continued on the next line.
func repl(it *interp.Interpreter, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	lineBuffer := strings.Builder{}

	for {
		if lineBuffer.Len() == 0 {
			fmt.Fprint(out, ">> ")
		} else {
			fmt.Fprint(out, ".. ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if lineBuffer.Len() == 0 && (line == "exit" || line == "quit") {
			break
		}
		if lineBuffer.Len() == 0 && strings.HasPrefix(line, ":") {
			handleREPLCommand(it, line, out)
			continue
		}

		if lineBuffer.Len() > 0 {
			lineBuffer.WriteString("\n")
		}
		lineBuffer.WriteString(line)

		v, err := it.EvalString(lineBuffer.String())
		if incomplete(err) && line != "" {
			continue
		}
		lineBuffer.Reset()
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			continue
		}
		fmt.Fprintf(out, "=> %s\n", inspect(v))
	}
	fmt.Fprintln(out)
}

// incomplete reports whether err is a syntax error at end of input.
func incomplete(err error) bool {
	var exc *interp.Exception
	if !errors.As(err, &exc) || exc.Kind != interp.KindSyntax {
		return false
	}
	return bytes.HasSuffix(exc.Message, []byte("unexpected end-of-input"))
}

func inspect(v interp.Value) []byte {
	if v == nil {
		return []byte("nil")
	}
	return v.Inspect()
}

func handleREPLCommand(it *interp.Interpreter, line string, out io.Writer) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":help":
		fmt.Fprint(out, replHelp)
	case ":pwd":
		fs, err := it.FileSystem()
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return
		}
		fmt.Fprintln(out, fs.Cwd())
	case ":ls":
		fs, err := it.FileSystem()
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return
		}
		for _, p := range fs.Paths() {
			marker := " "
			if required, _ := fs.IsRequired(p); required {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, p)
		}
	case ":require":
		r, err := it.RequireSource(arg)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return
		}
		fmt.Fprintf(out, "=> %s\n", r)
	case ":load":
		r, err := it.LoadSource(arg)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return
		}
		fmt.Fprintf(out, "=> %s\n", r)
	case ":resolve":
		resolved, ok, err := it.ResolveSourcePath(arg)
		switch {
		case err != nil:
			fmt.Fprintf(out, "%v\n", err)
		case !ok:
			fmt.Fprintf(out, "%s not found (tried .%s)\n", arg, it.SourceExtension())
		default:
			fmt.Fprintln(out, resolved)
		}
	default:
		fmt.Fprintf(out, "Unknown command: %s (try :help)\n", cmd)
	}
}
