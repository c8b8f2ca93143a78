// Package repl implements Kylu's interactive terminal: a directive set
// and read-eval-print loop run when the CLI is invoked with no file
// argument.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/azhaoli/kylu/eval"
	"github.com/azhaoli/kylu/parser"
)

const banner = `
---------------------------------------------------------------------------------

		KYLU PROJECT TERMINAL

---------------------------------------------------------------------------------
`

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("KYLU_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// REPL owns one Evaluator's session across directives and source lines.
type REPL struct {
	in        *bufio.Reader
	out       io.Writer
	log       *slog.Logger
	evaluator *eval.Evaluator
}

// New constructs a REPL reading directives from in and writing output to
// out. load is the FileLoader handed to every Evaluator this session
// creates, including the ones /load spins up for each imported file.
func New(in io.Reader, out io.Writer, load eval.FileLoader) *REPL {
	log := newLogger()
	diag := func(message string) { fmt.Fprint(out, message) }
	return &REPL{
		in:        bufio.NewReader(in),
		out:       out,
		log:       log,
		evaluator: eval.New(load, diag),
	}
}

func (r *REPL) prompt(label string) (string, error) {
	fmt.Fprint(r.out, label)
	line, err := r.in.ReadString('\n')
	return line, err
}

// Run prints the banner and loops reading directives/source lines until
// /exit, EOF, or an unrecoverable read error.
func (r *REPL) Run() {
	fmt.Fprint(r.out, banner)
	r.log.Debug("repl session started")
	for {
		command, err := r.prompt("(kylu)--> ")
		if err != nil {
			if err != io.EOF {
				r.log.Warn("reading input failed", "error", err)
			}
			return
		}

		trimmed := strings.TrimSpace(command)
		if strings.HasPrefix(trimmed, "/") {
			if r.directive(trimmed) {
				return
			}
			continue
		}

		r.evalLine(command)
		fmt.Fprintln(r.out)
	}
}

// directive handles one "/..." line. It returns true when the session
// should end.
func (r *REPL) directive(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/x":
		fmt.Fprintln(r.out, "[-] program stopped")
		return true
	case "/edit":
		r.evalLine(r.readUntilDone())
		fmt.Fprintln(r.out)
		return false
	case "/bindings", "/bind":
		fmt.Fprintln(r.out, "--------------------------------------------------------- LOCAL BINDINGS --------")
		fmt.Fprint(r.out, r.evaluator.Env().Global().Show())
		return false
	case "/extensions", "/ext":
		fmt.Fprintln(r.out, "------------------------------------------------------ IMPORTED BINDINGS --------")
		fmt.Fprint(r.out, r.evaluator.Env().Import.Show())
		return false
	case "/load":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "[-] specify file path to load")
			return false
		}
		r.load(fields[1])
		return false
	default:
		fmt.Fprintf(r.out, "[-] invalid terminal command: %s\n", fields[0])
		return false
	}
}

// readUntilDone collects lines for /edit until a bare "/done" line.
func (r *REPL) readUntilDone() string {
	var b strings.Builder
	for {
		line, err := r.prompt("> ")
		if err != nil || strings.TrimSpace(line) == "/done" {
			return b.String()
		}
		b.WriteString(line)
	}
}

// load invokes the evaluator's own import mechanism for /load, installing
// path's top-level namespace into the host session's import namespace
// under its basename (eval.Evaluator.Import already implements exactly
// the install-under-basename behavior terminal's /load hand-rolls).
func (r *REPL) load(path string) {
	_, err := r.evaluator.Import(path)
	if err != nil {
		fmt.Fprintf(r.out, "[-] %s\n", err.Error())
		return
	}
	fmt.Fprintf(r.out, "[+] loaded file: %s\n", path)
}

// evalLine parses and evaluates one top-level chunk of source against the
// session's persistent scope, printing any unhandled-error diagnostic
// rather than aborting the session (a single bad line must not kill an
// interactive terminal).
func (r *REPL) evalLine(source string) {
	program, perr := parser.Parse(source)
	if perr != nil {
		fmt.Fprint(r.out, perr.Throw(source, nil))
		return
	}
	if _, eerr := r.evaluator.Run(program); eerr != nil {
		fmt.Fprint(r.out, eerr.Throw(source, r.evaluator.Env().Trace))
	}
}
