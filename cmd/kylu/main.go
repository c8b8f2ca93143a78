// Command kylu is the host CLI: given a source file it runs the file
// non-interactively; given none it drops into the REPL.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/azhaoli/kylu/eval"
	"github.com/azhaoli/kylu/internal/repl"
	"github.com/azhaoli/kylu/parser"
)

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("KYLU_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	return string(data), nil
}

// runFile parses and evaluates one source file's top-level program,
// printing an unhandled-error diagnostic to stderr on failure. Returns an
// error only for RunE's exit-code translation; the diagnostic itself is
// already fully rendered by this point.
func runFile(path string, log *slog.Logger) error {
	source, err := loadFile(path)
	if err != nil {
		log.Warn("could not load source file", "path", path, "error", err)
		return err
	}

	diag := func(message string) { fmt.Fprint(os.Stderr, message) }
	evaluator := eval.New(loadFile, diag)

	program, perr := parser.Parse(source)
	if perr != nil {
		fmt.Fprint(os.Stderr, perr.Throw(source, nil))
		return perr
	}
	if _, eerr := evaluator.Run(program); eerr != nil {
		fmt.Fprint(os.Stderr, eerr.Throw(source, evaluator.Env().Trace))
		return eerr
	}
	return nil
}

func main() {
	log := newLogger()

	rootCmd := &cobra.Command{
		Use:           "kylu [file]",
		Short:         "Run or interactively evaluate a Kylu source file",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				repl.New(os.Stdin, os.Stdout, loadFile).Run()
				return nil
			}
			return runFile(args[0], log)
		},
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
