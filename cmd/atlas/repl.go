package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"atlas/pkg/interp"
	"atlas/pkg/parser"
	"atlas/pkg/value"
)

const historyFile = ".atlas_history"

// newReplCmd mirrors kristofer-smog's cmd/smog REPL: a single persistent
// engine instance fed one line (or multi-line block) at a time, with
// peterh/liner supplying history and line editing. Atlas's REPL drives
// the interpreter rather than the VM: interp.Interpreter keeps its global
// environment alive across repeated Eval calls, while vm.VM rebuilds a
// fresh globals table on every Run, so only the tree-walker can give the
// REPL the incremental, accumulating session smog's users expect.
func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive Atlas session backed by the tree-walking interpreter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := loadRuntime()
			_ = logger
			return runRepl(cfg.PermissionChecker())
		},
	}
}

func runRepl(checkPerm interp.PermissionChecker) error {
	engine := interp.New(
		interp.WithOutput(os.Stdout),
		interp.WithPermissionChecker(checkPerm),
	)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("atlas repl — ctrl-d to exit")
	var buf strings.Builder
	prompt := "atlas> "
	for {
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			buf.Reset()
			prompt = "atlas> "
			continue
		}
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return fmt.Errorf("atlas: repl input: %w", err)
		}

		line.AppendHistory(input)
		buf.WriteString(input)
		buf.WriteString("\n")

		if needsContinuation(input) {
			prompt = "    -> "
			continue
		}

		src := buf.String()
		buf.Reset()
		prompt = "atlas> "

		evalAndPrint(engine, src)
	}
}

// needsContinuation is a shallow heuristic, grounded on smog's REPL
// bracket-balance check: a line ending with an opening brace or an
// opening parenthesis almost always starts a construct the user intends
// to keep typing.
func needsContinuation(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "(")
}

func evalAndPrint(engine *interp.Interpreter, src string) {
	prog, err := parser.Parse(src, "<repl>")
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		return
	}
	result, failure := engine.Eval(prog)
	if failure != nil {
		fmt.Fprintln(os.Stderr, failure.Render())
		return
	}
	if !value.Eq(result, value.Null) {
		fmt.Println(value.Display(result))
	}
}
