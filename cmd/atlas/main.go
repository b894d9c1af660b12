// Command atlas is the Atlas scripting engine's CLI: run a program
// through either engine, disassemble compiled bytecode, check the two
// engines' parity on a program, or drop into an interactive REPL.
// Grounded on kristofer-smog's cmd/smog/main.go for the subcommand set
// (run/repl/compile/disassemble) and overall driver shape, rewired onto
// github.com/spf13/cobra's command tree (smog's main.go switches on bare
// os.Args instead) since cobra is part of this module's dependency
// stack and the rest of the example pack favors it for multi-subcommand
// CLIs over hand-rolled argument parsing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"atlas/internal/observ"
	"atlas/runtimeconfig"
)

var (
	configPath string
	verbosity  string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "atlas",
		Short:        "Atlas scripting engine: interpreter, VM, and tooling",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a runtimeconfig YAML policy file")
	root.PersistentFlags().StringVar(&verbosity, "log-level", "", "override the configured log level (debug|info|warn|error)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newReplCmd())
	root.AddCommand(newCompileCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newParityCmd())
	return root
}

// loadRuntime resolves the runtimeconfig.Config and its corresponding
// observ.Logger for a subcommand invocation, applying the --log-level
// override over whatever the config file (or its absence) set.
func loadRuntime() (runtimeconfig.Config, observ.Logger) {
	cfg, err := runtimeconfig.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cfg = runtimeconfig.Default()
	}
	if verbosity != "" {
		cfg.LogLevel = verbosity
	}
	logger := observ.New(os.Stderr, observ.ParseLevel(cfg.LogLevel))
	return cfg, logger
}
