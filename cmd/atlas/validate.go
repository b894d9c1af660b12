package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"atlas/pkg/bytecode"
	"atlas/pkg/compiler"
	"atlas/pkg/parser"
	"atlas/pkg/validator"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Compile (or load) a module and run the bytecode validator against it, without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := loadModuleOrCompile(args[0])
			if err != nil {
				return err
			}

			res := validator.Validate(module)
			if res.OK() {
				fmt.Println("ok: module passes validation")
				return nil
			}
			for _, p := range res.Problems {
				fmt.Fprintln(os.Stderr, p.String())
			}
			return fmt.Errorf("atlas: module failed validation with %d problem(s)", len(res.Problems))
		},
	}
}

func loadModuleOrCompile(filename string) (*bytecode.Module, error) {
	if isBytecodeFile(filename) {
		return loadModule(filename)
	}
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("atlas: reading %s: %w", filename, err)
	}
	prog, err := parser.Parse(string(src), filename)
	if err != nil {
		return nil, fmt.Errorf("atlas: parse error: %w", err)
	}
	module, err := compiler.Compile(prog)
	if err != nil {
		return nil, fmt.Errorf("atlas: compile error: %w", err)
	}
	return module, nil
}
