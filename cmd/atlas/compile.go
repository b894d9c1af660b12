package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"atlas/pkg/bytecode"
	"atlas/pkg/compiler"
	"atlas/pkg/parser"
)

func newCompileCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "compile <input.atlas> [output.atbc]",
		Short: "Compile an Atlas source file to a .atbc bytecode file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			out := outputPath
			if len(args) == 2 {
				out = args[1]
			}
			if out == "" {
				out = defaultCompileOutput(input)
			}

			src, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("atlas: reading %s: %w", input, err)
			}
			prog, err := parser.Parse(string(src), input)
			if err != nil {
				return fmt.Errorf("atlas: parse error: %w", err)
			}
			module, err := compiler.Compile(prog)
			if err != nil {
				return fmt.Errorf("atlas: compile error: %w", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("atlas: creating %s: %w", out, err)
			}
			defer f.Close()
			if err := bytecode.Encode(module, f); err != nil {
				return fmt.Errorf("atlas: writing %s: %w", out, err)
			}
			fmt.Printf("compiled %s -> %s\n", input, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output .atbc path (default: input with .atbc extension)")
	return cmd
}

func defaultCompileOutput(input string) string {
	if strings.HasSuffix(input, ".atlas") {
		return strings.TrimSuffix(input, ".atlas") + ".atbc"
	}
	return input + ".atbc"
}
