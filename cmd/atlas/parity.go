package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"atlas/pkg/parity"
)

func newParityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parity <file.atlas>",
		Short: "Run a program through both the interpreter and the VM and report whether they agree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			src, err := os.ReadFile(filename)
			if err != nil {
				return fmt.Errorf("atlas: reading %s: %w", filename, err)
			}

			report := parity.Check(string(src), filename)
			if report.Match {
				fmt.Println("ok: engines agree")
				return nil
			}
			fmt.Fprintln(os.Stderr, "engines disagree:")
			for _, m := range report.Mismatches {
				fmt.Fprintln(os.Stderr, "  -", m)
			}
			return fmt.Errorf("atlas: parity check failed for %s", filename)
		},
	}
}
