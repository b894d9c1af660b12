package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"atlas/pkg/bytecode"
	"atlas/pkg/value"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file.atbc>",
		Short: "Print a human-readable disassembly of a compiled bytecode file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := loadModule(args[0])
			if err != nil {
				return err
			}
			printDisassembly(module)
			return nil
		},
	}
}

// printDisassembly mirrors kristofer-smog's cmd/smog disassembleFile
// layout (constant pool, then the function table and the globals table,
// then a linear instruction listing), generalized
// from smog's message-send operand decoding to Atlas's plain index/jump
// operands.
func printDisassembly(m *bytecode.Module) {
	fmt.Println("Constants:")
	if len(m.Constants) == 0 {
		fmt.Println("  (empty)")
	}
	for i, c := range m.Constants {
		fmt.Printf("  [%d] %s: %s\n", i, c.TypeName(), value.Display(c))
	}

	fmt.Println("\nFunctions:")
	if len(m.Functions) == 0 {
		fmt.Println("  (empty)")
	}
	for _, fn := range m.Functions {
		fmt.Printf("  %s/%d  locals=%d  entry=%d\n", fn.Name, fn.Arity, fn.LocalCount, fn.EntryOffset)
	}

	fmt.Println("\nGlobals:")
	for i, name := range m.GlobalNames {
		fmt.Printf("  [%d] %s\n", i, name)
	}

	fmt.Println("\nInstructions:")
	offset := 0
	for offset < len(m.Instructions) {
		dec, ok := bytecode.DecodeAt(m.Instructions, offset)
		if !ok {
			fmt.Printf("  %4d: <invalid>\n", offset)
			break
		}
		if dec.Op.OperandWidth() > 0 {
			fmt.Printf("  %4d: %-14s %d\n", dec.Offset, dec.Op, dec.Operand)
		} else {
			fmt.Printf("  %4d: %s\n", dec.Offset, dec.Op)
		}
		offset = dec.Next
	}
}
