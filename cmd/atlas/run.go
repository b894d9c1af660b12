package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"atlas/internal/observ"
	"atlas/pkg/bytecode"
	"atlas/pkg/compiler"
	"atlas/pkg/interp"
	"atlas/pkg/parser"
	"atlas/pkg/value"
	"atlas/pkg/vm"
	"atlas/runtimeconfig"
)

func newRunCmd() *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute an Atlas source (.atlas) or compiled bytecode (.atbc) file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := loadRuntime()
			filename := args[0]
			done := logger.WithStageTimer("run")
			defer done()

			result, failure, err := runFile(filename, engine, cfg, logger)
			if err != nil {
				return err
			}
			if failure != nil {
				fmt.Fprintln(os.Stderr, failure.Render())
				os.Exit(1)
			}
			fmt.Println(value.Display(result))
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "vm", "execution engine: vm|interp")
	return cmd
}

func runFile(filename, engine string, cfg runtimeconfig.Config, logger observ.Logger) (value.Value, *value.Failure, error) {
	if isBytecodeFile(filename) {
		module, err := loadModule(filename)
		if err != nil {
			return value.Null, nil, err
		}
		result, failure := runModule(module, cfg)
		return result, failure, nil
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		return value.Null, nil, fmt.Errorf("atlas: reading %s: %w", filename, err)
	}
	prog, err := parser.Parse(string(src), filename)
	if err != nil {
		return value.Null, nil, fmt.Errorf("atlas: parse error: %w", err)
	}

	if engine == "interp" {
		opts := []interp.Option{interp.WithOutput(os.Stdout), interp.WithPermissionChecker(cfg.PermissionChecker())}
		if cfg.MaxCallDepth > 0 {
			opts = append(opts, interp.WithMaxCallDepth(cfg.MaxCallDepth))
		}
		result, failure := interp.New(opts...).Eval(prog)
		return result, failure, nil
	}

	module, err := compiler.Compile(prog)
	if err != nil {
		return value.Null, nil, fmt.Errorf("atlas: compile error: %w", err)
	}
	result, failure := runModule(module, cfg)
	return result, failure, nil
}

func runModule(module *bytecode.Module, cfg runtimeconfig.Config) (value.Value, *value.Failure) {
	opts := []vm.Option{vm.WithOutput(os.Stdout), vm.WithPermissionChecker(cfg.PermissionChecker())}
	if cfg.MaxCallDepth > 0 {
		opts = append(opts, vm.WithMaxCallDepth(cfg.MaxCallDepth))
	}
	return vm.New(opts...).Run(module)
}

func isBytecodeFile(filename string) bool {
	return len(filename) > 5 && filename[len(filename)-5:] == ".atbc"
}

func loadModule(filename string) (*bytecode.Module, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("atlas: reading %s: %w", filename, err)
	}
	defer f.Close()
	module, err := bytecode.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("atlas: decoding %s: %w", filename, err)
	}
	return module, nil
}
