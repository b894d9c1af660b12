// Package parity drives one program through both Atlas engines — the
// tree-walking interpreter (pkg/interp) and the bytecode VM
// (pkg/compiler + pkg/vm) — and reports whether they agree on terminal
// value, captured output, and failure kind and message. There is no teacher
// analogue for this package (a single-engine interpreter has nothing to
// compare against); it is grounded directly on spec.md §4.6's
// description of what "agree" means between the two engines, expressed
// with the same Option/output-capture plumbing pkg/interp and pkg/vm
// already share.
package parity

import (
	"strings"

	"atlas/pkg/compiler"
	"atlas/pkg/interp"
	"atlas/pkg/parser"
	"atlas/pkg/value"
	"atlas/pkg/vm"
)

// Report is the outcome of checking one program against both engines.
type Report struct {
	Source string

	InterpValue   value.Value
	InterpOutput  string
	InterpFailure *value.Failure

	// Compiled is false when pkg/compiler rejected the program outright
	// (an illegal capture, or an assignment the fixed opcode set can't
	// express — see pkg/compiler's package doc). That is an accepted,
	// documented divergence point: the VM enforces statically what the
	// interpreter only catches at the moment of the offending
	// assignment, so a compile rejection is only a parity problem if the
	// interpreter did NOT also fail with TypeError somewhere in the run.
	Compiled    bool
	CompileErr  error
	VMValue     value.Value
	VMOutput    string
	VMFailure   *value.Failure

	// Match is true if the two engines' observable results agree (or
	// diverge only at the documented compile-time-rejection point).
	Match bool
	// Mismatches lists every field that disagreed, empty when Match.
	Mismatches []string
}

// Check parses src once and runs it through both engines, comparing
// their externally observable behavior. file is used only for
// diagnostics (source spans in parse/compile errors).
func Check(src, file string) *Report {
	r := &Report{Source: src}

	prog, parseErr := parser.Parse(src, file)
	if parseErr != nil {
		// A program that doesn't parse never reaches either engine;
		// there is nothing to compare.
		r.Match = true
		return r
	}

	var interpOut strings.Builder
	r.InterpValue, r.InterpFailure = interp.New(interp.WithOutput(&interpOut)).Eval(prog)
	r.InterpOutput = interpOut.String()

	module, compileErr := compiler.Compile(prog)
	r.CompileErr = compileErr
	r.Compiled = compileErr == nil
	if !r.Compiled {
		r.Match = r.InterpFailure != nil && r.InterpFailure.Kind == value.TypeError
		if !r.Match {
			r.Mismatches = append(r.Mismatches, "compiler rejected a program the interpreter did not fail with TypeError: "+compileErr.Error())
		}
		return r
	}

	var vmOut strings.Builder
	r.VMValue, r.VMFailure = vm.New(vm.WithOutput(&vmOut)).Run(module)
	r.VMOutput = vmOut.String()

	r.Mismatches = diff(r)
	r.Match = len(r.Mismatches) == 0
	return r
}

func diff(r *Report) []string {
	var problems []string

	switch {
	case r.InterpFailure == nil && r.VMFailure == nil:
		if !value.Eq(r.InterpValue, r.VMValue) {
			problems = append(problems, "terminal value differs: interp="+value.Display(r.InterpValue)+" vm="+value.Display(r.VMValue))
		}
	case r.InterpFailure != nil && r.VMFailure != nil:
		if r.InterpFailure.Kind != r.VMFailure.Kind {
			problems = append(problems, "failure kind differs: interp="+string(r.InterpFailure.Kind)+" vm="+string(r.VMFailure.Kind))
		} else if r.InterpFailure.Message != r.VMFailure.Message {
			problems = append(problems, "failure message differs: interp="+r.InterpFailure.Message+" vm="+r.VMFailure.Message)
		}
	default:
		problems = append(problems, "one engine failed and the other did not")
	}

	if r.InterpOutput != r.VMOutput {
		problems = append(problems, "captured output differs")
	}

	return problems
}
