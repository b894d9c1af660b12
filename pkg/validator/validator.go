// Package validator statically checks a bytecode module before any VM
// instance executes it. Running every check once up front, rather than
// defensively re-checking on every dispatch, is what lets pkg/vm treat a
// validated module's instruction stream as trusted (no bounds checks in
// the hot dispatch loop). Grounded on the four-pass structure of smog's
// pkg/vm error handling (errors.go's RuntimeError family) generalized
// into a dedicated pre-flight pass, since smog itself validates lazily
// as it interprets rather than up front.
package validator

import (
	"fmt"

	"atlas/pkg/bytecode"
	"atlas/pkg/value"
)

// Problem is one validation failure. A single Validate call collects
// every problem it finds rather than stopping at the first, so a module
// author sees the whole list at once.
type Problem struct {
	Kind    value.FailureKind
	Offset  int
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s at %d: %s", p.Kind, p.Offset, p.Message)
}

// Result is the outcome of validating a module: its decoded instruction
// list (useful to callers like the disassembler) plus any problems found.
type Result struct {
	Instructions []bytecode.Decoded
	Problems     []Problem
}

// OK reports whether the module is safe to execute.
func (r Result) OK() bool { return len(r.Problems) == 0 }

// ToFailure converts the first problem into a *value.Failure, the form
// pkg/vm's loader surfaces to a caller that tries to run an invalid module.
func (r Result) ToFailure() *value.Failure {
	if r.OK() {
		return nil
	}
	p := r.Problems[0]
	return value.NewFailure(p.Kind, p.Message, value.Span{})
}

// Validate runs all four passes against m and returns every problem found.
// Passes run in order because later passes assume earlier ones succeeded
// for the region they inspect (e.g. pass 4 trusts pass 1's decode); a
// pass that finds nothing still lets subsequent passes run, since an
// unknown opcode earlier in the stream shouldn't suppress a jump-bounds
// report later in the stream.
func Validate(m *bytecode.Module) Result {
	var problems []Problem

	instructions, decodeProblems := linearDecode(m)
	problems = append(problems, decodeProblems...)

	problems = append(problems, checkJumpTargets(m, instructions)...)
	problems = append(problems, checkIndices(m, instructions)...)
	problems = append(problems, checkStackDepths(m, instructions)...)

	return Result{Instructions: instructions, Problems: problems}
}

// linearDecode is pass 1: walk the instruction stream front to back,
// recording (offset, opcode, operand) for every instruction. It reports
// UnknownOpcode for an unrecognized byte and TruncatedInstruction when an
// opcode's operand bytes would run past the end of the module; in either
// case it stops decoding (the rest of the stream can't be trusted), which
// is why later passes only see the instructions collected so far. It also
// reports every OpAnd/OpOr, which a module must not contain, and keeps
// decoding past them.
func linearDecode(m *bytecode.Module) ([]bytecode.Decoded, []Problem) {
	var out []bytecode.Decoded
	var problems []Problem

	code := m.Instructions
	offset := 0
	for offset < len(code) {
		op, known := bytecode.KnownOpcode(code[offset])
		if !known {
			problems = append(problems, Problem{
				Kind:    value.BytecodeInvalid,
				Offset:  offset,
				Message: fmt.Sprintf("unknown opcode byte 0x%02X", code[offset]),
			})
			return out, problems
		}
		width := op.OperandWidth()
		if offset+1+width > len(code) {
			problems = append(problems, Problem{
				Kind:    value.BytecodeInvalid,
				Offset:  offset,
				Message: fmt.Sprintf("%s: operand bytes extend past end of module", op),
			})
			return out, problems
		}
		d, ok := bytecode.DecodeAt(code, offset)
		if !ok {
			// Unreachable given the checks above, but fall through safely.
			problems = append(problems, Problem{Kind: value.BytecodeInvalid, Offset: offset, Message: "malformed instruction"})
			return out, problems
		}
		if d.Op == bytecode.OpAnd || d.Op == bytecode.OpOr {
			problems = append(problems, Problem{
				Kind:    value.BytecodeInvalid,
				Offset:  offset,
				Message: fmt.Sprintf("%s: opcode must not appear in a module", d.Op),
			})
		}
		out = append(out, d)
		offset = d.Next
	}

	if len(out) > 0 {
		last := out[len(out)-1].Op
		if last != bytecode.OpHalt && last != bytecode.OpReturn {
			problems = append(problems, Problem{
				Kind:    value.BytecodeInvalid,
				Offset:  out[len(out)-1].Offset,
				Message: "last reachable instruction is not Halt or Return",
			})
		}
	}

	return out, problems
}

// checkJumpTargets is pass 2: every jump instruction's computed target
// must land on the start of a decoded instruction within the module,
// never mid-instruction or out of bounds.
func checkJumpTargets(m *bytecode.Module, instructions []bytecode.Decoded) []Problem {
	starts := make(map[int]bool, len(instructions))
	for _, d := range instructions {
		starts[d.Offset] = true
	}

	var problems []Problem
	for _, d := range instructions {
		if !d.Op.IsJump() {
			continue
		}
		target := d.JumpTarget()
		if target < 0 || target > len(m.Instructions) || (target < len(m.Instructions) && !starts[target]) {
			problems = append(problems, Problem{
				Kind:    value.BytecodeInvalid,
				Offset:  d.Offset,
				Message: fmt.Sprintf("%s: jump target %d out of bounds (module length %d)", d.Op, target, len(m.Instructions)),
			})
		}
	}
	return problems
}

// checkIndices is pass 3: every operand that indexes into the constant
// pool or the globals table must be in range.
func checkIndices(m *bytecode.Module, instructions []bytecode.Decoded) []Problem {
	var problems []Problem
	for _, d := range instructions {
		switch d.Op {
		case bytecode.OpConstant:
			if d.Operand < 0 || d.Operand >= len(m.Constants) {
				problems = append(problems, Problem{
					Kind:    value.BytecodeInvalid,
					Offset:  d.Offset,
					Message: fmt.Sprintf("constant index %d out of bounds (pool size %d)", d.Operand, len(m.Constants)),
				})
			}
		case bytecode.OpGetGlobal, bytecode.OpSetGlobal:
			if d.Operand < 0 || d.Operand >= len(m.GlobalNames) {
				problems = append(problems, Problem{
					Kind:    value.BytecodeInvalid,
					Offset:  d.Offset,
					Message: fmt.Sprintf("global index %d out of bounds (table size %d)", d.Operand, len(m.GlobalNames)),
				})
			}
		}
	}
	return problems
}

// checkStackDepths is pass 4: simulate the operand-stack depth an
// abstract interpreter would see, starting at 0. Depths are merged at
// jump targets by recording the first depth seen there; a later arrival
// at a different depth means the two control-flow paths disagree about
// how many values are live, which is always a compiler bug. An
// instruction that follows Jump, Loop, Return or Halt is not reached by
// fall-through, so it takes the depth recorded for it by a jump (if any)
// without being compared against the preceding instruction's depth.
func checkStackDepths(m *bytecode.Module, instructions []bytecode.Decoded) []Problem {
	var problems []Problem
	depthAt := make(map[int]int, len(instructions))
	depth := 0
	fallsThrough := true

	for _, d := range instructions {
		if recorded, seen := depthAt[d.Offset]; seen {
			if fallsThrough && recorded != depth {
				problems = append(problems, Problem{
					Kind:    value.BytecodeInvalid,
					Offset:  d.Offset,
					Message: fmt.Sprintf("stack depth mismatch at rejoin: %d vs %d", recorded, depth),
				})
			}
			depth = recorded
		} else {
			depthAt[d.Offset] = depth
		}

		needed := stackNeeded(d.Op, d.Operand)
		if depth < needed {
			problems = append(problems, Problem{
				Kind:    value.BytecodeInvalid,
				Offset:  d.Offset,
				Message: fmt.Sprintf("%s: stack underflow, depth %d needs %d", d.Op, depth, needed),
			})
			depth = needed
		}

		depth += d.Op.StackEffect(d.Operand)

		if d.Op.IsJump() {
			target := d.JumpTarget()
			if recorded, seen := depthAt[target]; seen {
				if recorded != depth {
					problems = append(problems, Problem{
						Kind:    value.BytecodeInvalid,
						Offset:  d.Offset,
						Message: fmt.Sprintf("jump to %d: stack depth mismatch %d vs %d", target, recorded, depth),
					})
				}
			} else {
				depthAt[target] = depth
			}
		}
		fallsThrough = d.Op != bytecode.OpJump && d.Op != bytecode.OpLoop &&
			d.Op != bytecode.OpReturn && d.Op != bytecode.OpHalt
	}
	return problems
}

// stackNeeded is the minimum stack depth op requires to execute without
// underflowing, derived from its documented StackEffect plus the values
// it pops before pushing a result.
func stackNeeded(op bytecode.Opcode, operand int) int {
	switch op {
	case bytecode.OpSetLocal, bytecode.OpSetGlobal, bytecode.OpNegate, bytecode.OpNot,
		bytecode.OpIsSome, bytecode.OpIsOk, bytecode.OpUnwrapOption, bytecode.OpUnwrapResult,
		bytecode.OpGetArrayLen, bytecode.OpPop, bytecode.OpDup, bytecode.OpJumpIfFalse,
		bytecode.OpGetIndex:
		return 1
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpEqual, bytecode.OpNotEqual, bytecode.OpLess, bytecode.OpLessEq,
		bytecode.OpGreater, bytecode.OpGreaterEq, bytecode.OpSetIndex, bytecode.OpAnd, bytecode.OpOr:
		return 2
	case bytecode.OpArray:
		return operand
	case bytecode.OpCall:
		return operand + 1
	case bytecode.OpReturn:
		return 1
	default:
		return 0
	}
}
