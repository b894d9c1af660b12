package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/pkg/bytecode"
	"atlas/pkg/value"
)

func moduleFromCode(code []byte, constants ...value.Value) *bytecode.Module {
	m := bytecode.NewModule()
	m.Constants = constants
	m.Instructions = code
	return m
}

func TestValidateAcceptsSimpleProgram(t *testing.T) {
	var code []byte
	code = bytecode.Emit(code, bytecode.OpConstant, 0)
	code = bytecode.Emit(code, bytecode.OpConstant, 1)
	code = bytecode.Emit(code, bytecode.OpAdd, 0)
	code = bytecode.Emit(code, bytecode.OpReturn, 0)

	m := moduleFromCode(code, value.Number(1), value.Number(2))
	result := Validate(m)
	require.True(t, result.OK(), "%v", result.Problems)
}

func TestValidateRejectsUnknownOpcode(t *testing.T) {
	code := []byte{0xFF}
	m := moduleFromCode(code)

	result := Validate(m)
	require.False(t, result.OK())
	require.Equal(t, value.BytecodeInvalid, result.Problems[0].Kind)
}

func TestValidateRejectsTruncatedInstruction(t *testing.T) {
	code := []byte{byte(bytecode.OpConstant), 0x01}
	m := moduleFromCode(code, value.Number(1), value.Number(2))

	result := Validate(m)
	require.False(t, result.OK())
}

func TestValidateRejectsJumpOutOfBounds(t *testing.T) {
	var code []byte
	code = bytecode.Emit(code, bytecode.OpJump, 9000)
	code = bytecode.Emit(code, bytecode.OpHalt, 0)

	m := moduleFromCode(code)
	result := Validate(m)
	require.False(t, result.OK())
}

func TestValidateRejectsBadConstantIndex(t *testing.T) {
	var code []byte
	code = bytecode.Emit(code, bytecode.OpConstant, 5)
	code = bytecode.Emit(code, bytecode.OpReturn, 0)

	m := moduleFromCode(code, value.Number(1))
	result := Validate(m)
	require.False(t, result.OK())
}

func TestValidateRejectsBadGlobalIndex(t *testing.T) {
	var code []byte
	code = bytecode.Emit(code, bytecode.OpGetGlobal, 3)
	code = bytecode.Emit(code, bytecode.OpReturn, 0)

	m := moduleFromCode(code)
	result := Validate(m)
	require.False(t, result.OK())
}

func TestValidateRejectsStackUnderflow(t *testing.T) {
	var code []byte
	code = bytecode.Emit(code, bytecode.OpAdd, 0)
	code = bytecode.Emit(code, bytecode.OpReturn, 0)

	m := moduleFromCode(code)
	result := Validate(m)
	require.False(t, result.OK())
}

func TestValidateRejectsMissingTerminator(t *testing.T) {
	var code []byte
	code = bytecode.Emit(code, bytecode.OpConstant, 0)
	code = bytecode.Emit(code, bytecode.OpPop, 0)

	m := moduleFromCode(code, value.Number(1))
	result := Validate(m)
	require.False(t, result.OK())
}

func TestValidateAcceptsDivergentPathsWithSameDepth(t *testing.T) {
	// if (c) { 1 } else { 2 }; return
	var code []byte
	code = bytecode.Emit(code, bytecode.OpConstant, 0) // condition
	jumpIfFalse := len(code)
	code = bytecode.Emit(code, bytecode.OpJumpIfFalse, 0)
	code = bytecode.Emit(code, bytecode.OpConstant, 1) // then
	jump := len(code)
	code = bytecode.Emit(code, bytecode.OpJump, 0)
	elseStart := len(code)
	code = bytecode.Emit(code, bytecode.OpConstant, 2) // else
	endStart := len(code)
	code = bytecode.Emit(code, bytecode.OpReturn, 0)

	patchJump16(code, jumpIfFalse, elseStart)
	patchJump16(code, jump, endStart)

	m := moduleFromCode(code, value.Bool(true), value.Number(1), value.Number(2))
	result := Validate(m)
	require.True(t, result.OK(), "%v", result.Problems)
}

func TestValidateRejectsMismatchedRejoinDepth(t *testing.T) {
	// Branch that leaves an extra value on one path: a validator bug
	// class this repo never lets a compiler ship.
	var code []byte
	code = bytecode.Emit(code, bytecode.OpConstant, 0)
	jumpIfFalse := len(code)
	code = bytecode.Emit(code, bytecode.OpJumpIfFalse, 0)
	code = bytecode.Emit(code, bytecode.OpConstant, 1)
	code = bytecode.Emit(code, bytecode.OpConstant, 1) // extra push on this path
	jump := len(code)
	code = bytecode.Emit(code, bytecode.OpJump, 0)
	elseStart := len(code)
	code = bytecode.Emit(code, bytecode.OpConstant, 2)
	endStart := len(code)
	code = bytecode.Emit(code, bytecode.OpReturn, 0)

	patchJump16(code, jumpIfFalse, elseStart)
	patchJump16(code, jump, endStart)

	m := moduleFromCode(code, value.Bool(true), value.Number(1), value.Number(2))
	result := Validate(m)
	require.False(t, result.OK())
}

// patchJump16 overwrites the 2-byte operand of the jump instruction
// starting at instrOffset so it targets target, matching Emit's
// little-endian signed-displacement encoding.
func patchJump16(code []byte, instrOffset, target int) {
	next := instrOffset + 3
	displacement := int16(target - next)
	u := uint16(displacement)
	code[instrOffset+1] = byte(u)
	code[instrOffset+2] = byte(u >> 8)
}
