package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/pkg/bytecode"
	"atlas/pkg/parser"
)

// compile is the minimal parse+compile pipeline every test in this file
// drives, mirroring pkg/vm's own `run` helper's first two steps.
func compile(t *testing.T, src string) (*bytecode.Module, error) {
	t.Helper()
	prog, err := parser.Parse(src, "test.atlas")
	require.NoError(t, err)
	return Compile(prog)
}

func TestCompileEmptyProgramHaltsOnNull(t *testing.T) {
	module, err := compile(t, ``)
	require.NoError(t, err)
	dec, ok := bytecode.DecodeAt(module.Instructions, 0)
	require.True(t, ok)
	require.Equal(t, bytecode.OpNull, dec.Op)
}

func TestCompileLastExpressionStatementIsNotPopped(t *testing.T) {
	module, err := compile(t, `1; 2 + 3;`)
	require.NoError(t, err)

	var ops []bytecode.Opcode
	offset := 0
	for offset < len(module.Instructions) {
		dec, ok := bytecode.DecodeAt(module.Instructions, offset)
		require.True(t, ok)
		ops = append(ops, dec.Op)
		offset = dec.Next
	}
	require.Equal(t, bytecode.OpHalt, ops[len(ops)-1])
	require.NotContains(t, ops[len(ops)-2:], bytecode.OpPop)
}

func TestCompileRejectsReassignmentOfImmutableLocal(t *testing.T) {
	_, err := compile(t, `fn f() { let x = 1; x = 2; return x; }`)
	require.Error(t, err)
	var compErr *Error
	require.ErrorAs(t, err, &compErr)
}

func TestCompileRejectsReassignmentOfImmutableGlobal(t *testing.T) {
	_, err := compile(t, `let x = 1; x = 2;`)
	require.Error(t, err)
}

func TestCompileAllowsReassignmentOfMutableBinding(t *testing.T) {
	_, err := compile(t, `var x = 1; x = 2;`)
	require.NoError(t, err)
}

func TestCompileRejectsBreakOutsideLoop(t *testing.T) {
	_, err := compile(t, `break;`)
	require.Error(t, err)
}

func TestCompileRejectsContinueOutsideLoop(t *testing.T) {
	_, err := compile(t, `continue;`)
	require.Error(t, err)
}

func TestCompileRejectsCapturingEnclosingLocal(t *testing.T) {
	_, err := compile(t, `
		fn outer() {
			let x = 1;
			fn inner() { return x; }
			return inner;
		}
	`)
	require.Error(t, err)
}

func TestCompileAllowsReferencingGlobalFromNestedFunction(t *testing.T) {
	_, err := compile(t, `
		let x = 1;
		fn inner() { return x; }
	`)
	require.NoError(t, err)
}

func TestCompileFunctionLiteralRegistersEntry(t *testing.T) {
	module, err := compile(t, `fn add(a, b) { return a + b; }`)
	require.NoError(t, err)
	require.Len(t, module.Functions, 1)
	require.Equal(t, 2, module.Functions[0].Arity)
}

func TestCompileWhileLoopSupportsBreakAndContinue(t *testing.T) {
	_, err := compile(t, `
		var i = 0;
		while (i < 10) {
			i = i + 1;
			if (i == 3) { continue; }
			if (i == 5) { break; }
		}
	`)
	require.NoError(t, err)
}

func TestCompileForLoopWithPostClause(t *testing.T) {
	_, err := compile(t, `
		var total = 0;
		for (var i = 0; i < 5; i = i + 1) {
			total = total + i;
		}
	`)
	require.NoError(t, err)
}

func TestCompileMapLiteralLowersThroughBuiltinCall(t *testing.T) {
	module, err := compile(t, `let m = { "a": 1, "b": 2 };`)
	require.NoError(t, err)
	require.Contains(t, module.GlobalNames, "__map_from_pairs")
}

func TestCompileArrayLiteral(t *testing.T) {
	module, err := compile(t, `let xs = [1, 2, 3];`)
	require.NoError(t, err)

	found := false
	offset := 0
	for offset < len(module.Instructions) {
		dec, ok := bytecode.DecodeAt(module.Instructions, offset)
		require.True(t, ok)
		if dec.Op == bytecode.OpArray && dec.Operand == 3 {
			found = true
		}
		offset = dec.Next
	}
	require.True(t, found)
}

func TestCompileTooManyCallArgumentsRejected(t *testing.T) {
	args := ""
	for i := 0; i < 256; i++ {
		if i > 0 {
			args += ", "
		}
		args += "1"
	}
	_, err := compile(t, `fn f() {}
f(`+args+`);`)
	require.Error(t, err)
}
