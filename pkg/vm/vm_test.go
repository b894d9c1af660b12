package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/pkg/bytecode"
	"atlas/pkg/compiler"
	"atlas/pkg/parser"
	"atlas/pkg/value"
)

// run compiles and executes src, the same two-step pipeline pkg/parity
// drives the VM through.
func run(t *testing.T, src string, opts ...Option) (value.Value, *value.Failure) {
	t.Helper()
	prog, err := parser.Parse(src, "test.atlas")
	require.NoError(t, err)
	module, err := compiler.Compile(prog)
	require.NoError(t, err)
	return New(opts...).Run(module)
}

func TestRunReturnsLastExpressionStatementValue(t *testing.T) {
	result, fail := run(t, `1; 2 + 3;`)
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(5)))
}

func TestArithmeticIsNumericOnly(t *testing.T) {
	_, fail := run(t, `"a" + "b";`)
	require.NotNil(t, fail)
	require.Equal(t, value.TypeError, fail.Kind)
}

func TestDivisionByZeroFails(t *testing.T) {
	_, fail := run(t, `1 / 0;`)
	require.NotNil(t, fail)
	require.Equal(t, value.DivisionByZero, fail.Kind)
}

func TestModuloByZeroFails(t *testing.T) {
	_, fail := run(t, `1 % 0;`)
	require.NotNil(t, fail)
	require.Equal(t, value.DivisionByZero, fail.Kind)
}

func TestStructuralEqualityNeverFailsAcrossKinds(t *testing.T) {
	result, fail := run(t, `1 == "1";`)
	require.Nil(t, fail)
	require.False(t, result.AsBool())
}

func TestComparisonRejectsIncomparableTypes(t *testing.T) {
	_, fail := run(t, `1 < "x";`)
	require.NotNil(t, fail)
	require.Equal(t, value.TypeError, fail.Kind)
}

func TestLogicalAndShortCircuits(t *testing.T) {
	result, fail := run(t, `false && (1 / 0 == 0);`)
	require.Nil(t, fail)
	require.False(t, result.AsBool())
}

func TestLogicalOrShortCircuits(t *testing.T) {
	result, fail := run(t, `true || (1 / 0 == 0);`)
	require.Nil(t, fail)
	require.True(t, result.AsBool())
}

func TestUndefinedGlobalReadFails(t *testing.T) {
	_, fail := run(t, `missing;`)
	require.NotNil(t, fail)
	require.Equal(t, value.UndefinedGlobal, fail.Kind)
}

func TestLetBindingRejectsReassignmentAtCompileTime(t *testing.T) {
	prog, err := parser.Parse(`let x = 1; x = 2;`, "test.atlas")
	require.NoError(t, err)
	_, err = compiler.Compile(prog)
	require.Error(t, err)
}

func TestVarBindingAllowsReassignment(t *testing.T) {
	result, fail := run(t, `var x = 1; x = 2; x;`)
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(2)))
}

func TestWhileLoopAccumulates(t *testing.T) {
	result, fail := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		sum;
	`)
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(10)))
}

func TestForLoopWithBreakAndContinue(t *testing.T) {
	result, fail := run(t, `
		var sum = 0;
		for (var i = 0; i < 10; i = i + 1) {
			if (i == 7) { break; }
			if (i % 2 == 0) { continue; }
			sum = sum + i;
		}
		sum;
	`)
	require.Nil(t, fail)
	// 1 + 3 + 5 = 9 (evens skipped, loop stops before 7 contributes)
	require.True(t, value.Eq(result, value.Int(9)))
}

func TestArrayIndexOutOfBoundsFails(t *testing.T) {
	_, fail := run(t, `[1][5];`)
	require.NotNil(t, fail)
	require.Equal(t, value.IndexOutOfBounds, fail.Kind)
}

func TestMapIndexMissingKeyYieldsNull(t *testing.T) {
	result, fail := run(t, `{}["missing"];`)
	require.Nil(t, fail)
	require.True(t, result.IsNull())
}

func TestMapLiteralBuildsEntries(t *testing.T) {
	result, fail := run(t, `{"a": 1, "b": 2}["b"];`)
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(2)))
}

func TestMapLiteralRejectsUnhashableKey(t *testing.T) {
	_, fail := run(t, `{[1]: 2};`)
	require.NotNil(t, fail)
	require.Equal(t, value.UnhashableKey, fail.Kind)
}

func TestIndexSetWritesBackThroughVariable(t *testing.T) {
	result, fail := run(t, `
		let arr = [1, 2];
		arr[0] = 99;
		arr[0];
	`)
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(99)))
}

func TestBuiltinPushWritesBackIntoLetBoundArray(t *testing.T) {
	result, fail := run(t, `
		let arr = [1];
		push(arr, 2);
		arr;
	`)
	require.Nil(t, fail)
	require.Equal(t, 2, result.AsArray().Len())
	require.True(t, value.Eq(result.AsArray().Get(1), value.Int(2)))
}

func TestUserFunctionCallAndReturn(t *testing.T) {
	result, fail := run(t, `
		fn add(a, b) { return a + b; }
		add(3, 4);
	`)
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(7)))
}

func TestUserFunctionShadowsBuiltinOfSameName(t *testing.T) {
	result, fail := run(t, `
		fn len(x) { return "shadowed"; }
		len(1);
	`)
	require.Nil(t, fail)
	require.Equal(t, "shadowed", result.AsString())
}

func TestCallArityMismatchFails(t *testing.T) {
	_, fail := run(t, `
		fn f(a) { return a; }
		f();
	`)
	require.NotNil(t, fail)
	require.Equal(t, value.ArityMismatch, fail.Kind)
}

func TestRecursiveFunctionCall(t *testing.T) {
	result, fail := run(t, `
		fn fact(n) {
			if (n < 2) { return 1; }
			return n * fact(n - 1);
		}
		fact(5);
	`)
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(120)))
}

func TestDeepRecursionRaisesStackOverflow(t *testing.T) {
	_, fail := run(t, `
		fn loop(n) { return loop(n + 1); }
		loop(0);
	`, WithMaxCallDepth(64))
	require.NotNil(t, fail)
	require.Equal(t, value.StackOverflow, fail.Kind)
}

func TestPrintWritesToOutputSink(t *testing.T) {
	var out strings.Builder
	_, fail := run(t, `print("hi");`, WithOutput(&out))
	require.Nil(t, fail)
	require.Equal(t, "\"hi\"\n", out.String())
}

func TestCallingNonFunctionFails(t *testing.T) {
	_, fail := run(t, `let x = 1; x();`)
	require.NotNil(t, fail)
	require.Equal(t, value.TypeError, fail.Kind)
}

func TestInvalidModuleFailsValidationBeforeExecuting(t *testing.T) {
	module := bytecode.NewModule()
	module.Instructions = []byte{0xFF} // not a known opcode
	_, fail := New().Run(module)
	require.NotNil(t, fail)
	require.Equal(t, value.BytecodeInvalid, fail.Kind)
}
