package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/pkg/ast"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse(src, "test.atlas")
	require.NoError(t, err)
	return prog
}

func TestParsesLetAndVar(t *testing.T) {
	prog := parseOK(t, `let x = 1; var y = 2;`)
	require.Len(t, prog.Statements, 2)
	let, ok := prog.Statements[0].(*ast.LetStmt)
	require.True(t, ok)
	require.Equal(t, "x", let.Name)
	v, ok := prog.Statements[1].(*ast.VarStmt)
	require.True(t, ok)
	require.Equal(t, "y", v.Name)
}

func TestOperatorPrecedence(t *testing.T) {
	prog := parseOK(t, `1 + 2 * 3;`)
	stmt := prog.Statements[0].(*ast.ExpressionStmt)
	bin := stmt.Expression.(*ast.Binary)
	require.Equal(t, ast.OpAdd, bin.Operator)
	rhs := bin.Right.(*ast.Binary)
	require.Equal(t, ast.OpMul, rhs.Operator)
}

func TestLogicalShortCircuitGrouping(t *testing.T) {
	prog := parseOK(t, `a || b && c;`)
	stmt := prog.Statements[0].(*ast.ExpressionStmt)
	or := stmt.Expression.(*ast.Logical)
	require.Equal(t, ast.OpOr, or.Operator)
	_, ok := or.Right.(*ast.Logical)
	require.True(t, ok)
}

func TestIfElseIfChain(t *testing.T) {
	prog := parseOK(t, `if (a) { 1; } else if (b) { 2; } else { 3; }`)
	ifStmt := prog.Statements[0].(*ast.IfStmt)
	elseIf, ok := ifStmt.Else.(*ast.IfStmt)
	require.True(t, ok)
	_, ok = elseIf.Else.(*ast.BlockStmt)
	require.True(t, ok)
}

func TestForLoopAllClauses(t *testing.T) {
	prog := parseOK(t, `for (let i = 0; i < 10; i = i + 1) { print(i); }`)
	forStmt := prog.Statements[0].(*ast.ForStmt)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Condition)
	require.NotNil(t, forStmt.Post)
}

func TestForLoopAllClausesOmitted(t *testing.T) {
	prog := parseOK(t, `for (;;) { break; }`)
	forStmt := prog.Statements[0].(*ast.ForStmt)
	require.Nil(t, forStmt.Init)
	require.Nil(t, forStmt.Condition)
	require.Nil(t, forStmt.Post)
}

func TestFunctionDeclAndBorrowParam(t *testing.T) {
	prog := parseOK(t, `fn add(a, borrow b) { return a + b; }`)
	decl := prog.Statements[0].(*ast.FunctionDeclStmt)
	require.Equal(t, "add", decl.Name)
	require.Len(t, decl.Literal.Params, 2)
	require.False(t, decl.Literal.Params[0].Borrow)
	require.True(t, decl.Literal.Params[1].Borrow)
}

func TestAnonymousFunctionLiteral(t *testing.T) {
	prog := parseOK(t, `let f = fn(x) { return x; };`)
	let := prog.Statements[0].(*ast.LetStmt)
	lit, ok := let.Initializer.(*ast.FunctionLiteral)
	require.True(t, ok)
	require.Equal(t, "", lit.Name)
}

func TestIndexGetAndAssign(t *testing.T) {
	prog := parseOK(t, `a[0] = a[1];`)
	stmt := prog.Statements[0].(*ast.ExpressionStmt)
	set := stmt.Expression.(*ast.IndexSet)
	_, ok := set.Value.(*ast.IndexGet)
	require.True(t, ok)
}

func TestArrayAndMapLiterals(t *testing.T) {
	prog := parseOK(t, `[1, 2, 3]; {"a": 1, "b": 2};`)
	arr := prog.Statements[0].(*ast.ExpressionStmt).Expression.(*ast.ArrayLiteral)
	require.Len(t, arr.Elements, 3)
	m := prog.Statements[1].(*ast.ExpressionStmt).Expression.(*ast.MapLiteral)
	require.Len(t, m.Entries, 2)
}

func TestCallExpression(t *testing.T) {
	prog := parseOK(t, `foo(1, 2, bar(3));`)
	call := prog.Statements[0].(*ast.ExpressionStmt).Expression.(*ast.Call)
	require.Len(t, call.Args, 3)
}

func TestInvalidAssignmentTargetIsError(t *testing.T) {
	_, err := Parse(`1 = 2;`, "test.atlas")
	require.Error(t, err)
}

func TestUnterminatedBlockIsError(t *testing.T) {
	_, err := Parse(`if (true) { 1;`, "test.atlas")
	require.Error(t, err)
}
