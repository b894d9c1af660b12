// Package ast defines Atlas's abstract syntax tree: the shape the
// interpreter (pkg/interp) walks directly and that pkg/compiler
// lowers to bytecode (pkg/bytecode) for the VM (pkg/vm). Every node
// carries a Span so both engines can report failures at the same source
// location after canonicalization.
//
// The node/visitor split follows nilan's ast package (interfaces.go,
// expressions.go, statements.go): every Expression and Stmt accepts a
// visitor rather than exposing its fields to a type switch, so adding a
// new traversal (the interpreter, a future printer, a future compiler)
// never touches the node definitions themselves.
package ast

import "atlas/pkg/value"

// Span locates a node in source text. It is the AST-side counterpart of
// value.Span; the two share the same shape so the parity harness can
// canonicalize one against the other without a conversion step.
type Span = value.Span

// Node is the base interface every AST node implements.
type Node interface {
	SourceSpan() Span
}

// Expression is any node that produces a Value when evaluated.
type Expression interface {
	Node
	Accept(v ExpressionVisitor) any
}

// Stmt is any node that executes for its effect and does not itself
// produce a Value (though it may contain expressions that do).
type Stmt interface {
	Node
	Accept(v StmtVisitor) any
}

// Program is the root node: a flat sequence of top-level statements.
type Program struct {
	Statements []Stmt
}

// ExpressionVisitor operates on every Expression variant. Implemented by
// pkg/interp's evaluator (and by any future AST-level tooling such as a
// printer or static checker).
type ExpressionVisitor interface {
	VisitLiteral(e *Literal) any
	VisitArrayLiteral(e *ArrayLiteral) any
	VisitMapLiteral(e *MapLiteral) any
	VisitVariable(e *Variable) any
	VisitAssign(e *Assign) any
	VisitBinary(e *Binary) any
	VisitUnary(e *Unary) any
	VisitLogical(e *Logical) any
	VisitCall(e *Call) any
	VisitIndexGet(e *IndexGet) any
	VisitIndexSet(e *IndexSet) any
	VisitFunctionLiteral(e *FunctionLiteral) any
	VisitGrouping(e *Grouping) any
}

// StmtVisitor operates on every Stmt variant.
type StmtVisitor interface {
	VisitExpressionStmt(s *ExpressionStmt) any
	VisitLetStmt(s *LetStmt) any
	VisitVarStmt(s *VarStmt) any
	VisitBlockStmt(s *BlockStmt) any
	VisitIfStmt(s *IfStmt) any
	VisitWhileStmt(s *WhileStmt) any
	VisitForStmt(s *ForStmt) any
	VisitReturnStmt(s *ReturnStmt) any
	VisitBreakStmt(s *BreakStmt) any
	VisitContinueStmt(s *ContinueStmt) any
	VisitFunctionDeclStmt(s *FunctionDeclStmt) any
}
