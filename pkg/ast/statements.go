package ast

// ExpressionStmt evaluates an expression and discards the result,
// keeping only its side effects.
type ExpressionStmt struct {
	Span       Span
	Expression Expression
}

func (s *ExpressionStmt) SourceSpan() Span   { return s.Span }
func (s *ExpressionStmt) Accept(v StmtVisitor) any { return v.VisitExpressionStmt(s) }

// LetStmt declares an immutable binding: `let name = initializer`.
// Rebinding the name is a static/dynamic error; mutating an aggregate
// the binding holds (via copy-on-write write-back) is allowed.
type LetStmt struct {
	Span        Span
	Name        string
	Initializer Expression
}

func (s *LetStmt) SourceSpan() Span   { return s.Span }
func (s *LetStmt) Accept(v StmtVisitor) any { return v.VisitLetStmt(s) }

// VarStmt declares a mutable binding: `var name = initializer`.
type VarStmt struct {
	Span        Span
	Name        string
	Initializer Expression
}

func (s *VarStmt) SourceSpan() Span   { return s.Span }
func (s *VarStmt) Accept(v StmtVisitor) any { return v.VisitVarStmt(s) }

// BlockStmt is `{ stmt1; stmt2; ... }`, introducing a fresh environment
// frame whose parent is the enclosing scope.
type BlockStmt struct {
	Span       Span
	Statements []Stmt
}

func (s *BlockStmt) SourceSpan() Span   { return s.Span }
func (s *BlockStmt) Accept(v StmtVisitor) any { return v.VisitBlockStmt(s) }

// IfStmt is `if (Condition) Then else Else`; Else is nil when there is no
// else-branch.
type IfStmt struct {
	Span      Span
	Condition Expression
	Then      *BlockStmt
	Else      Stmt // *BlockStmt or *IfStmt (else-if chain), nil if absent
}

func (s *IfStmt) SourceSpan() Span   { return s.Span }
func (s *IfStmt) Accept(v StmtVisitor) any { return v.VisitIfStmt(s) }

// WhileStmt is `while (Condition) Body`.
type WhileStmt struct {
	Span      Span
	Condition Expression
	Body      *BlockStmt
}

func (s *WhileStmt) SourceSpan() Span   { return s.Span }
func (s *WhileStmt) Accept(v StmtVisitor) any { return v.VisitWhileStmt(s) }

// ForStmt is a C-style `for (Init; Condition; Post) Body`. Any of Init,
// Condition, Post may be nil (an omitted clause).
type ForStmt struct {
	Span      Span
	Init      Stmt
	Condition Expression
	Post      Expression
	Body      *BlockStmt
}

func (s *ForStmt) SourceSpan() Span   { return s.Span }
func (s *ForStmt) Accept(v StmtVisitor) any { return v.VisitForStmt(s) }

// ReturnStmt unwinds to the enclosing call boundary with Value (Null if
// the return has no expression).
type ReturnStmt struct {
	Span  Span
	Value Expression // nil for a bare `return;`
}

func (s *ReturnStmt) SourceSpan() Span   { return s.Span }
func (s *ReturnStmt) Accept(v StmtVisitor) any { return v.VisitReturnStmt(s) }

// BreakStmt unwinds to the enclosing loop and terminates it.
type BreakStmt struct {
	Span Span
}

func (s *BreakStmt) SourceSpan() Span   { return s.Span }
func (s *BreakStmt) Accept(v StmtVisitor) any { return v.VisitBreakStmt(s) }

// ContinueStmt unwinds to the enclosing loop's post/condition check.
type ContinueStmt struct {
	Span Span
}

func (s *ContinueStmt) SourceSpan() Span   { return s.Span }
func (s *ContinueStmt) Accept(v StmtVisitor) any { return v.VisitContinueStmt(s) }

// FunctionDeclStmt is sugar for `let Name = fn(...) { ... }`: a named
// function declaration at statement level. Kept as a distinct node
// (rather than always desugaring in the parser) so stack traces can use
// Name directly instead of "<anonymous>".
type FunctionDeclStmt struct {
	Span    Span
	Name    string
	Literal *FunctionLiteral
}

func (s *FunctionDeclStmt) SourceSpan() Span   { return s.Span }
func (s *FunctionDeclStmt) Accept(v StmtVisitor) any { return v.VisitFunctionDeclStmt(s) }
