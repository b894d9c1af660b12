// Package interp is the tree-walking interpreter: a single-threaded
// recursive evaluator over pkg/ast, grounded on nilan's
// interpreter.TreeWalkInterpreter (visitor-driven Eval/Execute, a
// panic/recover discipline for propagating non-local signals) but
// generalized from nilan's untyped `any` value model and `bool`-returning
// checks to Atlas's shared value.Value/Failure contract, its richer
// statement set (for, break, continue, function declarations), and its
// closure capture rules.
package interp

import (
	"io"

	"atlas/pkg/ast"
	"atlas/pkg/builtin"
	"atlas/pkg/value"
)

// PermissionChecker reports whether perm has been granted, letting the
// embedding host (runtimeconfig) decide the policy without this package
// knowing anything about configuration file formats.
type PermissionChecker func(perm builtin.Permission) bool

// Interpreter holds everything one evaluation needs: the active
// environment chain, the builtin registry, the output sink, and a
// call-depth counter for stack-overflow detection. An Interpreter is not
// safe for concurrent use. Repeated Eval calls on one Interpreter share
// its global environment, so bindings made by one call stay visible to
// the next.
type Interpreter struct {
	global   *Environment
	env      *Environment
	builtins *builtin.Registry
	output   io.Writer
	checkPerm PermissionChecker

	callDepth    int
	maxCallDepth int
	callStack    []value.StackFrame
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithOutput directs print's side effects to w instead of io.Discard.
func WithOutput(w io.Writer) Option { return func(i *Interpreter) { i.output = w } }

// WithBuiltins replaces the default builtin registry.
func WithBuiltins(r *builtin.Registry) Option { return func(i *Interpreter) { i.builtins = r } }

// WithPermissionChecker installs the policy builtins consult via ctx.Check.
func WithPermissionChecker(c PermissionChecker) Option {
	return func(i *Interpreter) { i.checkPerm = c }
}

// WithMaxCallDepth bounds the host-stack recursion depth before a call
// raises StackOverflow instead of crashing the Go process.
func WithMaxCallDepth(n int) Option { return func(i *Interpreter) { i.maxCallDepth = n } }

const defaultMaxCallDepth = 2048

// New builds an Interpreter with a fresh global environment.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		global:       NewEnvironment(),
		builtins:     builtin.NewRegistry(),
		output:       io.Discard,
		maxCallDepth: defaultMaxCallDepth,
	}
	i.env = i.global
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Eval runs program's top-level statements in the global environment and
// returns the value of its last expression statement (Null if the
// program is empty or ends in a non-expression statement), or the
// Failure that aborted it.
func (i *Interpreter) Eval(program *ast.Program) (result value.Value, failure *value.Failure) {
	defer func() { recoverFailure(recover(), &failure) }()

	last := value.Null
	for _, stmt := range program.Statements {
		if es, ok := stmt.(*ast.ExpressionStmt); ok {
			last = i.evaluate(es.Expression)
			continue
		}
		i.execute(stmt)
		last = value.Null
	}
	return last, nil
}

// evaluate dispatches e to this interpreter via the visitor pattern and
// returns its Value; failures propagate by panicking (see signals.go),
// so every call site can treat evaluate as total.
func (i *Interpreter) evaluate(e ast.Expression) value.Value {
	return e.Accept(i).(value.Value)
}

// execute dispatches s; statements never produce a Value to the caller.
func (i *Interpreter) execute(s ast.Stmt) {
	s.Accept(i)
}

// fail builds a Failure at span and raises it, attaching the active call
// stack outermost-first so Render's innermost-first reverse-iteration
// prints correctly (see value.Failure.Render).
func (i *Interpreter) fail(kind value.FailureKind, message string, span ast.Span) {
	f := value.NewFailure(kind, message, span)
	for _, frame := range i.callStack {
		f = f.WithFrame(frame)
	}
	raise(f)
}

// undefinedKind picks UndefinedGlobal when the lookup happened in the
// outermost (global) scope with no enclosing call active, UndefinedLocal
// otherwise. The interpreter has no separate globals table the way the
// VM does (it's one environment chain throughout), so this is the
// documented approximation of the VM's Get/SetGlobal vs Get/SetLocal
// split; see DESIGN.md.
func (i *Interpreter) undefinedKind() value.FailureKind {
	if i.env == i.global {
		return value.UndefinedGlobal
	}
	return value.UndefinedLocal
}

// --- Expression visitors ---

func (i *Interpreter) VisitLiteral(e *ast.Literal) any { return e.Value }

func (i *Interpreter) VisitArrayLiteral(e *ast.ArrayLiteral) any {
	items := make([]value.Value, len(e.Elements))
	for idx, elem := range e.Elements {
		items[idx] = i.evaluate(elem)
	}
	return value.FromArray(value.NewArray(items))
}

func (i *Interpreter) VisitMapLiteral(e *ast.MapLiteral) any {
	m := value.NewMap()
	for _, entry := range e.Entries {
		k := i.evaluate(entry.Key)
		if !value.Hashable(k) {
			i.fail(value.UnhashableKey, "map key of type "+k.TypeName()+" is not hashable", e.Span)
		}
		v := i.evaluate(entry.Value)
		m = m.Insert(k, v)
	}
	return value.FromMap(m)
}

func (i *Interpreter) VisitVariable(e *ast.Variable) any {
	v, ok := i.env.Get(e.Name)
	if !ok {
		i.fail(i.undefinedKind(), "undefined name '"+e.Name+"'", e.Span)
	}
	return v
}

func (i *Interpreter) VisitAssign(e *ast.Assign) any {
	v := i.evaluate(e.Value)
	ok, immutable := i.env.Assign(e.Name, v)
	if immutable {
		i.fail(value.TypeError, "cannot assign to immutable binding '"+e.Name+"'", e.Span)
	}
	if !ok {
		i.fail(i.undefinedKind(), "undefined name '"+e.Name+"'", e.Span)
	}
	return v
}

func (i *Interpreter) VisitGrouping(e *ast.Grouping) any {
	return i.evaluate(e.Expression)
}

func (i *Interpreter) VisitLogical(e *ast.Logical) any {
	left := i.evaluate(e.Left)
	switch e.Operator {
	case ast.OpAnd:
		if !value.Truthiness(left) {
			return left
		}
		return i.evaluate(e.Right)
	case ast.OpOr:
		if value.Truthiness(left) {
			return left
		}
		return i.evaluate(e.Right)
	default:
		i.fail(value.TypeError, "unknown logical operator '"+string(e.Operator)+"'", e.Span)
		return value.Null
	}
}

func (i *Interpreter) VisitUnary(e *ast.Unary) any {
	right := i.evaluate(e.Right)
	switch e.Operator {
	case ast.OpNegate:
		if right.Kind() != value.KindNumber {
			i.fail(value.TypeError, "unary '-' requires a number, got "+right.TypeName(), e.Span)
		}
		return value.Number(-right.AsNumber())
	case ast.OpNot:
		return value.Bool(!value.Truthiness(right))
	default:
		i.fail(value.TypeError, "unknown unary operator '"+string(e.Operator)+"'", e.Span)
		return value.Null
	}
}

func (i *Interpreter) VisitBinary(e *ast.Binary) any {
	left := i.evaluate(e.Left)
	right := i.evaluate(e.Right)

	switch e.Operator {
	case ast.OpEqual:
		return value.Bool(value.Eq(left, right))
	case ast.OpNotEqual:
		return value.Bool(!value.Eq(left, right))
	case ast.OpLess, ast.OpLessEq, ast.OpGreater, ast.OpGreaterEq:
		return i.compare(e.Operator, left, right, e.Span)
	default:
		return i.arithmetic(e.Operator, left, right, e.Span)
	}
}

func (i *Interpreter) compare(op ast.BinaryOp, left, right value.Value, span ast.Span) value.Value {
	ord := value.Ord(left, right)
	if ord == value.OrderIncomparable {
		i.fail(value.TypeError, "cannot compare "+left.TypeName()+" and "+right.TypeName(), span)
	}
	switch op {
	case ast.OpLess:
		return value.Bool(ord == value.OrderLess)
	case ast.OpLessEq:
		return value.Bool(ord == value.OrderLess || ord == value.OrderEqual)
	case ast.OpGreater:
		return value.Bool(ord == value.OrderGreater)
	default: // OpGreaterEq
		return value.Bool(ord == value.OrderGreater || ord == value.OrderEqual)
	}
}

func (i *Interpreter) arithmetic(op ast.BinaryOp, left, right value.Value, span ast.Span) value.Value {
	if left.Kind() != value.KindNumber || right.Kind() != value.KindNumber {
		i.fail(value.TypeError, "operator '"+string(op)+"' requires two numbers, got "+left.TypeName()+" and "+right.TypeName(), span)
	}
	l, r := left.AsNumber(), right.AsNumber()
	switch op {
	case ast.OpAdd:
		return value.Number(l + r)
	case ast.OpSub:
		return value.Number(l - r)
	case ast.OpMul:
		return value.Number(l * r)
	case ast.OpDiv:
		if r == 0 {
			i.fail(value.DivisionByZero, "division by zero", span)
		}
		return value.Number(l / r)
	case ast.OpMod:
		if r == 0 {
			i.fail(value.DivisionByZero, "modulo by zero", span)
		}
		return value.Number(numMod(l, r))
	default:
		i.fail(value.TypeError, "unknown binary operator '"+string(op)+"'", span)
		return value.Null
	}
}

func numMod(l, r float64) float64 {
	m := l - r*float64(int64(l/r))
	return m
}
