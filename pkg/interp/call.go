package interp

import (
	"strconv"

	"atlas/pkg/ast"
	"atlas/pkg/builtin"
	"atlas/pkg/value"
)

// interpContext adapts an Interpreter to builtin.Context for the duration
// of a single builtin call.
type interpContext struct {
	i              *Interpreter
	mutationSource bool
}

func (c *interpContext) Check(perm builtin.Permission) *value.Failure {
	if c.i.checkPerm == nil || c.i.checkPerm(perm) {
		return nil
	}
	return value.NewFailure(value.PermissionDenied, "permission '"+string(perm)+"' not granted", value.Span{})
}

func (c *interpContext) Print(s string) {
	c.i.output.Write([]byte(s))
}

func (c *interpContext) MutationSource() bool { return c.mutationSource }

// makeFunction builds a closure Value from a literal, capturing the
// current environment per snapshotEnv's rules.
func (i *Interpreter) makeFunction(lit *ast.FunctionLiteral) value.Value {
	return value.FromFunction(&value.Function{
		Name:     lit.Name,
		Arity:    len(lit.Params),
		AST:      lit,
		Captured: snapshotEnv(i.env),
	})
}

func (i *Interpreter) VisitFunctionLiteral(e *ast.FunctionLiteral) any {
	return i.makeFunction(e)
}

// VisitCall resolves the callee (preferring a user-defined binding over a
// same-named builtin when the callee is a bare identifier, per spec.md's
// name-resolution order), then evaluates arguments left-to-right, and
// dispatches to either a user function or a builtin entry.
func (i *Interpreter) VisitCall(e *ast.Call) any {
	var callee value.Value
	var entry builtin.Entry
	isBuiltin := false
	if name, ok := calleeName(e.Callee); ok {
		if v, found := i.env.Get(name); found {
			callee = v
		} else if ent, found := i.builtins.Lookup(name); found {
			entry, isBuiltin = ent, true
		} else {
			i.fail(i.undefinedKind(), "undefined name '"+name+"'", e.Span)
		}
	} else {
		callee = i.evaluate(e.Callee)
	}

	args := make([]value.Value, len(e.Args))
	for idx, a := range e.Args {
		args[idx] = i.evaluate(a)
	}
	if isBuiltin {
		return i.callBuiltin(entry, args, e)
	}
	return i.callFunction(callee, args, e)
}

func calleeName(e ast.Expression) (string, bool) {
	v, ok := e.(*ast.Variable)
	if !ok {
		return "", false
	}
	return v.Name, true
}

func (i *Interpreter) callBuiltin(entry builtin.Entry, args []value.Value, call *ast.Call) value.Value {
	if f := builtin.CheckArity(entry.Name, len(args), entry.Arity); f != nil {
		i.raiseExisting(f, call.Span)
	}
	ctx := &interpContext{i: i, mutationSource: len(call.Args) > 0 && isLvalue(call.Args[0])}
	result, failure := entry.Fn(args, ctx)
	if failure != nil {
		i.raiseExisting(failure, call.Span)
	}
	if len(args) > 0 && isLvalue(call.Args[0]) {
		i.writeBack(call.Args[0], args[0])
	}
	return result
}

// isLvalue reports whether e names a location a builtin's write-back
// protocol can target: a bare variable or an index expression.
func isLvalue(e ast.Expression) bool {
	switch e.(type) {
	case *ast.Variable, *ast.IndexGet:
		return true
	default:
		return false
	}
}

// writeBack stores v back into the location target names, mirroring
// what the stdlib mutation builtin's in-place pointer mutation already
// did to the shared Array/Map handle — see DESIGN.md for why this is
// largely redundant given this implementation's CoW strategy, and why it
// is still implemented explicitly rather than relied upon implicitly.
func (i *Interpreter) writeBack(target ast.Expression, v value.Value) {
	switch t := target.(type) {
	case *ast.Variable:
		i.env.WriteBack(t.Name, v)
	case *ast.IndexGet:
		i.setIndex(t.Collection, t.Index, v, t.Span)
	}
}

func (i *Interpreter) callFunction(callee value.Value, args []value.Value, call *ast.Call) value.Value {
	if callee.Kind() != value.KindFunction {
		i.fail(value.TypeError, "attempt to call a non-function value of type "+callee.TypeName(), call.Span)
	}
	fn := callee.AsFunction()
	if len(args) != fn.Arity {
		i.fail(value.ArityMismatch, fn.Name+": expected "+strconv.Itoa(fn.Arity)+" argument(s), got "+strconv.Itoa(len(args)), call.Span)
	}

	lit, _ := fn.AST.(*ast.FunctionLiteral)
	captured, _ := fn.Captured.(*Environment)

	i.callDepth++
	if i.callDepth > i.maxCallDepth {
		i.callDepth--
		i.fail(value.StackOverflow, "maximum call depth exceeded", call.Span)
	}
	frameName := fn.Name
	if frameName == "" {
		frameName = "<anonymous>"
	}
	i.callStack = append(i.callStack, value.StackFrame{FunctionName: frameName, Span: call.Span})
	defer func() {
		i.callDepth--
		i.callStack = i.callStack[:len(i.callStack)-1]
	}()

	callEnv := NewChildEnvironment(captured)
	for idx, param := range lit.Params {
		if param.Borrow {
			callEnv.DeclareBorrowed(param.Name, args[idx])
		} else {
			callEnv.Declare(param.Name, args[idx], true)
		}
	}

	prevEnv := i.env
	i.env = callEnv
	result := i.runFunctionBody(lit.Body)
	i.env = prevEnv
	return result
}

// runFunctionBody executes a function's block and recovers the
// signalReturn a ReturnStmt raises, yielding Null for a function that
// falls off the end of its body without an explicit return.
func (i *Interpreter) runFunctionBody(body *ast.BlockStmt) (result value.Value) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cs, ok := r.(controlSignal)
		if !ok || cs.kind != signalReturn {
			panic(r)
		}
		result = cs.value
	}()
	for _, stmt := range body.Statements {
		i.execute(stmt)
	}
	return value.Null
}

func (i *Interpreter) raiseExisting(f *value.Failure, span ast.Span) {
	if f.Span.File == "" && f.Span.Line == 0 {
		f.Span = span
	}
	i.fail(f.Kind, f.Message, f.Span)
}

// --- Indexing ---

func (i *Interpreter) VisitIndexGet(e *ast.IndexGet) any {
	coll := i.evaluate(e.Collection)
	idx := i.evaluate(e.Index)
	return i.getIndex(coll, idx, e.Span)
}

func (i *Interpreter) getIndex(coll, idx value.Value, span ast.Span) value.Value {
	switch coll.Kind() {
	case value.KindArray:
		if idx.Kind() != value.KindNumber {
			i.fail(value.TypeError, "array index must be a number, got "+idx.TypeName(), span)
		}
		n := int(idx.AsNumber())
		arr := coll.AsArray()
		if n < 0 || n >= arr.Len() {
			i.fail(value.IndexOutOfBounds, "array index out of bounds", span)
		}
		return arr.Get(n)
	case value.KindMap:
		if !value.Hashable(idx) {
			i.fail(value.UnhashableKey, "map key of type "+idx.TypeName()+" is not hashable", span)
		}
		v, found := coll.AsMap().Get(idx)
		if !found {
			return value.Null
		}
		return v
	case value.KindString:
		if idx.Kind() != value.KindNumber {
			i.fail(value.TypeError, "string index must be a number, got "+idx.TypeName(), span)
		}
		n := int(idx.AsNumber())
		s := coll.AsString()
		if n < 0 || n >= len(s) {
			i.fail(value.IndexOutOfBounds, "string index out of bounds", span)
		}
		return value.String(string(s[n]))
	default:
		i.fail(value.TypeError, "cannot index into a value of type "+coll.TypeName(), span)
		return value.Null
	}
}

func (i *Interpreter) VisitIndexSet(e *ast.IndexSet) any {
	v := i.evaluate(e.Value)
	i.setIndex(e.Collection, e.Index, v, e.Span)
	return v
}

// setIndex evaluates collection, mutates it at idx (copy-on-write), and
// writes the resulting aggregate back into collection's own lvalue if it
// has one — the same write-back protocol a builtin call uses, since
// `a[i] = v` and `push(a, v)` are both aggregate mutation via CoW.
func (i *Interpreter) setIndex(collection, index ast.Expression, v value.Value, span ast.Span) {
	coll := i.evaluate(collection)
	idx := i.evaluate(index)

	switch coll.Kind() {
	case value.KindArray:
		if idx.Kind() != value.KindNumber {
			i.fail(value.TypeError, "array index must be a number, got "+idx.TypeName(), span)
		}
		n := int(idx.AsNumber())
		arr := coll.AsArray()
		if n < 0 || n >= arr.Len() {
			i.fail(value.IndexOutOfBounds, "array index out of bounds", span)
		}
		result := value.FromArray(arr.Set(n, v))
		i.writeBack(collection, result)
	case value.KindMap:
		if !value.Hashable(idx) {
			i.fail(value.UnhashableKey, "map key of type "+idx.TypeName()+" is not hashable", span)
		}
		result := value.FromMap(coll.AsMap().Insert(idx, v))
		i.writeBack(collection, result)
	default:
		i.fail(value.TypeError, "cannot index-assign into a value of type "+coll.TypeName(), span)
	}
}
