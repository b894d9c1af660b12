// Package vm is the stack-based bytecode engine: it executes a
// *bytecode.Module produced by pkg/compiler and must agree with pkg/interp
// on terminal value, output, and failure kind for any program expressible
// in both (pkg/parity checks this). Grounded on pkg/interp's own shape
// (Interpreter/Option/New, the fail/raiseExisting helpers, the exact
// arithmetic/compare/getIndex/setIndex semantics in interp/call.go and
// interp/interp.go) rather than on any message-send VM, since Atlas's
// opcode set is a flat arithmetic/control-flow/aggregate instruction set,
// not an object-message dispatch loop.
package vm

import (
	"io"
	"strconv"

	"atlas/pkg/builtin"
	"atlas/pkg/bytecode"
	"atlas/pkg/validator"
	"atlas/pkg/value"
)

// PermissionChecker reports whether perm has been granted. Mirrors
// pkg/interp.PermissionChecker so a host can wire the same policy to
// both engines.
type PermissionChecker func(perm builtin.Permission) bool

// callFrame is one active function activation. Locals are a dedicated
// per-frame array, separate from the shared operand stack: OpSetLocal
// has peek (non-popping) semantics precisely because it archives the
// top-of-stack expression result into this array rather than addressing
// the operand stack itself, letting the compiler still emit an explicit
// Pop afterward for a `let`/`var` statement's now-redundant stack copy.
type callFrame struct {
	ip     int
	locals []value.Value
	fn     *value.Function // nil for the implicit top-level frame
}

// VM runs one bytecode.Module per Run call. Each Run starts from a fresh
// operand stack, globals table and frame stack, so nothing carries over
// between Run calls on one VM (unlike pkg/interp, whose global
// environment persists across Eval calls). A VM is not safe for
// concurrent use.
type VM struct {
	builtins     *builtin.Registry
	output       io.Writer
	checkPerm    PermissionChecker
	maxCallDepth int

	module      *bytecode.Module
	stack       []value.Value
	globals     []value.Value
	globalsInit []bool
	frames      []callFrame
	callStack   []value.StackFrame
}

// Option configures a VM at construction time, mirroring pkg/interp's
// functional-options shape so both engines can be wired identically by
// an embedding host (and by the parity harness).
type Option func(*VM)

// WithOutput directs print's side effects to w instead of io.Discard.
func WithOutput(w io.Writer) Option { return func(vm *VM) { vm.output = w } }

// WithBuiltins replaces the default builtin registry.
func WithBuiltins(r *builtin.Registry) Option { return func(vm *VM) { vm.builtins = r } }

// WithPermissionChecker installs the policy builtins consult via ctx.Check.
func WithPermissionChecker(c PermissionChecker) Option {
	return func(vm *VM) { vm.checkPerm = c }
}

// WithMaxCallDepth bounds the number of live call frames before OpCall
// raises StackOverflow instead of growing the frame slice without limit.
func WithMaxCallDepth(n int) Option { return func(vm *VM) { vm.maxCallDepth = n } }

const defaultMaxCallDepth = 2048

// New builds a VM ready for Run. The `__map_from_pairs` native that
// pkg/compiler's map-literal lowering depends on is registered on top of
// whatever builtin registry the caller supplied (or the default one),
// the same way a host would register its own domain builtins.
func New(opts ...Option) *VM {
	vm := &VM{
		builtins:     builtin.NewRegistry(),
		output:       io.Discard,
		maxCallDepth: defaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.builtins.Register(builtin.Entry{
		Name:  "__map_from_pairs",
		Arity: builtin.Arity{Min: 1, Max: 1},
		Fn:    mapFromPairsBuiltin,
	})
	return vm
}

// failureSignal carries a *value.Failure through panic/recover, the
// VM's package-local analogue of pkg/interp/signals.go's mechanism
// (unexported there, so it can't be reused directly across packages).
// The VM has no controlSignal counterpart: its control flow is jumps,
// not panics, so only failures ever need to unwind this way.
type failureSignal struct{ failure *value.Failure }

func raise(f *value.Failure) { panic(failureSignal{failure: f}) }

func recoverFailure(r any, out **value.Failure) {
	if r == nil {
		return
	}
	if fs, ok := r.(failureSignal); ok {
		*out = fs.failure
		return
	}
	panic(r)
}

// Run validates module (addressing the "validate before execution"
// contract pkg/validator exists for) and, if it passes, executes it from
// offset 0, returning its terminal value or the failure that aborted it.
func (vm *VM) Run(module *bytecode.Module) (result value.Value, failure *value.Failure) {
	defer func() { recoverFailure(recover(), &failure) }()

	res := validator.Validate(module)
	if !res.OK() {
		return value.Null, res.ToFailure()
	}

	vm.module = module
	vm.stack = vm.stack[:0]
	vm.globals = make([]value.Value, len(module.GlobalNames))
	vm.globalsInit = make([]bool, len(module.GlobalNames))
	vm.frames = []callFrame{{ip: 0, fn: nil}}
	vm.callStack = nil

	vm.preloadFunctions()

	result = vm.run()
	return result, nil
}

// preloadFunctions materializes a value.Function for every compiled
// function literal into its registered global slot before execution
// starts. Only the compiler's synthetic slots (`<fn:N>`) are ever listed
// in module.Functions, never a user-visible binding name — a `let`/`fn`
// declaration's own bytecode is what copies the preloaded value into the
// user's chosen name, in program order, so this preload step cannot
// itself make a user binding visible before its declaring statement runs.
func (vm *VM) preloadFunctions() {
	byName := make(map[string]bytecode.FunctionEntry, len(vm.module.Functions))
	for _, fe := range vm.module.Functions {
		byName[fe.Name] = fe
	}
	for slot, name := range vm.module.GlobalNames {
		fe, ok := byName[name]
		if !ok {
			continue
		}
		vm.globals[slot] = value.FromFunction(&value.Function{
			Name:        fe.Name,
			Arity:       fe.Arity,
			LocalSlot:   fe.LocalCount,
			EntryOffset: fe.EntryOffset,
		})
		vm.globalsInit[slot] = true
	}
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(distFromTop int) value.Value { return vm.stack[len(vm.stack)-1-distFromTop] }

func (vm *VM) spanAt(offset int) value.Span {
	if d, ok := vm.module.DebugSpanFor(offset); ok {
		return value.Span{File: d.File, Line: d.Line, Column: d.Column, Length: d.Length}
	}
	return value.Span{}
}

// fail builds a Failure at span and raises it, attaching the active call
// stack outermost-first, mirroring pkg/interp.Interpreter.fail exactly
// (see value.Failure.Render's innermost-first reverse iteration).
func (vm *VM) fail(kind value.FailureKind, message string, span value.Span) {
	f := value.NewFailure(kind, message, span)
	for _, frame := range vm.callStack {
		f = f.WithFrame(frame)
	}
	raise(f)
}

// raiseExisting re-raises a Failure a builtin returned, filling in span
// if the builtin left it zero. Mirrors pkg/interp/call.go's
// raiseExisting, including its loss of any Payload the builtin may have
// attached (the same simplification the interpreter already carries).
func (vm *VM) raiseExisting(f *value.Failure, span value.Span) {
	if f.Span.File == "" && f.Span.Line == 0 {
		f.Span = span
	}
	vm.fail(f.Kind, f.Message, f.Span)
}

// run is the fetch-decode-execute loop. Each iteration re-reads the
// current top frame fresh, so an OpCall/OpReturn that grows or shrinks
// vm.frames mid-loop never leaves a stale frame pointer in play: nothing
// in a single case ever reuses a *callFrame after mutating vm.frames.
func (vm *VM) run() value.Value {
	for {
		frame := &vm.frames[len(vm.frames)-1]
		dec, ok := bytecode.DecodeAt(vm.module.Instructions, frame.ip)
		if !ok {
			vm.fail(value.BytecodeInvalid, "invalid instruction at offset "+strconv.Itoa(frame.ip), value.Span{})
		}
		frame.ip = dec.Next
		span := vm.spanAt(dec.Offset)

		switch dec.Op {
		case bytecode.OpConstant:
			vm.push(vm.module.Constants[dec.Operand])
		case bytecode.OpNull:
			vm.push(value.Null)
		case bytecode.OpTrue:
			vm.push(value.Bool(true))
		case bytecode.OpFalse:
			vm.push(value.Bool(false))

		case bytecode.OpGetLocal:
			vm.push(frame.locals[dec.Operand])
		case bytecode.OpSetLocal:
			frame.locals[dec.Operand] = vm.peek(0)

		case bytecode.OpGetGlobal:
			vm.push(vm.getGlobal(dec.Operand, span))
		case bytecode.OpSetGlobal:
			vm.globals[dec.Operand] = vm.peek(0)
			vm.globalsInit[dec.Operand] = true

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			right := vm.pop()
			left := vm.pop()
			vm.push(vm.arithmetic(dec.Op, left, right, span))

		case bytecode.OpNegate:
			v := vm.pop()
			if v.Kind() != value.KindNumber {
				vm.fail(value.TypeError, "unary '-' requires a number, got "+v.TypeName(), span)
			}
			vm.push(value.Number(-v.AsNumber()))
		case bytecode.OpNot:
			v := vm.pop()
			vm.push(value.Bool(!value.Truthiness(v)))

		case bytecode.OpEqual:
			right := vm.pop()
			left := vm.pop()
			vm.push(value.Bool(value.Eq(left, right)))
		case bytecode.OpNotEqual:
			right := vm.pop()
			left := vm.pop()
			vm.push(value.Bool(!value.Eq(left, right)))
		case bytecode.OpLess, bytecode.OpLessEq, bytecode.OpGreater, bytecode.OpGreaterEq:
			right := vm.pop()
			left := vm.pop()
			vm.push(vm.compare(dec.Op, left, right, span))

		case bytecode.OpJump:
			frame.ip = dec.JumpTarget()
		case bytecode.OpJumpIfFalse:
			cond := vm.pop()
			if !value.Truthiness(cond) {
				frame.ip = dec.JumpTarget()
			}
		case bytecode.OpLoop:
			frame.ip = dec.JumpTarget()

		case bytecode.OpCall:
			vm.execCall(dec, span)

		case bytecode.OpReturn:
			retVal := vm.pop()
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.callStack) > 0 {
				vm.callStack = vm.callStack[:len(vm.callStack)-1]
			}
			vm.push(retVal)

		case bytecode.OpArray:
			n := dec.Operand
			items := make([]value.Value, n)
			copy(items, vm.stack[len(vm.stack)-n:])
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(value.FromArray(value.NewArray(items)))

		case bytecode.OpGetIndex:
			idx := vm.pop()
			coll := vm.pop()
			vm.push(vm.getIndex(coll, idx, span))
		case bytecode.OpSetIndex:
			v := vm.pop()
			idx := vm.pop()
			coll := vm.pop()
			vm.setIndex(coll, idx, v, span)
			vm.push(v)

		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpDup:
			vm.push(vm.peek(0))

		case bytecode.OpIsSome:
			v := vm.pop()
			vm.push(value.Bool(v.Kind() == value.KindOption && v.IsSomeOption()))
		case bytecode.OpIsOk:
			v := vm.pop()
			vm.push(value.Bool(v.Kind() == value.KindResult && v.IsOkResult()))
		case bytecode.OpUnwrapOption:
			v := vm.pop()
			if v.Kind() != value.KindOption || !v.IsSomeOption() {
				vm.fail(value.UnwrapNone, "unwrap called on an option holding none", span)
			}
			vm.push(v.OptionValue())
		case bytecode.OpUnwrapResult:
			v := vm.pop()
			if v.Kind() != value.KindResult || !v.IsOkResult() {
				vm.fail(value.UnwrapErr, "unwrap called on a result holding err", span)
			}
			vm.push(v.ResultValue())
		case bytecode.OpGetArrayLen:
			v := vm.pop()
			if v.Kind() != value.KindArray {
				vm.fail(value.TypeError, "expected array, got "+v.TypeName(), span)
			}
			vm.push(value.Int(int64(v.AsArray().Len())))

		case bytecode.OpHalt:
			return vm.pop()

		case bytecode.OpAnd, bytecode.OpOr:
			vm.fail(value.BytecodeInvalid, "OpAnd/OpOr must never appear in a compiled module", span)

		default:
			vm.fail(value.BytecodeInvalid, "unhandled opcode "+dec.Op.String(), span)
		}
	}
}

// getGlobal reads globals[slot], materializing and caching a native
// builtin's Function value on first read of an uninitialized slot. This
// is what lets pkg/compiler emit OpGetGlobal for every unresolved bare
// name without itself knowing which names are builtins: the VM resolves
// the ambiguity at the one point it actually matters, a real read.
// globalsInit tracks this separately from the zero-valued Value a
// `let x = null;` would otherwise be indistinguishable from.
func (vm *VM) getGlobal(slot int, span value.Span) value.Value {
	if vm.globalsInit[slot] {
		return vm.globals[slot]
	}
	name := vm.module.GlobalNames[slot]
	entry, found := vm.builtins.Lookup(name)
	if !found {
		vm.fail(value.UndefinedGlobal, "undefined name '"+name+"'", span)
	}
	fn := &value.Function{Name: entry.Name, Arity: entry.Arity.Min, EntryOffset: -1}
	vm.globals[slot] = value.FromFunction(fn)
	vm.globalsInit[slot] = true
	return vm.globals[slot]
}

// execCall dispatches OpCall: the callee sits beneath its argc arguments
// on the operand stack (every call site pushes callee before args, per
// pkg/compiler's compileCall/compileMapLiteral). A native Function (one
// materialized by getGlobal, or any other EntryOffset < 0 sentinel) goes
// through callNative; everything else pushes a fresh call frame and jumps
// to its entry offset.
func (vm *VM) execCall(dec bytecode.Decoded, span value.Span) {
	argc := dec.Operand
	calleeIdx := len(vm.stack) - argc - 1
	if calleeIdx < 0 {
		vm.fail(value.BytecodeInvalid, "call operand stack underflow", span)
	}
	callee := vm.stack[calleeIdx]
	if callee.Kind() != value.KindFunction {
		vm.fail(value.TypeError, "attempt to call a non-function value of type "+callee.TypeName(), span)
	}
	fn := callee.AsFunction()
	args := append([]value.Value(nil), vm.stack[calleeIdx+1:]...)
	vm.stack = vm.stack[:calleeIdx]

	if fn.EntryOffset < 0 {
		vm.push(vm.callNative(fn.Name, args, span))
		return
	}

	if fn.Arity != argc {
		vm.fail(value.ArityMismatch, fn.Name+": expected "+strconv.Itoa(fn.Arity)+" argument(s), got "+strconv.Itoa(argc), span)
	}
	if len(vm.frames) >= vm.maxCallDepth {
		vm.fail(value.StackOverflow, "maximum call depth exceeded", span)
	}
	vm.callStack = append(vm.callStack, value.StackFrame{FunctionName: fn.Name, Span: span})
	locals := make([]value.Value, fn.LocalSlot)
	copy(locals, args)
	vm.frames = append(vm.frames, callFrame{ip: fn.EntryOffset, locals: locals, fn: fn})
}

// callNative runs a builtin through the shared pkg/builtin contract.
// Write-back of a mutated first argument into its lvalue is NOT this
// method's job: pkg/compiler's emitWriteBack already compiled the
// OpSetLocal/OpSetGlobal/OpSetIndex sequence that follows every OpCall
// whose first argument was an lvalue, mirroring interp/call.go's
// callBuiltin at the bytecode level instead of at the dispatch level.
func (vm *VM) callNative(name string, args []value.Value, span value.Span) value.Value {
	entry, found := vm.builtins.Lookup(name)
	if !found {
		vm.fail(value.UndefinedGlobal, "undefined name '"+name+"'", span)
	}
	if f := builtin.CheckArity(name, len(args), entry.Arity); f != nil {
		vm.raiseExisting(f, span)
	}
	ctx := &vmContext{vm: vm}
	result, failure := entry.Fn(args, ctx)
	if failure != nil {
		vm.raiseExisting(failure, span)
	}
	return result
}

// vmContext adapts a VM to builtin.Context for the duration of one
// native call, mirroring interp/call.go's interpContext.
type vmContext struct{ vm *VM }

func (c *vmContext) Check(perm builtin.Permission) *value.Failure {
	if c.vm.checkPerm == nil || c.vm.checkPerm(perm) {
		return nil
	}
	return value.NewFailure(value.PermissionDenied, "permission '"+string(perm)+"' not granted", value.Span{})
}

func (c *vmContext) Print(s string) { c.vm.output.Write([]byte(s)) }

// MutationSource always reports false: unlike the interpreter, which
// decides write-back at the dispatch layer and so needs this hint live,
// the VM's write-back is already fully determined at compile time (see
// callNative's doc comment) and builtins themselves never consult this
// per pkg/builtin's own contract comment, so no caller of this method
// exists on the VM side.
func (c *vmContext) MutationSource() bool { return false }

// --- arithmetic / comparison / indexing, mirroring pkg/interp/call.go
// and pkg/interp/interp.go exactly so the two engines agree on every
// TypeError/DivisionByZero/IndexOutOfBounds/UnhashableKey decision. ---

func opSymbol(op bytecode.Opcode) string {
	switch op {
	case bytecode.OpAdd:
		return "+"
	case bytecode.OpSub:
		return "-"
	case bytecode.OpMul:
		return "*"
	case bytecode.OpDiv:
		return "/"
	case bytecode.OpMod:
		return "%"
	case bytecode.OpLess:
		return "<"
	case bytecode.OpLessEq:
		return "<="
	case bytecode.OpGreater:
		return ">"
	case bytecode.OpGreaterEq:
		return ">="
	default:
		return op.String()
	}
}

func (vm *VM) arithmetic(op bytecode.Opcode, left, right value.Value, span value.Span) value.Value {
	if left.Kind() != value.KindNumber || right.Kind() != value.KindNumber {
		vm.fail(value.TypeError, "operator '"+opSymbol(op)+"' requires two numbers, got "+left.TypeName()+" and "+right.TypeName(), span)
	}
	l, r := left.AsNumber(), right.AsNumber()
	switch op {
	case bytecode.OpAdd:
		return value.Number(l + r)
	case bytecode.OpSub:
		return value.Number(l - r)
	case bytecode.OpMul:
		return value.Number(l * r)
	case bytecode.OpDiv:
		if r == 0 {
			vm.fail(value.DivisionByZero, "division by zero", span)
		}
		return value.Number(l / r)
	default: // OpMod
		if r == 0 {
			vm.fail(value.DivisionByZero, "modulo by zero", span)
		}
		return value.Number(numMod(l, r))
	}
}

func numMod(l, r float64) float64 {
	return l - r*float64(int64(l/r))
}

func (vm *VM) compare(op bytecode.Opcode, left, right value.Value, span value.Span) value.Value {
	ord := value.Ord(left, right)
	if ord == value.OrderIncomparable {
		vm.fail(value.TypeError, "cannot compare "+left.TypeName()+" and "+right.TypeName(), span)
	}
	switch op {
	case bytecode.OpLess:
		return value.Bool(ord == value.OrderLess)
	case bytecode.OpLessEq:
		return value.Bool(ord == value.OrderLess || ord == value.OrderEqual)
	case bytecode.OpGreater:
		return value.Bool(ord == value.OrderGreater)
	default: // OpGreaterEq
		return value.Bool(ord == value.OrderGreater || ord == value.OrderEqual)
	}
}

func (vm *VM) getIndex(coll, idx value.Value, span value.Span) value.Value {
	switch coll.Kind() {
	case value.KindArray:
		if idx.Kind() != value.KindNumber {
			vm.fail(value.TypeError, "array index must be a number, got "+idx.TypeName(), span)
		}
		n := int(idx.AsNumber())
		arr := coll.AsArray()
		if n < 0 || n >= arr.Len() {
			vm.fail(value.IndexOutOfBounds, "array index out of bounds", span)
		}
		return arr.Get(n)
	case value.KindMap:
		if !value.Hashable(idx) {
			vm.fail(value.UnhashableKey, "map key of type "+idx.TypeName()+" is not hashable", span)
		}
		v, found := coll.AsMap().Get(idx)
		if !found {
			return value.Null
		}
		return v
	case value.KindString:
		if idx.Kind() != value.KindNumber {
			vm.fail(value.TypeError, "string index must be a number, got "+idx.TypeName(), span)
		}
		n := int(idx.AsNumber())
		s := coll.AsString()
		if n < 0 || n >= len(s) {
			vm.fail(value.IndexOutOfBounds, "string index out of bounds", span)
		}
		return value.String(string(s[n]))
	default:
		vm.fail(value.TypeError, "cannot index into a value of type "+coll.TypeName(), span)
		return value.Null
	}
}

// setIndex mutates coll in place (array Set / map Insert are both
// copy-on-write handle methods) and does not itself write the mutated
// aggregate back to any lvalue: since every Value sharing a *value.Array
// or *value.Map handle shares the exact same Go pointer until something
// calls Array.Alias/Map.Alias (which nothing in this codebase does),
// mutating through coll is already visible through every other Value
// holding that pointer, the same "correct but largely redundant
// write-back" property interp/call.go documents for builtin calls.
func (vm *VM) setIndex(coll, idx, v value.Value, span value.Span) {
	switch coll.Kind() {
	case value.KindArray:
		if idx.Kind() != value.KindNumber {
			vm.fail(value.TypeError, "array index must be a number, got "+idx.TypeName(), span)
		}
		n := int(idx.AsNumber())
		arr := coll.AsArray()
		if n < 0 || n >= arr.Len() {
			vm.fail(value.IndexOutOfBounds, "array index out of bounds", span)
		}
		arr.Set(n, v)
	case value.KindMap:
		if !value.Hashable(idx) {
			vm.fail(value.UnhashableKey, "map key of type "+idx.TypeName()+" is not hashable", span)
		}
		coll.AsMap().Insert(idx, v)
	default:
		vm.fail(value.TypeError, "cannot index-assign into a value of type "+coll.TypeName(), span)
	}
}

// mapFromPairsBuiltin folds a flat [k1, v1, k2, v2, ...] array into a
// value.Map. It backs pkg/compiler's map-literal lowering (there is no
// OpMap instruction). It is registered only in the VM's builtin
// registry; pkg/lexer accepts `__map_from_pairs` as an ordinary
// identifier, so source code run on the VM can call it by name, while
// pkg/interp does not define it.
func mapFromPairsBuiltin(args []value.Value, ctx builtin.Context) (value.Value, *value.Failure) {
	if args[0].Kind() != value.KindArray {
		return value.Null, value.NewFailure(value.TypeError,
			"__map_from_pairs: expected array, got "+args[0].TypeName(), value.Span{})
	}
	items := args[0].AsArray().Items()
	if len(items)%2 != 0 {
		return value.Null, value.NewFailure(value.TypeError,
			"__map_from_pairs: odd number of key/value elements", value.Span{})
	}
	m := value.NewMap()
	for i := 0; i < len(items); i += 2 {
		k, v := items[i], items[i+1]
		if !value.Hashable(k) {
			return value.Null, value.NewFailure(value.UnhashableKey,
				"map key of type "+k.TypeName()+" is not hashable", value.Span{})
		}
		m = m.Insert(k, v)
	}
	return value.FromMap(m), nil
}
