// Package compiler lowers an Atlas *ast.Program into a *bytecode.Module
// for pkg/vm to execute. The opcode set (pkg/bytecode) is fixed and has no
// instruction for constructing a closure's captured-cell set at an
// arbitrary program point, so this compiler supports a strict subset of
// the interpreter's closure semantics: a function literal may reference
// module-level globals (including other functions, by name) but not an
// enclosing function's locals or parameters. The latter is rejected here,
// at compile time, rather than silently producing the wrong value.
package compiler

import (
	"fmt"

	"atlas/pkg/ast"
	"atlas/pkg/bytecode"
	"atlas/pkg/value"
)

// Error is a compile-time failure: an illegal capture, an assignment to an
// immutable or undeclared binding, or any other static violation the VM's
// fixed opcode set can't express at runtime. Distinct from value.Failure,
// which is the two engines' shared *runtime* failure type (mirrors
// pkg/parser.Error's split from the same runtime type).
type Error struct {
	Message string
	Span    ast.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Span.File, e.Span.Line, e.Span.Column, e.Message)
}

// funcScope tracks the locals of one function body currently being
// compiled. Slot allocation is a simple monotonic counter per let/var/param
// encountered in textual order; slots are never reused across a block exit
// (a deliberate simplification over scope-exit slot reuse).
type funcScope struct {
	name     string
	locals   map[string]int
	mutable  map[string]bool // by name: true for var, false for let/param/fn
	nextSlot int
}

func newFuncScope(name string) *funcScope {
	return &funcScope{name: name, locals: map[string]int{}, mutable: map[string]bool{}}
}

func (f *funcScope) declare(name string, mutable bool) int {
	slot := f.nextSlot
	f.nextSlot++
	f.locals[name] = slot
	f.mutable[name] = mutable
	return slot
}

// loopCtx tracks the break/continue jump patch list for one enclosing
// loop. continueTarget is known up front for a while-loop (or a for-loop
// with no post-clause): continue there is a direct backward OpLoop. A
// for-loop with a post-clause doesn't know that offset until the post
// expression has been compiled, so continue instead records a forward
// OpJump patched once the post-clause's start offset is known.
type loopCtx struct {
	continueTarget  *int
	continuePatches []int
	breakPatches    []int
}

// pendingFn is a function literal discovered mid-compile (as an operand
// of OpGetGlobal materializing its value) whose body hasn't been appended
// to the instruction stream yet. outer is the chain of function scopes
// enclosing the literal where it appeared, so its body compiles against
// the same scope chain.
type pendingFn struct {
	literal *ast.FunctionLiteral
	slot    int
	name    string
	outer   []*funcScope
}

// Compiler lowers one *ast.Program into a *bytecode.Module. Not safe for
// concurrent or repeated use; construct a fresh Compiler per Compile call.
type Compiler struct {
	module *bytecode.Module
	code   []byte

	scopes []*funcScope // nil/empty => compiling top-level code
	loops  []*loopCtx

	globalMutable map[string]bool // declared top-level bindings: name -> mutable
	pending       []*pendingFn
	fnCounter     int
}

// Compile lowers prog into a bytecode.Module ready for pkg/vm to run.
func Compile(prog *ast.Program) (*bytecode.Module, error) {
	c := &Compiler{
		module:        bytecode.NewModule(),
		globalMutable: map[string]bool{},
	}
	if err := c.compileProgram(prog); err != nil {
		return nil, err
	}
	if err := c.drainPending(); err != nil {
		return nil, err
	}
	c.module.Instructions = c.code
	return c.module, nil
}

func (c *Compiler) compileProgram(prog *ast.Program) error {
	for i, stmt := range prog.Statements {
		last := i == len(prog.Statements)-1
		if last {
			if es, ok := stmt.(*ast.ExpressionStmt); ok {
				if err := c.compileExpr(es.Expression); err != nil {
					return err
				}
				c.emit0(bytecode.OpHalt)
				return nil
			}
		}
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	c.emit0(bytecode.OpNull)
	c.emit0(bytecode.OpHalt)
	return nil
}

func (c *Compiler) drainPending() error {
	for len(c.pending) > 0 {
		fn := c.pending[0]
		c.pending = c.pending[1:]

		entryOffset := len(c.code)
		scope := newFuncScope(fn.name)
		for _, p := range fn.literal.Params {
			scope.declare(p.Name, false)
		}
		c.scopes = append(fn.outer, scope)

		for _, stmt := range fn.literal.Body.Statements {
			if err := c.compileStmt(stmt); err != nil {
				return err
			}
		}
		// Implicit `return null;` if the body falls through.
		c.emit0(bytecode.OpNull)
		c.emit0(bytecode.OpReturn)

		c.scopes = nil

		c.module.Functions = append(c.module.Functions, bytecode.FunctionEntry{
			Name:        fn.name,
			Arity:       len(fn.literal.Params),
			LocalCount:  scope.nextSlot,
			EntryOffset: entryOffset,
			DebugIndex:  -1,
		})
	}
	return nil
}

func (c *Compiler) currentScope() *funcScope {
	if len(c.scopes) == 0 {
		return nil
	}
	return c.scopes[len(c.scopes)-1]
}

// --- emission helpers ---

func (c *Compiler) emit0(op bytecode.Opcode) {
	c.code = bytecode.Emit(c.code, op, 0)
}

func (c *Compiler) emit(op bytecode.Opcode, operand int) {
	c.code = bytecode.Emit(c.code, op, operand)
}

// emitJumpPlaceholder emits op with a zero operand and returns the offset
// of its opcode byte, to be passed to patchJump once the target is known.
func (c *Compiler) emitJumpPlaceholder(op bytecode.Opcode) int {
	pos := len(c.code)
	c.emit(op, 0)
	return pos
}

func (c *Compiler) patchJump(pos int, target int) {
	next := pos + 3 // opcode byte + 2 operand bytes
	disp := target - next
	u := uint16(int16(disp))
	c.code[pos+1] = byte(u)
	c.code[pos+2] = byte(u >> 8)
}

func (c *Compiler) emitLoop(target int) {
	pos := len(c.code)
	next := pos + 3
	disp := target - next
	c.emit(bytecode.OpLoop, disp)
}

func (c *Compiler) nextSynthetic() string {
	name := fmt.Sprintf("<fn:%d>", c.fnCounter)
	c.fnCounter++
	return name
}

// --- statements ---

func (c *Compiler) compileStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.ExpressionStmt:
		if err := c.compileExpr(st.Expression); err != nil {
			return err
		}
		c.emit0(bytecode.OpPop)
		return nil

	case *ast.LetStmt:
		return c.compileDecl(st.Name, st.Initializer, false)

	case *ast.VarStmt:
		return c.compileDecl(st.Name, st.Initializer, true)

	case *ast.BlockStmt:
		for _, inner := range st.Statements {
			if err := c.compileStmt(inner); err != nil {
				return err
			}
		}
		return nil

	case *ast.IfStmt:
		return c.compileIf(st)

	case *ast.WhileStmt:
		return c.compileWhile(st)

	case *ast.ForStmt:
		return c.compileFor(st)

	case *ast.ReturnStmt:
		if st.Value != nil {
			if err := c.compileExpr(st.Value); err != nil {
				return err
			}
		} else {
			c.emit0(bytecode.OpNull)
		}
		c.emit0(bytecode.OpReturn)
		return nil

	case *ast.BreakStmt:
		if len(c.loops) == 0 {
			return &Error{Message: "break outside of a loop", Span: st.Span}
		}
		loop := c.loops[len(c.loops)-1]
		pos := c.emitJumpPlaceholder(bytecode.OpJump)
		loop.breakPatches = append(loop.breakPatches, pos)
		return nil

	case *ast.ContinueStmt:
		if len(c.loops) == 0 {
			return &Error{Message: "continue outside of a loop", Span: st.Span}
		}
		loop := c.loops[len(c.loops)-1]
		if loop.continueTarget != nil {
			c.emitLoop(*loop.continueTarget)
		} else {
			pos := c.emitJumpPlaceholder(bytecode.OpJump)
			loop.continuePatches = append(loop.continuePatches, pos)
		}
		return nil

	case *ast.FunctionDeclStmt:
		if err := c.compileExpr(st.Literal); err != nil {
			return err
		}
		if err := c.declare(st.Name, false); err != nil {
			return err
		}
		c.emit0(bytecode.OpPop)
		return nil

	default:
		return &Error{Message: fmt.Sprintf("compiler: unhandled statement %T", s), Span: s.SourceSpan()}
	}
}

// compileDecl compiles `let`/`var name = initializer;`.
func (c *Compiler) compileDecl(name string, init ast.Expression, mutable bool) error {
	if err := c.compileExpr(init); err != nil {
		return err
	}
	if err := c.declare(name, mutable); err != nil {
		return err
	}
	c.emit0(bytecode.OpPop)
	return nil
}

// declare binds name in the current scope (local if inside a function
// body, global at top level) to whatever value is currently on top of the
// operand stack, leaving it in place (Set opcodes peek, not pop).
func (c *Compiler) declare(name string, mutable bool) error {
	if scope := c.currentScope(); scope != nil {
		slot := scope.declare(name, mutable)
		c.emit(bytecode.OpSetLocal, slot)
		return nil
	}
	slot := c.module.AddGlobalName(name)
	c.globalMutable[name] = mutable
	c.emit(bytecode.OpSetGlobal, slot)
	return nil
}

func (c *Compiler) compileIf(st *ast.IfStmt) error {
	if err := c.compileExpr(st.Condition); err != nil {
		return err
	}
	elseJump := c.emitJumpPlaceholder(bytecode.OpJumpIfFalse)
	if err := c.compileStmt(st.Then); err != nil {
		return err
	}
	if st.Else == nil {
		c.patchJump(elseJump, len(c.code))
		return nil
	}
	endJump := c.emitJumpPlaceholder(bytecode.OpJump)
	c.patchJump(elseJump, len(c.code))
	if err := c.compileStmt(st.Else); err != nil {
		return err
	}
	c.patchJump(endJump, len(c.code))
	return nil
}

func (c *Compiler) compileWhile(st *ast.WhileStmt) error {
	loopStart := len(c.code)
	if err := c.compileExpr(st.Condition); err != nil {
		return err
	}
	endJump := c.emitJumpPlaceholder(bytecode.OpJumpIfFalse)

	target := loopStart
	loop := &loopCtx{continueTarget: &target}
	c.loops = append(c.loops, loop)
	if err := c.compileStmt(st.Body); err != nil {
		return err
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart)
	c.patchJump(endJump, len(c.code))
	for _, p := range loop.breakPatches {
		c.patchJump(p, len(c.code))
	}
	return nil
}

func (c *Compiler) compileFor(st *ast.ForStmt) error {
	if st.Init != nil {
		if err := c.compileStmt(st.Init); err != nil {
			return err
		}
	}
	loopStart := len(c.code)
	var endJump int
	hasCond := st.Condition != nil
	if hasCond {
		if err := c.compileExpr(st.Condition); err != nil {
			return err
		}
		endJump = c.emitJumpPlaceholder(bytecode.OpJumpIfFalse)
	}

	var loop *loopCtx
	if st.Post == nil {
		target := loopStart
		loop = &loopCtx{continueTarget: &target}
	} else {
		loop = &loopCtx{}
	}
	c.loops = append(c.loops, loop)
	if err := c.compileStmt(st.Body); err != nil {
		return err
	}
	c.loops = c.loops[:len(c.loops)-1]

	postStart := len(c.code)
	if st.Post != nil {
		if err := c.compileExpr(st.Post); err != nil {
			return err
		}
		c.emit0(bytecode.OpPop)
		for _, p := range loop.continuePatches {
			c.patchJump(p, postStart)
		}
	}
	c.emitLoop(loopStart)
	if hasCond {
		c.patchJump(endJump, len(c.code))
	}
	for _, p := range loop.breakPatches {
		c.patchJump(p, len(c.code))
	}
	return nil
}

// --- expressions ---

func (c *Compiler) compileExpr(e ast.Expression) error {
	switch ex := e.(type) {
	case *ast.Literal:
		c.compileLiteral(ex)
		return nil

	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			if err := c.compileExpr(el); err != nil {
				return err
			}
		}
		c.emit(bytecode.OpArray, len(ex.Elements))
		return nil

	case *ast.MapLiteral:
		return c.compileMapLiteral(ex)

	case *ast.Variable:
		return c.compileVariableRead(ex.Name, ex.Span)

	case *ast.Assign:
		if err := c.compileExpr(ex.Value); err != nil {
			return err
		}
		return c.compileAssign(ex.Name, ex.Span)

	case *ast.Binary:
		return c.compileBinary(ex)

	case *ast.Unary:
		if err := c.compileExpr(ex.Right); err != nil {
			return err
		}
		switch ex.Operator {
		case ast.OpNegate:
			c.emit0(bytecode.OpNegate)
		case ast.OpNot:
			c.emit0(bytecode.OpNot)
		}
		return nil

	case *ast.Logical:
		return c.compileLogical(ex)

	case *ast.Call:
		return c.compileCall(ex)

	case *ast.IndexGet:
		if err := c.compileExpr(ex.Collection); err != nil {
			return err
		}
		if err := c.compileExpr(ex.Index); err != nil {
			return err
		}
		c.emit0(bytecode.OpGetIndex)
		return nil

	case *ast.IndexSet:
		if err := c.compileExpr(ex.Collection); err != nil {
			return err
		}
		if err := c.compileExpr(ex.Index); err != nil {
			return err
		}
		if err := c.compileExpr(ex.Value); err != nil {
			return err
		}
		c.emit0(bytecode.OpSetIndex)
		return nil

	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(ex)

	case *ast.Grouping:
		return c.compileExpr(ex.Expression)

	default:
		return &Error{Message: fmt.Sprintf("compiler: unhandled expression %T", e), Span: e.SourceSpan()}
	}
}

func (c *Compiler) compileLiteral(lit *ast.Literal) {
	switch lit.Value.Kind() {
	case value.KindNull:
		c.emit0(bytecode.OpNull)
	case value.KindBool:
		if lit.Value.AsBool() {
			c.emit0(bytecode.OpTrue)
		} else {
			c.emit0(bytecode.OpFalse)
		}
	default:
		idx := c.module.AddConstant(lit.Value)
		c.emit(bytecode.OpConstant, idx)
	}
}

// compileMapLiteral has no dedicated opcode to build a map directly, so it
// lowers through the stdlib: fetch the `__map_from_pairs` native builtin
// first (as any ordinary call would), then push the flattened
// key1, value1, key2, value2, ... sequence as a single Array argument, and
// call it. Fetching the callee before the arguments (rather than after, as
// the map-literal's own source order might suggest) keeps this identical
// to every other call site and needs no stack-juggling.
func (c *Compiler) compileMapLiteral(lit *ast.MapLiteral) error {
	slot := c.module.AddGlobalName("__map_from_pairs")
	c.emit(bytecode.OpGetGlobal, slot)
	for _, entry := range lit.Entries {
		if err := c.compileExpr(entry.Key); err != nil {
			return err
		}
		if err := c.compileExpr(entry.Value); err != nil {
			return err
		}
	}
	c.emit(bytecode.OpArray, len(lit.Entries)*2)
	c.emit(bytecode.OpCall, 1)
	return nil
}

// scratchSlot allocates a slot for emitCallBuiltin's stack juggling.
// Inside a function body it is a fresh local slot, counted into that
// function's LocalCount; at top level, where the VM's implicit frame has
// no local window, it is a synthetic global from topLevelScratch.
func (c *Compiler) scratchSlot() int {
	if scope := c.currentScope(); scope != nil {
		slot := scope.nextSlot
		scope.nextSlot++
		return slot
	}
	return c.topLevelScratch()
}

func (c *Compiler) topLevelScratch() int {
	slot := c.module.AddGlobalName(fmt.Sprintf("<scratch:%d>", c.fnCounter))
	c.fnCounter++
	return slot
}

func (c *Compiler) compileVariableRead(name string, span ast.Span) error {
	if scope := c.currentScope(); scope != nil {
		if slot, ok := scope.locals[name]; ok {
			c.emit(bytecode.OpGetLocal, slot)
			return nil
		}
	}
	if err := c.checkOuterCapture(name, span); err != nil {
		return err
	}
	slot := c.module.AddGlobalName(name)
	c.emit(bytecode.OpGetGlobal, slot)
	return nil
}

// checkOuterCapture rejects a reference to an enclosing function's local
// or parameter: the fixed opcode set has no instruction to build a
// closure's captured-cell set at the point a nested function literal is
// created, so the compiler must catch this statically rather than
// silently resolving it as an (incorrect) global lookup.
func (c *Compiler) checkOuterCapture(name string, span ast.Span) error {
	for i := len(c.scopes) - 2; i >= 0; i-- {
		if _, ok := c.scopes[i].locals[name]; ok {
			return &Error{
				Message: fmt.Sprintf("nested function cannot capture enclosing local %q on the bytecode VM (the interpreter supports this; compile the closure to take it as a parameter instead)", name),
				Span:    span,
			}
		}
	}
	return nil
}

func (c *Compiler) compileAssign(name string, span ast.Span) error {
	if scope := c.currentScope(); scope != nil {
		if slot, ok := scope.locals[name]; ok {
			if !scope.mutable[name] {
				return &Error{Message: fmt.Sprintf("cannot assign to immutable binding %q declared with let", name), Span: span}
			}
			c.emit(bytecode.OpSetLocal, slot)
			return nil
		}
	}
	if err := c.checkOuterCapture(name, span); err != nil {
		return err
	}
	mutable, declared := c.globalMutable[name]
	if declared && !mutable {
		return &Error{Message: fmt.Sprintf("cannot assign to immutable binding %q declared with let", name), Span: span}
	}
	slot := c.module.AddGlobalName(name)
	c.emit(bytecode.OpSetGlobal, slot)
	return nil
}

func binaryOpcode(op ast.BinaryOp) (bytecode.Opcode, bool) {
	switch op {
	case ast.OpAdd:
		return bytecode.OpAdd, true
	case ast.OpSub:
		return bytecode.OpSub, true
	case ast.OpMul:
		return bytecode.OpMul, true
	case ast.OpDiv:
		return bytecode.OpDiv, true
	case ast.OpMod:
		return bytecode.OpMod, true
	case ast.OpEqual:
		return bytecode.OpEqual, true
	case ast.OpNotEqual:
		return bytecode.OpNotEqual, true
	case ast.OpLess:
		return bytecode.OpLess, true
	case ast.OpLessEq:
		return bytecode.OpLessEq, true
	case ast.OpGreater:
		return bytecode.OpGreater, true
	case ast.OpGreaterEq:
		return bytecode.OpGreaterEq, true
	default:
		return 0, false
	}
}

func (c *Compiler) compileBinary(ex *ast.Binary) error {
	if err := c.compileExpr(ex.Left); err != nil {
		return err
	}
	if err := c.compileExpr(ex.Right); err != nil {
		return err
	}
	op, ok := binaryOpcode(ex.Operator)
	if !ok {
		return &Error{Message: fmt.Sprintf("compiler: unknown binary operator %q", ex.Operator), Span: ex.Span}
	}
	c.emit0(op)
	return nil
}

// compileLogical lowers && to Dup+JumpIfFalse and || to Dup+Not+JumpIfFalse,
// exactly as spec'd: OpAnd/OpOr are enumerated but never emitted.
func (c *Compiler) compileLogical(ex *ast.Logical) error {
	if err := c.compileExpr(ex.Left); err != nil {
		return err
	}
	c.emit0(bytecode.OpDup)
	if ex.Operator == ast.OpOr {
		c.emit0(bytecode.OpNot)
	}
	shortCircuit := c.emitJumpPlaceholder(bytecode.OpJumpIfFalse)
	c.emit0(bytecode.OpPop)
	if err := c.compileExpr(ex.Right); err != nil {
		return err
	}
	c.patchJump(shortCircuit, len(c.code))
	return nil
}

func (c *Compiler) compileCall(ex *ast.Call) error {
	if err := c.compileExpr(ex.Callee); err != nil {
		return err
	}
	for _, arg := range ex.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	if len(ex.Args) > 255 {
		return &Error{Message: "call has more than 255 arguments", Span: ex.Span}
	}
	c.emit(bytecode.OpCall, len(ex.Args))

	// Stdlib write-back: when the first argument is a bare variable or an
	// index target, the mutation builtin's returned aggregate is written
	// back to that location, mirroring pkg/interp/call.go.
	if len(ex.Args) > 0 {
		c.emitWriteBack(ex.Args[0])
	}
	return nil
}

// emitWriteBack writes the call result (left on top of the stack by
// OpCall) back into lvalue, if lvalue is a bare Variable or an IndexGet
// chain. A non-lvalue first argument is left untouched: the extra
// OpSetLocal/OpSetGlobal/OpSetIndex sequence below always peeks and
// leaves the value on the stack, so it never changes the call
// expression's own result either way.
func (c *Compiler) emitWriteBack(arg ast.Expression) {
	switch a := arg.(type) {
	case *ast.Variable:
		if scope := c.currentScope(); scope != nil {
			if slot, ok := scope.locals[a.Name]; ok && scope.mutable[a.Name] {
				c.emit(bytecode.OpSetLocal, slot)
				return
			}
			if _, ok := scope.locals[a.Name]; ok {
				return // immutable local: builtin write-back on a `let` is a no-op
			}
		}
		if mutable, declared := c.globalMutable[a.Name]; declared && mutable {
			slot := c.module.AddGlobalName(a.Name)
			c.emit(bytecode.OpSetGlobal, slot)
		}
	case *ast.IndexGet:
		// Recreate `collection[index] = <call result>`. The result is
		// already on top of the stack; stash it in a scratch slot so
		// Collection/Index can be evaluated, then bring it back as
		// SetIndex's value operand. SetIndex itself leaves the written
		// value on the stack, which is exactly the call expression's
		// own result, so nothing further needs popping or restoring.
		local := c.currentScope() != nil
		scratch := c.scratchSlot()
		if local {
			c.emit(bytecode.OpSetLocal, scratch)
		} else {
			c.emit(bytecode.OpSetGlobal, scratch)
		}
		c.emit0(bytecode.OpPop)
		if err := c.compileExpr(a.Collection); err != nil {
			return
		}
		if err := c.compileExpr(a.Index); err != nil {
			return
		}
		if local {
			c.emit(bytecode.OpGetLocal, scratch)
		} else {
			c.emit(bytecode.OpGetGlobal, scratch)
		}
		c.emit0(bytecode.OpSetIndex)
	}
}

// compileFunctionLiteral queues lit's body for later compilation and emits
// the fetch of its preloaded global value. Every function literal, named
// or anonymous, top-level or nested, is registered under a fresh synthetic
// global name: the VM preloads these (and only these) synthetic slots at
// module-load time, so a `let`/`var`/`fn` declaration binding the literal
// to its user-visible name still only becomes visible when that
// declaration's own bytecode executes, matching the interpreter's
// sequential (non-hoisted) binding order exactly.
func (c *Compiler) compileFunctionLiteral(lit *ast.FunctionLiteral) error {
	name := c.nextSynthetic()
	slot := c.module.AddGlobalName(name)
	outer := append([]*funcScope(nil), c.scopes...)
	c.pending = append(c.pending, &pendingFn{literal: lit, slot: slot, name: name, outer: outer})
	c.emit(bytecode.OpGetGlobal, slot)
	return nil
}
