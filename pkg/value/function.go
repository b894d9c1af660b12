package value

// Function is the runtime representation of a declared function shared by
// both engines. The VM and the interpreter populate different fields:
//   - The interpreter sets AST and Captured (its Environment, typed as
//     `any` here to avoid an import cycle with pkg/interp).
//   - The VM sets EntryOffset and LocalSlot. Nothing populates
//     CapturedCells: pkg/compiler rejects functions that capture an
//     enclosing function's locals.
//
// Function equality is reference identity (spec.md §3); two Functions
// built from the same declaration but captured at different times are
// distinct values.
type Function struct {
	Name      string
	Arity     int
	LocalSlot int // number of local variable slots a VM frame should reserve

	// Interpreter-side fields.
	AST      any // *ast.FunctionLiteral, kept untyped to avoid an import cycle
	Captured any // *interp.Environment

	// VM-side fields.
	EntryOffset   int
	CapturedCells []*Cell // closed-over variable cells, by value or shared per capture rules
}

// Cell is a single captured variable slot. Copy types are snapshotted into
// Value directly at capture time; non-Copy types share the same handle as
// the enclosing scope's cell, which is what lets a closure observe later
// mutation of a shared aggregate through Shared(T) but never through a
// bare var/let rebinding (see spec.md §4.4 "capture semantics").
type Cell struct {
	Value    Value
	Mutable  bool // true for `var`, false for `let`
}
