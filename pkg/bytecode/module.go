package bytecode

import "atlas/pkg/value"

// Constant is a constant-pool entry. Per spec.md §3, the pool only ever
// holds Number, String, Bool, and Null — no aggregates — so a Constant is
// a plain value.Value built through one of the package-level helpers.
type Constant = value.Value

// FunctionEntry is one row of the function table: name, arity, local
// count, entry offset, and an optional debug-info pointer (an index into
// Module.DebugInfo, or -1 if absent).
type FunctionEntry struct {
	Name        string
	Arity       int
	LocalCount  int
	EntryOffset int
	DebugIndex  int // -1 if no debug info recorded
}

// DebugEntry maps one instruction offset to a source span.
type DebugEntry struct {
	Offset int
	File   string
	Line   int
	Column int
	Length int
}

// Module is the unit a VM executes: a constant pool, a function table, a
// flat instruction stream, a named-globals table, and a debug-info side
// table, per spec.md §3 "Bytecode Module".
type Module struct {
	Constants    []Constant
	Functions    []FunctionEntry
	GlobalNames  []string // indexed by the u16 operand of Get/SetGlobal
	Instructions []byte
	DebugInfo    []DebugEntry
}

// NewModule builds an empty module ready for a builder to append to.
func NewModule() *Module {
	return &Module{}
}

// AddConstant appends c to the constant pool and returns its index.
func (m *Module) AddConstant(c Constant) int {
	m.Constants = append(m.Constants, c)
	return len(m.Constants) - 1
}

// AddGlobalName registers name in the globals table and returns its slot,
// reusing an existing slot if name was already registered.
func (m *Module) AddGlobalName(name string) int {
	for i, n := range m.GlobalNames {
		if n == name {
			return i
		}
	}
	m.GlobalNames = append(m.GlobalNames, name)
	return len(m.GlobalNames) - 1
}

// DebugSpanFor returns the source span registered for the instruction at
// offset, or a zero DebugEntry and false if none was recorded (linear scan is fine: the
// debug table is only consulted on the cold failure path).
func (m *Module) DebugSpanFor(offset int) (DebugEntry, bool) {
	for _, d := range m.DebugInfo {
		if d.Offset == offset {
			return d, true
		}
	}
	return DebugEntry{}, false
}
