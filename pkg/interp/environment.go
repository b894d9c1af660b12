package interp

import "atlas/pkg/value"

// Environment is a single scope frame: a map from name to cell, with a
// parent pointer toward the lexically enclosing scope. Name lookup walks
// inner to outer, mirroring nilan's Environment but adding the
// parent-chain nilan's single flat map didn't need (nilan had no nested
// block scoping) and a let/var mutability flag on each cell per spec.md's
// Environment model.
type Environment struct {
	parent   *Environment
	vars     map[string]*value.Cell
	borrowed map[string]bool
}

// NewEnvironment builds a root environment with no parent (used once, for
// the top-level program scope).
func NewEnvironment() *Environment {
	return &Environment{vars: make(map[string]*value.Cell)}
}

// NewChildEnvironment builds a scope nested inside parent, used for block
// bodies, loop bodies, and function-call activations.
func NewChildEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, vars: make(map[string]*value.Cell)}
}

// Declare introduces a new binding in this scope. Redeclaring a name
// already present in this same scope (not an outer one) shadows it,
// matching ordinary lexical shadowing; spec.md's "rebinding disallowed"
// rule concerns assignment into a let cell, not redeclaration of a new
// binding with the same name.
func (e *Environment) Declare(name string, v value.Value, mutable bool) {
	e.vars[name] = &value.Cell{Value: v, Mutable: mutable}
}

// DeclareBorrowed binds a `borrow` parameter. Borrowed bindings are
// excluded from closure capture (snapshotEnv skips them), which is the
// dynamic half of the "borrowed parameters may not be captured by a
// nested closure" rule; the static half belongs to a future checker.
func (e *Environment) DeclareBorrowed(name string, v value.Value) {
	e.vars[name] = &value.Cell{Value: v, Mutable: false}
	if e.borrowed == nil {
		e.borrowed = make(map[string]bool)
	}
	e.borrowed[name] = true
}

// isBorrowed reports whether name is bound as `borrow` in this exact
// scope (borrow status does not inherit through the parent chain: a
// nested block re-declaring the same name shadows it normally).
func (e *Environment) isBorrowed(name string) bool {
	return e.borrowed != nil && e.borrowed[name]
}

// WriteBack overwrites name's cell unconditionally, bypassing the
// let/var mutability gate that Assign enforces. This is how a stdlib
// mutation builtin's result (array push/pop, map insert/remove, ...)
// flows back into a `let`-bound aggregate: spec.md treats in-place
// aggregate mutation as distinct from rebinding the name itself.
func (e *Environment) WriteBack(name string, v value.Value) bool {
	cell, ok := e.lookup(name)
	if !ok {
		return false
	}
	cell.Value = v
	return true
}

// lookup finds the cell bound to name, searching this scope then each
// enclosing scope outward.
func (e *Environment) lookup(name string) (*value.Cell, bool) {
	for env := e; env != nil; env = env.parent {
		if cell, ok := env.vars[name]; ok {
			return cell, true
		}
	}
	return nil, false
}

// Get reads name's current value. ok is false for an undefined name.
func (e *Environment) Get(name string) (value.Value, bool) {
	cell, ok := e.lookup(name)
	if !ok {
		return value.Null, false
	}
	return cell.Value, true
}

// snapshotEnv builds a flat environment capturing every binding visible
// from env, inner scopes shadowing outer ones, each copied into a brand
// new *Cell. This is what gives closures their capture semantics:
//   - Copy-type values (Number/Bool/Null/...) are snapshotted by value,
//     since copying a value.Value copies its scalar payload directly.
//   - Non-Copy values (String/Array/Map/Function) still share their
//     underlying handle (copying a Value copies the handle pointer, not
//     the aggregate), so in-place mutation of a captured Array or Map
//     through that handle (for example by push) is visible to the
//     closure, as is mutation through Shared(T).
//   - Because the new Cell is a distinct object from the original, a
//     later `var` reassignment in the enclosing scope (which mutates the
//     original cell in place) is invisible to the closure: the snapshot
//     already holds its own copy of the value as of capture time.
//
// Borrowed parameters are omitted entirely, so a closure referencing one
// sees an undefined name rather than a stale snapshot.
func snapshotEnv(env *Environment) *Environment {
	snap := NewEnvironment()
	seen := make(map[string]bool)
	for e := env; e != nil; e = e.parent {
		for name, cell := range e.vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if e.isBorrowed(name) {
				continue
			}
			snap.vars[name] = &value.Cell{Value: cell.Value, Mutable: cell.Mutable}
		}
	}
	return snap
}

// Assign writes v to the existing binding name. It reports (ok=false) if
// name is undefined, or (ok=false, immutable=true) if name was declared
// with `let` — the caller maps the first to an undefined-name failure
// (UndefinedGlobal or UndefinedLocal, per undefinedKind) and the
// second to TypeError-class "cannot assign to immutable binding".
func (e *Environment) Assign(name string, v value.Value) (ok, immutable bool) {
	cell, found := e.lookup(name)
	if !found {
		return false, false
	}
	if !cell.Mutable {
		return false, true
	}
	cell.Value = v
	return true, false
}
