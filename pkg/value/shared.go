package value

import "sync"

// Shared is the explicit mutable cell type, Atlas's only reference-typed
// value: writes through one alias of a Shared(T) are visible through
// every other alias, unlike String/Array/Map which look value-typed via
// copy-on-write write-back.
//
// Per spec.md §5, no engine holds a lock across opcodes or AST nodes;
// the mutex here only guards the single Get/Set access itself, so
// cross-thread use of the same Shared cell (independent VM/interpreter
// instances running in parallel, per spec.md §5) is safe without the
// engines knowing anything about locking.
type Shared struct {
	mu    sync.Mutex
	value Value
}

// NewShared wraps v in a fresh Shared cell.
func NewShared(v Value) *Shared {
	return &Shared{value: v}
}

// Get reads the current value under lock.
func (s *Shared) Get() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set writes v under lock.
func (s *Shared) Set(v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}
