package value

// Array is the copy-on-write handle behind the Array Value variant.
// Multiple Values can reference the same *Array (that's what makes
// `let b = a` an O(1) alias); mutation calls makeExclusive first, which
// clones the backing slice only if it is currently shared (refcount > 1),
// so unaliased mutation stays O(1) while aliased mutation clones once.
type Array struct {
	items    []Value
	refcount *int32
}

// NewArray builds a fresh, unshared Array handle from items. The slice is
// copied so later mutation of the caller's slice can't bleed through.
func NewArray(items []Value) *Array {
	refcount := int32(1)
	owned := make([]Value, len(items))
	copy(owned, items)
	return &Array{items: owned, refcount: &refcount}
}

// Alias returns a new handle that shares the same backing slice, bumping
// the shared refcount. This is what `let b = a` does: b.arr and a.arr
// are distinct *Array values pointing at the same storage until one of
// them mutates.
func (a *Array) Alias() *Array {
	*a.refcount++
	return &Array{items: a.items, refcount: a.refcount}
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.items) }

// Get returns the element at index i. Callers must bounds-check first;
// out-of-bounds access is an IndexOutOfBounds failure raised by the
// dispatch layer, not by Array itself.
func (a *Array) Get(i int) Value { return a.items[i] }

// makeExclusive ensures a.items is not shared with any other Array handle
// before a mutation, cloning the backing slice on first write after an
// alias and doing nothing (O(1)) when the handle is already exclusive.
func (a *Array) makeExclusive() {
	if *a.refcount <= 1 {
		return
	}
	*a.refcount--
	cloned := make([]Value, len(a.items))
	copy(cloned, a.items)
	a.items = cloned
	newRefcount := int32(1)
	a.refcount = &newRefcount
}

// Push appends v and returns the receiver. makeExclusive runs first, so an
// aliased handle gets its own copy of the backing slice before the append
// and an exclusive handle is appended to in place; the write-back decision
// is left to the dispatch layer (see pkg/builtin).
func (a *Array) Push(v Value) *Array {
	a.makeExclusive()
	a.items = append(a.items, v)
	return a
}

// Pop removes and returns the last element along with the resulting Array.
// ok is false on an empty array (the caller maps that to IndexOutOfBounds).
func (a *Array) Pop() (result *Array, popped Value, ok bool) {
	if len(a.items) == 0 {
		return a, Value{}, false
	}
	a.makeExclusive()
	last := a.items[len(a.items)-1]
	a.items = a.items[:len(a.items)-1]
	return a, last, true
}

// Set writes v at index i, copy-on-write.
func (a *Array) Set(i int, v Value) *Array {
	a.makeExclusive()
	a.items[i] = v
	return a
}

// Sorted orders the receiver's elements by less and returns the receiver.
// makeExclusive runs first, so when the handle is aliased the receiver is
// sorted on its own copy and the other aliases keep the old order; an
// exclusive handle is sorted in place.
func (a *Array) Sorted(less func(x, y Value) bool) *Array {
	a.makeExclusive()
	items := a.items
	// Simple insertion sort: arrays here are small script-level
	// collections, and insertion sort keeps the comparator contract
	// (stable, total order supplied by the caller) obvious.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	return a
}

// Items returns a read-only snapshot of the backing slice for iteration.
// Callers must not mutate the returned slice.
func (a *Array) Items() []Value { return a.items }

func arrayEq(a, b *Array) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !Eq(a.Get(i), b.Get(i)) {
			return false
		}
	}
	return true
}
