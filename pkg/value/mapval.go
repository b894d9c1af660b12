package value

// Map is the copy-on-write handle behind the Map Value variant. Keys must
// be hashable (Number, String, Bool, Null); iteration order is insertion
// order and must be preserved across insert and remove, per spec.md §5.
//
// Internally a Map is an ordered slice of entries plus a hash index for
// O(1) average lookup; entries keep their position on update, and a
// delete marks its entry dead (live=false) without moving any other
// entry, so lookups, Len and Keys skip dead entries.
type Map struct {
	entries  []mapEntry
	index    map[uint64][]int // hash -> indices into entries, for collisions
	refcount *int32
}

type mapEntry struct {
	key   Value
	value Value
	live  bool
}

// NewMap builds a fresh, unshared empty Map handle.
func NewMap() *Map {
	refcount := int32(1)
	return &Map{index: make(map[uint64][]int), refcount: &refcount}
}

// Alias returns a new handle sharing the same backing storage, bumping
// the shared refcount (mirrors Array.Alias).
func (m *Map) Alias() *Map {
	*m.refcount++
	return &Map{entries: m.entries, index: m.index, refcount: m.refcount}
}

func (m *Map) makeExclusive() {
	if *m.refcount <= 1 {
		return
	}
	*m.refcount--
	clonedEntries := make([]mapEntry, len(m.entries))
	copy(clonedEntries, m.entries)
	clonedIndex := make(map[uint64][]int, len(m.index))
	for h, ids := range m.index {
		cp := make([]int, len(ids))
		copy(cp, ids)
		clonedIndex[h] = cp
	}
	m.entries = clonedEntries
	m.index = clonedIndex
	newRefcount := int32(1)
	m.refcount = &newRefcount
}

func (m *Map) find(key Value) (int, bool) {
	if !Hashable(key) {
		return -1, false
	}
	h := Hash(key)
	for _, idx := range m.index[h] {
		if m.entries[idx].live && Eq(m.entries[idx].key, key) {
			return idx, true
		}
	}
	return -1, false
}

// Get looks up key, returning (Null, false) if absent. At the opcode
// level (GetIndex on a map), a missing key yields Null rather than a
// failure per spec.md's instruction table; a direct mapGet-style builtin
// may choose to surface the `ok` flag instead.
func (m *Map) Get(key Value) (Value, bool) {
	idx, found := m.find(key)
	if !found {
		return Null, false
	}
	return m.entries[idx].value, true
}

// Insert writes key -> val, appending a new entry (preserving insertion
// order) if key is new, or updating in place if key already exists.
// Returns the resulting Map (copy-on-write).
func (m *Map) Insert(key, val Value) *Map {
	m.makeExclusive()
	if idx, found := m.find(key); found {
		m.entries[idx].value = val
		return m
	}
	h := Hash(key)
	idx := len(m.entries)
	m.entries = append(m.entries, mapEntry{key: key, value: val, live: true})
	m.index[h] = append(m.index[h], idx)
	return m
}

// Remove deletes key if present, returning the resulting Map and whether
// the key existed.
func (m *Map) Remove(key Value) (*Map, bool) {
	m.makeExclusive()
	idx, found := m.find(key)
	if !found {
		return m, false
	}
	m.entries[idx].live = false
	return m, true
}

// Len returns the number of live entries.
func (m *Map) Len() int {
	n := 0
	for _, e := range m.entries {
		if e.live {
			n++
		}
	}
	return n
}

// Keys returns live keys in insertion order.
func (m *Map) Keys() []Value {
	keys := make([]Value, 0, len(m.entries))
	for _, e := range m.entries {
		if e.live {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func mapEq(a, b *Map) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		av, _ := a.Get(k)
		bv, found := b.Get(k)
		if !found || !Eq(av, bv) {
			return false
		}
	}
	return true
}
