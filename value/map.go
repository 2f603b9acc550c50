package value

// OrderedMap is an insertion-ordered mapping from Key to Value (spec §3).
// Insertion order is preserved across Clone, and Keys (which Repr,
// iteration and JSON output walk) always returns insertion order; there is
// no mode that switches them to key order. SortedKeys returns the
// deterministic Key-value order on request.
type OrderedMap struct {
	keys   []Key
	values map[Key]Value
	index  map[Key]int
}

// NewOrderedMap constructs an empty map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[Key]Value), index: make(map[Key]int)}
}

// Set inserts or updates a key, preserving its original insertion position
// on update.
func (m *OrderedMap) Set(k Key, v Value) {
	if _, ok := m.values[k]; !ok {
		m.index[k] = len(m.keys)
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Get looks up a key.
func (m *OrderedMap) Get(k Key) (Value, bool) {
	v, ok := m.values[k]
	return v, ok
}

// Delete removes a key, preserving the relative order of the rest.
func (m *OrderedMap) Delete(k Key) {
	idx, ok := m.index[k]
	if !ok {
		return
	}
	delete(m.values, k)
	delete(m.index, k)
	m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	for i := idx; i < len(m.keys); i++ {
		m.index[m.keys[i]] = i
	}
}

// Len reports the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []Key {
	out := make([]Key, len(m.keys))
	copy(out, m.keys)
	return out
}

// SortedKeys returns the keys ordered deterministically by Key.Less,
// independent of insertion order.
func (m *OrderedMap) SortedKeys() []Key {
	out := m.Keys()
	sortKeys(out)
	return out
}

// Clone produces an independent copy sharing no mutable state.
func (m *OrderedMap) Clone() *OrderedMap {
	out := NewOrderedMap()
	for _, k := range m.keys {
		v, _ := m.values[k]
		out.Set(k, v)
	}
	return out
}

// Merge overlays other's entries onto m, used by `MergeKwargs`/`**expr`
// call-argument splats.
func (m *OrderedMap) Merge(other *OrderedMap) {
	for _, k := range other.keys {
		v, _ := other.values[k]
		m.Set(k, v)
	}
}

// FromPairs builds a map from alternating key/value pairs, most convenient
// at call sites building a literal map.
func FromPairs(pairs ...KV) *OrderedMap {
	m := NewOrderedMap()
	for _, p := range pairs {
		m.Set(p.K, p.V)
	}
	return m
}

// KV is a single key/value pair for FromPairs.
type KV struct {
	K Key
	V Value
}
