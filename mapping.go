package chainmap

import "iter"

// Mapping is a single layer participating in a Chain. Implementations are
// held by reference: mutations made through a Chain are visible to every
// other holder of the same Mapping, and vice versa.
type Mapping[K comparable, V any] interface {
	Lookup(key K) (V, bool)
	Store(key K, value V)
	Remove(key K) bool
	Len() int
	All() iter.Seq2[K, V]
}

// Map adapts a plain Go map to Mapping. Converting a map shares it, it does
// not copy it.
type Map[K comparable, V any] map[K]V

func (m Map[K, V]) Lookup(key K) (V, bool) {
	value, ok := m[key]
	return value, ok
}

func (m Map[K, V]) Store(key K, value V) {
	m[key] = value
}

func (m Map[K, V]) Remove(key K) bool {
	if _, ok := m[key]; !ok {
		return false
	}
	delete(m, key)
	return true
}

func (m Map[K, V]) Len() int {
	return len(m)
}

// All iterates the map in Go's unspecified map order.
func (m Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for key, value := range m {
			if !yield(key, value) {
				return
			}
		}
	}
}

// OrderedMap is a Mapping that enumerates keys in insertion order.
// Overwriting an existing key keeps its original position.
type OrderedMap[K comparable, V any] struct {
	index   map[K]int
	entries []orderedEntry[K, V]
	live    int
	ranging int
}

type orderedEntry[K comparable, V any] struct {
	key     K
	value   V
	deleted bool
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{index: map[K]int{}}
}

func (m *OrderedMap[K, V]) Lookup(key K) (V, bool) {
	if pos, ok := m.index[key]; ok {
		return m.entries[pos].value, true
	}
	var zero V
	return zero, false
}

func (m *OrderedMap[K, V]) Store(key K, value V) {
	if m.index == nil {
		m.index = map[K]int{}
	}
	if pos, ok := m.index[key]; ok {
		m.entries[pos].value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, orderedEntry[K, V]{key: key, value: value})
	m.live++
}

func (m *OrderedMap[K, V]) Remove(key K) bool {
	pos, ok := m.index[key]
	if !ok {
		return false
	}
	delete(m.index, key)
	var zero V
	m.entries[pos] = orderedEntry[K, V]{key: key, value: zero, deleted: true}
	m.live--
	m.maybeCompact()
	return true
}

func (m *OrderedMap[K, V]) Len() int {
	return m.live
}

// All iterates entries in insertion order. Keys may be removed while
// ranging; entries stored during the range may or may not be visited.
func (m *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.ranging++
		defer func() {
			m.ranging--
			m.maybeCompact()
		}()
		for i := 0; i < len(m.entries); i++ {
			entry := m.entries[i]
			if entry.deleted {
				continue
			}
			if !yield(entry.key, entry.value) {
				return
			}
		}
	}
}

// maybeCompact drops tombstones once they outnumber live entries. Positions
// must stay stable while any range over All is in progress.
func (m *OrderedMap[K, V]) maybeCompact() {
	if m.ranging > 0 {
		return
	}
	if len(m.entries) > 8 && m.live < len(m.entries)/2 {
		m.compact()
	}
}

func (m *OrderedMap[K, V]) compact() {
	kept := make([]orderedEntry[K, V], 0, m.live)
	for _, entry := range m.entries {
		if entry.deleted {
			continue
		}
		m.index[entry.key] = len(kept)
		kept = append(kept, entry)
	}
	m.entries = kept
}
