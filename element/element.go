// Package element provides an immutable, composable bag of keyed values
// that travels with scopes and tasks. The package defines only the
// composition algebra; element kinds (keys and their value types) are
// registered by callers.
package element

// Key identifies one element kind within a Set. Keys are compared with ==,
// so the conventional pattern is an unexported struct type per kind:
//
//	type nameKey struct{}
//
// which makes collisions across packages impossible.
type Key any

// Set is an immutable mapping from Key to value. The zero value is the
// empty set and is ready to use. All operations return a new Set; a Set
// is never mutated after construction and is safe for concurrent reads.
type Set struct {
	m     map[Key]any
	order []Key // insertion order, gives Fold a stable visit order
}

// Empty returns the empty set. Equivalent to the zero value.
func Empty() Set { return Set{} }

// New builds a Set from alternating key/value pairs. Later pairs replace
// earlier ones for the same key. It panics if the number of arguments is odd.
func New(pairs ...any) Set {
	if len(pairs)%2 != 0 {
		panic("element: New requires an even number of arguments")
	}
	s := Set{}
	for i := 0; i < len(pairs); i += 2 {
		s = s.With(pairs[i], pairs[i+1])
	}
	return s
}

// Get returns the element stored under k, if any.
func (s Set) Get(k Key) (any, bool) {
	v, ok := s.m[k]
	return v, ok
}

// Len returns the number of elements in the set.
func (s Set) Len() int { return len(s.m) }

// With returns a copy of s with v stored under k, replacing any
// existing element for k.
func (s Set) With(k Key, v any) Set {
	m := make(map[Key]any, len(s.m)+1)
	for key, val := range s.m {
		m[key] = val
	}
	_, existed := m[k]
	m[k] = v
	order := make([]Key, 0, len(m))
	order = append(order, s.order...)
	if !existed {
		order = append(order, k)
	}
	return Set{m: m, order: order}
}

// Merge returns the union of s and other. On key collision the element
// from other wins (right-biased).
func (s Set) Merge(other Set) Set {
	if len(other.m) == 0 {
		return s
	}
	if len(s.m) == 0 {
		return other
	}
	out := s
	for _, k := range other.order {
		out = out.With(k, other.m[k])
	}
	return out
}

// Without returns a copy of s with the element under k removed.
// Removing an absent key returns s unchanged.
func (s Set) Without(k Key) Set {
	if _, ok := s.m[k]; !ok {
		return s
	}
	m := make(map[Key]any, len(s.m)-1)
	order := make([]Key, 0, len(s.m)-1)
	for _, key := range s.order {
		if key == k {
			continue
		}
		m[key] = s.m[key]
		order = append(order, key)
	}
	return Set{m: m, order: order}
}

// Fold visits every element in insertion order, threading an accumulator
// through combine. The order is stable for a given Set instance.
func (s Set) Fold(initial any, combine func(acc any, k Key, v any) any) any {
	acc := initial
	for _, k := range s.order {
		acc = combine(acc, k, s.m[k])
	}
	return acc
}
