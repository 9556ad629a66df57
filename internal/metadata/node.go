package metadata

import (
	"maps"
	"slices"
)

// Node is one value in a metadata tree: a Leaf, a List or a *Map.
type Node interface {
	node()
}

// Leaf is a normalized text value.
type Leaf string

// List is an ordered sequence of nodes, e.g. typology terms or change records.
type List []Node

// Map is an ordered set of named children. The zero value is not usable;
// construct with NewMap.
type Map struct {
	keys   []string
	values map[string]Node
}

func (Leaf) node() {}
func (List) node() {}
func (*Map) node() {}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: make(map[string]Node)}
}

// Get returns the child stored under key.
func (m *Map) Get(key string) (Node, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Set stores v under key. Existing keys keep their position.
func (m *Map) Set(key string, v Node) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
	return true
}

// Keys returns child names in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Len returns the number of children.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, Clone(m.values[k]))
	}
	return out
}

// Clone deep-copies any node.
func Clone(n Node) Node {
	switch v := n.(type) {
	case Leaf:
		return v
	case List:
		out := make(List, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	case *Map:
		return v.Clone()
	default:
		return nil
	}
}

// Equal reports whether two trees hold the same values. Map comparison
// ignores child order; list comparison does not.
func Equal(a, b Node) bool {
	switch av := a.(type) {
	case Leaf:
		bv, ok := b.(Leaf)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			other, ok := bv.values[k]
			if !ok || !Equal(av.values[k], other) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}

// Plain converts a tree into strings, slices and maps for generic encoders.
func Plain(n Node) any {
	switch v := n.(type) {
	case Leaf:
		return string(v)
	case List:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Plain(item)
		}
		return out
	case *Map:
		out := make(map[string]any, v.Len())
		for k, child := range v.values {
			out[k] = Plain(child)
		}
		return out
	default:
		return nil
	}
}

// Text returns the leaf text of n, or "" when n is not a leaf.
func Text(n Node) string {
	if leaf, ok := n.(Leaf); ok {
		return string(leaf)
	}
	return ""
}

// sortedKeys is used where deterministic iteration is required over a plain map.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
