package store

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Tree is an immutable snapshot of a subtree. Children preserve the
// store's enumeration order; the nil tree is a valid empty snapshot and
// all accessors are nil-safe.
type Tree struct {
	leaf     interface{}
	keys     []string
	children map[string]*Tree
}

// Exists reports whether the snapshot holds any value.
func (t *Tree) Exists() bool {
	return t != nil && (t.leaf != nil || len(t.keys) > 0)
}

// Child returns the named child subtree, or nil when absent.
func (t *Tree) Child(key string) *Tree {
	if t == nil {
		return nil
	}
	return t.children[key]
}

// Keys returns child keys in the store's enumeration order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	return t.keys
}

// Len returns the number of children.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Str returns the leaf as a string, or "" when the node is absent or not a string.
func (t *Tree) Str() string {
	if t == nil {
		return ""
	}
	s, _ := t.leaf.(string)
	return s
}

// Bool returns the leaf as a bool, or false when the node is absent or not a bool.
func (t *Tree) Bool() bool {
	if t == nil {
		return false
	}
	b, _ := t.leaf.(bool)
	return b
}

// Value returns the raw leaf value (JSON-decoded), or nil.
func (t *Tree) Value() interface{} {
	if t == nil {
		return nil
	}
	return t.leaf
}

// MarshalJSON renders the subtree as nested JSON objects, children in
// enumeration order. A node with children marshals as an object; a pure
// leaf marshals as its value.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	if len(t.keys) == 0 {
		return json.Marshal(t.leaf)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		child, err := json.Marshal(t.children[k])
		if err != nil {
			return nil, err
		}
		buf.Write(child)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func newTree() *Tree {
	return &Tree{children: make(map[string]*Tree)}
}

// child returns the named child, creating it (and recording key order) if absent.
func (t *Tree) child(key string) *Tree {
	if c, ok := t.children[key]; ok {
		return c
	}
	c := newTree()
	t.children[key] = c
	t.keys = append(t.keys, key)
	return c
}

// at descends to the node for the given relative segments, creating
// intermediate nodes as needed.
func (t *Tree) at(segments []string) *Tree {
	node := t
	for _, seg := range segments {
		node = node.child(seg)
	}
	return node
}

// merge folds a JSON-decoded value into the node. Object fields become
// children (sorted by name, matching the backend's path ordering for
// sibling rows); any other value becomes the leaf.
func (t *Tree) merge(v interface{}) {
	m, ok := v.(map[string]interface{})
	if !ok {
		t.leaf = v
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.child(name).merge(m[name])
	}
}

// prune returns the tree, or nil when it holds nothing. Used after
// assembly so an absent path reads as a nil snapshot.
func (t *Tree) prune() *Tree {
	if !t.Exists() {
		return nil
	}
	return t
}
