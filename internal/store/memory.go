package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process Store. Children enumerate in insertion order,
// the order a realtime-database collaborator would return them in.
// Used by tests and local development.
type Memory struct {
	mu      sync.RWMutex
	order   []string
	rows    map[string]interface{}
	subs    map[uint64]*Subscription
	nextSub uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]interface{}), subs: make(map[uint64]*Subscription)}
}

// ReadOnce returns a snapshot of the subtree at path, nil when absent.
func (m *Memory) ReadOnce(ctx context.Context, path string) (*Tree, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assembleLocked(path), nil
}

// Write replaces the subtree at path with value.
func (m *Memory) Write(ctx context.Context, path string, value interface{}) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropDescendantsLocked(path)
	if _, ok := m.rows[path]; !ok {
		m.order = append(m.order, path)
	}
	m.rows[path] = v
	m.notifyLocked(path)
	return nil
}

// Patch merges fields into the record at path without disturbing siblings.
func (m *Memory) Patch(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	v, err := normalize(fields)
	if err != nil {
		return err
	}
	patch, _ := v.(map[string]interface{})
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[path].(map[string]interface{})
	if !ok {
		existing = make(map[string]interface{})
	}
	for k, fv := range patch {
		existing[k] = fv
	}
	if _, present := m.rows[path]; !present {
		m.order = append(m.order, path)
	}
	m.rows[path] = existing
	m.notifyLocked(path)
	return nil
}

// Remove deletes the subtree at path and all descendants.
func (m *Memory) Remove(ctx context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropDescendantsLocked(path)
	if _, ok := m.rows[path]; ok {
		delete(m.rows, path)
		m.dropFromOrderLocked(path)
	}
	m.notifyLocked(path)
	return nil
}

// Subscribe registers a subscription on path. The current snapshot is
// delivered immediately.
func (m *Memory) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	sub := newSubscription(path, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	})
	m.subs[id] = sub
	snapshot := m.assembleLocked(path)
	m.mu.Unlock()
	sub.deliver(snapshot)
	return sub, nil
}

func (m *Memory) dropDescendantsLocked(path string) {
	prefix := path + "/"
	kept := m.order[:0]
	for _, p := range m.order {
		if strings.HasPrefix(p, prefix) {
			delete(m.rows, p)
			continue
		}
		kept = append(kept, p)
	}
	m.order = kept
}

func (m *Memory) dropFromOrderLocked(path string) {
	for i, p := range m.order {
		if p == path {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Memory) assembleLocked(root string) *Tree {
	t := newTree()
	prefix := root + "/"
	for _, p := range m.order {
		switch {
		case p == root:
			t.merge(m.rows[p])
		case strings.HasPrefix(p, prefix):
			t.at(strings.Split(p[len(prefix):], "/")).merge(m.rows[p])
		}
	}
	return t.prune()
}

func (m *Memory) notifyLocked(changed string) {
	for _, sub := range m.subs {
		if pathsOverlap(sub.path, changed) {
			sub.deliver(m.assembleLocked(sub.path))
		}
	}
}

// normalize round-trips a value through JSON so the stored shape matches
// what the Postgres backend reads back (maps, slices, strings, bools,
// float64 numbers).
func normalize(value interface{}) (interface{}, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}
