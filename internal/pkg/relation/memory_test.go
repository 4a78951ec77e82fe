package relation

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store keeping both directions of every relation,
// used to exercise Toggle without a database.
type Memory struct {
	mu      sync.RWMutex
	forward map[Kind]map[uint]map[uint]struct{}
	reverse map[Kind]map[uint]map[uint]struct{}
}

// NewMemory returns an empty in-memory relation store.
func NewMemory() *Memory {
	return &Memory{
		forward: make(map[Kind]map[uint]map[uint]struct{}),
		reverse: make(map[Kind]map[uint]map[uint]struct{}),
	}
}

func (m *Memory) Related(_ context.Context, kind Kind, subject, object uint) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.forward[kind][subject][object]
	return ok, nil
}

func (m *Memory) Link(_ context.Context, kind Kind, subject, object uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	add(m.forward, kind, subject, object)
	add(m.reverse, kind, object, subject)
	return nil
}

func (m *Memory) Unlink(_ context.Context, kind Kind, subject, object uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove(m.forward, kind, subject, object)
	remove(m.reverse, kind, object, subject)
	return nil
}

// Objects lists what subject is related to (e.g. who a user follows).
func (m *Memory) Objects(kind Kind, subject uint) []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return keys(m.forward[kind][subject])
}

// Subjects lists who is related to object (e.g. a user's followers).
func (m *Memory) Subjects(kind Kind, object uint) []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return keys(m.reverse[kind][object])
}

func add(idx map[Kind]map[uint]map[uint]struct{}, kind Kind, a, b uint) {
	if idx[kind] == nil {
		idx[kind] = make(map[uint]map[uint]struct{})
	}
	if idx[kind][a] == nil {
		idx[kind][a] = make(map[uint]struct{})
	}
	idx[kind][a][b] = struct{}{}
}

func remove(idx map[Kind]map[uint]map[uint]struct{}, kind Kind, a, b uint) {
	set := idx[kind][a]
	if set == nil {
		return
	}
	delete(set, b)
	if len(set) == 0 {
		delete(idx[kind], a)
	}
}

func keys(set map[uint]struct{}) []uint {
	out := make([]uint, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
