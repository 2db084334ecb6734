// Package logring keeps the most recent engine output lines of each flow.
package logring

import "sync"

// Capacity is the number of lines kept per flow.
const Capacity = 500

// Ring is a fixed-size circular buffer of lines, safe for concurrent use.
type Ring struct {
	mu    sync.RWMutex
	lines [Capacity]string
	head  int // next write position
	size  int
}

// Append adds a line, overwriting the oldest one when full.
//
// Complexity: O(1)
func (r *Ring) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines[r.head] = line
	r.head = (r.head + 1) % Capacity
	if r.size < Capacity {
		r.size++
	}
}

// Tail returns up to n of the newest lines, oldest first. n <= 0 or
// above Capacity returns everything kept. The slice is owned by the
// caller.
//
// Complexity: O(n)
func (r *Ring) Tail(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		return nil
	}
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]string, n)
	start := (r.head - n + Capacity) % Capacity
	for i := range out {
		out[i] = r.lines[(start+i)%Capacity]
	}
	return out
}

// Reset drops every line.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = [Capacity]string{}
	r.head, r.size = 0, 0
}

// Manager holds one ring per flow index, created lazily.
type Manager struct {
	mu    sync.RWMutex
	rings map[int]*Ring
}

func NewManager() *Manager {
	return &Manager{rings: make(map[int]*Ring)}
}

// Get returns the ring of flow index, creating it if missing.
func (m *Manager) Get(index int) *Ring {
	m.mu.RLock()
	r, ok := m.rings[index]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rings[index]; ok {
		return r
	}
	r = new(Ring)
	m.rings[index] = r
	return r
}

// Lookup returns the ring of flow index without creating it.
func (m *Manager) Lookup(index int) (*Ring, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rings[index]
	return r, ok
}
