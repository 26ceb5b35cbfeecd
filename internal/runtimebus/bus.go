// Package runtimebus carries values from one step to later steps of the same run.
package runtimebus

import (
	"sort"
	"sync"
)

// Bus is a run-scoped key/value store. The orchestrator owns one per run and
// resets it before the first step executes.
type Bus struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{values: make(map[string]any)}
}

// Set stores value under name, replacing any previous value.
func (b *Bus) Set(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		b.values = make(map[string]any)
	}
	b.values[name] = value
}

// Get returns the value stored under name.
func (b *Bus) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// Keys returns the stored names in sorted order.
func (b *Bus) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored values.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}

// Reset drops every value.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = make(map[string]any)
}

// Snapshot returns a copy of the stored values.
func (b *Bus) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}
