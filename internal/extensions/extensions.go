// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
// Copyright 2026 The Span Registry Authors.

// Package extensions implements the per-span type-indexed map layers
// use to attach auxiliary state to a Data Entry. Keys are compile-time
// type identities (Go's reflect.Type standing in for Rust's TypeId);
// at most one value is stored per type.
//
// Clear deletes every entry but never replaces the backing map, so the
// hash table's bucket allocation is retained across span reuse — this
// is what makes repeated checkout/release of the owning slot
// allocation-free in steady state.
package extensions

import (
	"reflect"
	"sync"
)

// Map is the per-slot extension typemap, guarded by a single-writer,
// many-reader lock owned by the surrounding Data Entry.
type Map struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}

// New returns an empty Map.
func New() *Map {
	return &Map{values: make(map[reflect.Type]any)}
}

// Clear removes every entry in place, retaining the map's capacity.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
}

// ReadGuard is a held read lock over a Map, borrowed for the duration
// of a layer's read-only access.
type ReadGuard struct{ m *Map }

// RLock acquires a read guard over m. The caller must Unlock it.
func (m *Map) RLock() *ReadGuard {
	m.mu.RLock()
	return &ReadGuard{m: m}
}

// Unlock releases the read guard.
func (g *ReadGuard) Unlock() {
	if g.m == nil {
		return
	}
	g.m.mu.RUnlock()
}

// WriteGuard is a held write lock over a Map, borrowed for the
// duration of a layer's mutating access.
type WriteGuard struct{ m *Map }

// Lock acquires a write guard over m. The caller must Unlock it.
func (m *Map) Lock() *WriteGuard {
	m.mu.Lock()
	return &WriteGuard{m: m}
}

// Unlock releases the write guard.
func (g *WriteGuard) Unlock() {
	if g.m == nil {
		return
	}
	g.m.mu.Unlock()
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func lookup[T any](m *Map) (*T, bool) {
	v, ok := m.values[typeKey[T]()]
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// Get reads a value of type T under a read guard. Go has no
// const/mutable reference distinction, so Get and GetMut return the
// same pointer; Get exists to mirror the read-only intent of the
// spec's get<T>() contract at call sites that only read.
func Get[T any](g *ReadGuard) (*T, bool) {
	return lookup[T](g.m)
}

// GetMut reads a value of type T under a write guard, for in-place
// mutation.
func GetMut[T any](g *WriteGuard) (*T, bool) {
	return lookup[T](g.m)
}

// Insert stores value under a write guard, replacing any existing
// value of the same type.
func Insert[T any](g *WriteGuard, value T) {
	ptr := new(T)
	*ptr = value
	g.m.values[typeKey[T]()] = ptr
}

// Remove deletes the value of type T, reporting whether one was present.
func Remove[T any](g *WriteGuard) bool {
	k := typeKey[T]()
	_, ok := g.m.values[k]
	delete(g.m.values, k)
	return ok
}
