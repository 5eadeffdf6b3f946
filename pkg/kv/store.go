// Package kv provides a generic thread-safe key-value store whose entries
// expire after a fixed time to live.
package kv

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Store is a thread-safe generic key-value store. A zero TTL disables
// expiry.
type Store[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	ttl  time.Duration
	now  func() time.Time
}

// New creates a store whose entries live for ttl.
func New[K comparable, V any](ttl time.Duration) *Store[K, V] {
	return &Store[K, V]{
		data: make(map[K]entry[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Store[K, V]) WithClock(now func() time.Time) *Store[K, V] {
	s.now = now
	return s
}

func (s *Store[K, V]) expired(e entry[V], at time.Time) bool {
	return !e.expires.IsZero() && !at.Before(e.expires)
}

// Get retrieves a live value by key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || s.expired(e, s.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value by key, restarting its time to live.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry[V]{value: value}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.data[key] = e
}

// Delete removes a key from the store.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Clear removes all entries from the store.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[K]entry[V])
}

// Sweep evicts expired entries and returns how many were removed.
func (s *Store[K, V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	n := 0
	for k, e := range s.data {
		if s.expired(e, at) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
