// Package cache holds short-lived in-memory client state such as per-IP
// rate limiter buckets. Comparison results are never stored here.
package cache

import (
	"sync"
	"time"
)

// item is a single entry with a sliding expiration
type item[V any] struct {
	value      V
	expiration time.Time
}

// MemoryStore is a thread-safe keyed store whose entries expire after ttl
// without access. Expired entries are swept lazily on write.
type MemoryStore[V any] struct {
	data      map[string]item[V]
	mutex     sync.Mutex
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates a store with the given idle ttl
func NewMemoryStore[V any](ttl time.Duration) *MemoryStore[V] {
	s := &MemoryStore[V]{
		data: make(map[string]item[V]),
		ttl:  ttl,
		now:  time.Now,
	}
	s.lastSweep = s.now()
	return s
}

// GetOrCreate returns the live value for key, storing create() when there
// is none. Either way the entry's expiration is pushed back by ttl.
func (s *MemoryStore[V]) GetOrCreate(key string, create func() V) V {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.ttl {
		s.cleanupExpired(now)
	}

	it, exists := s.data[key]
	if !exists || now.After(it.expiration) {
		it = item[V]{value: create()}
	}
	it.expiration = now.Add(s.ttl)
	s.data[key] = it
	return it.value
}

// cleanupExpired removes expired entries. Callers hold the mutex.
func (s *MemoryStore[V]) cleanupExpired(now time.Time) {
	for key, it := range s.data {
		if now.After(it.expiration) {
			delete(s.data, key)
		}
	}
	s.lastSweep = now
}

// Size returns the current number of entries, expired or not
func (s *MemoryStore[V]) Size() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.data)
}
