// Package cache provides the TTL request cache shared by ledger readers.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Default configuration values.
const (
	DefaultTTL      = 30 * time.Second
	DefaultCapacity = 1024
)

// Entry is a cached value and the time it was stored.
// Entries are never mutated; a Put with the same key supersedes them.
type Entry struct {
	Key      string
	Value    any
	StoredAt time.Time
}

// Options configures a Store.
type Options struct {
	TTL      time.Duration    // Default: 30s
	Capacity int              // Default: 1024 entries, least recently used evicted first
	Now      func() time.Time // Default: time.Now
}

// Store is a key/value cache whose reads ignore entries older than the TTL.
// Safe for concurrent use; concurrent Puts to one key are last-write-wins.
type Store struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, Entry]
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// New creates a Store.
func New(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	lru, err := simplelru.NewLRU[string, Entry](capacity, nil)
	if err != nil {
		// Only fails for a non-positive size, which is excluded above.
		panic(fmt.Sprintf("cache: create LRU: %v", err))
	}

	return &Store{lru: lru, ttl: ttl, capacity: capacity, now: now}
}

// Get returns the value stored under key if it is younger than the TTL.
// A stale entry reads as a miss and is evicted.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !s.fresh(entry) {
		s.lru.Remove(key)
		return nil, false
	}
	return entry.Value, true
}

// Put stores value under key, superseding any previous entry.
func (s *Store) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop stale entries before the LRU evicts a fresh one.
	if _, ok := s.lru.Peek(key); !ok && s.lru.Len() >= s.capacity {
		s.sweepLocked()
	}
	s.lru.Add(key, Entry{Key: key, Value: value, StoredAt: s.now()})
}

// Sweep evicts every stale entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *Store) sweepLocked() int {
	removed := 0
	for _, key := range s.lru.Keys() {
		entry, ok := s.lru.Peek(key)
		if ok && !s.fresh(entry) {
			s.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries held, fresh or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Store) fresh(e Entry) bool {
	return s.now().Sub(e.StoredAt) < s.ttl
}
