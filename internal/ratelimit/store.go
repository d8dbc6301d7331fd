// Package ratelimit implements the abuse limits applied to magic-link sends.
//
// MODEL:
// A Bucket is a fixed window counter keyed by a string (a client IP or a
// lowercased email address). When a bucket is read after its reset time it is
// replaced by a fresh one (count 0, reset = now + window). That replacement is
// lazy: nothing happens until the key is touched again, and a periodic Sweep
// removes the stale entries nobody touched.
//
// STORES:
// The counting itself lives behind the Store interface so the process-local
// MemoryStore can be swapped for a shared one (RedisStore) without changing
// the Limiter or its callers. MemoryStore is only correct for a single
// process; every instance keeps its own counts.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a snapshot of one counter.
type Bucket struct {
	Count   int
	ResetAt time.Time
	LastAt  time.Time // zero until the first Hit
}

// Store is a keyed, windowed counter.
type Store interface {
	// Peek returns the bucket for key, replacing it with a fresh one if it is
	// missing or its window has elapsed. It never increments.
	Peek(ctx context.Context, key string, now time.Time) (Bucket, error)

	// Hit atomically increments the bucket for key and records now as its
	// last action time, applying the same lazy reset as Peek.
	Hit(ctx context.Context, key string, now time.Time) (Bucket, error)

	// Sweep deletes buckets whose window has elapsed and reports how many
	// were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is a mutex-guarded map of buckets.
type MemoryStore struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]*Bucket
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store whose buckets last for window.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window:  window,
		buckets: make(map[string]*Bucket),
	}
}

// bucket returns the live bucket for key. Caller must hold s.mu.
func (s *MemoryStore) bucket(key string, now time.Time) *Bucket {
	b, ok := s.buckets[key]
	if !ok || !b.ResetAt.After(now) {
		b = &Bucket{ResetAt: now.Add(s.window)}
		s.buckets[key] = b
	}
	return b
}

func (s *MemoryStore) Peek(_ context.Context, key string, now time.Time) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bucket(key, now), nil
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(key, now)
	b.Count++
	b.LastAt = now
	return *b, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, b := range s.buckets {
		if !b.ResetAt.After(now) {
			delete(s.buckets, k)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of tracked buckets, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
