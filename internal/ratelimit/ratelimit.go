// Package ratelimit bounds how often one organization may call an endpoint,
// using a sliding window so bursts at a window boundary are still counted.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store records admissions per key.
type Store interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (Result, error)
}

// Memory implements Store with an in-process sliding window per key.
// It is not shared between replicas.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

// slidingWindow tracks admission timestamps, oldest first.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

func (s *Memory) AllowN(_ context.Context, key string, cost, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.buckets[key]
	if sw == nil {
		sw = &slidingWindow{window: window}
		s.buckets[key] = sw
	}
	sw.cleanup(now)

	if len(sw.timestamps)+cost > limit {
		resetAt := now.Add(window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(window)
		}
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}, nil
	}
	for range cost {
		sw.timestamps = append(sw.timestamps, now)
	}
	res := Result{Allowed: true, Limit: limit, Remaining: limit - len(sw.timestamps), ResetAt: now.Add(window)}
	if len(sw.timestamps) > 0 {
		res.ResetAt = sw.timestamps[0].Add(window)
	} else {
		delete(s.buckets, key)
	}
	return res, nil
}

// Reset clears the window of a key.
func (s *Memory) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
}

// cleanup drops timestamps that left the window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
