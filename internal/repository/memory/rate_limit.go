package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arklim/skills-audit/internal/core/port"
)

// RateLimitStore is an in-process sliding window store for single-instance deployments and tests.
type RateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewRateLimitStore constructs an empty store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *RateLimitStore) Hit(_ context.Context, key string, window time.Duration, at time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.trim(key, at.Add(-window))
	kept = append(kept, at)
	s.attempts[key] = kept
	return countUntil(kept, at), nil
}

func (s *RateLimitStore) Count(_ context.Context, key string, window time.Duration, at time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return countUntil(s.trim(key, at.Add(-window)), at), nil
}

func (s *RateLimitStore) Oldest(_ context.Context, key string, window time.Duration, at time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		oldest time.Time
		found  bool
	)
	for _, ts := range s.trim(key, at.Add(-window)) {
		if ts.After(at) {
			continue
		}
		if !found || ts.Before(oldest) {
			oldest, found = ts, true
		}
	}
	return oldest, found, nil
}

func (s *RateLimitStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, key)
	return nil
}

// trim drops attempts before cutoff; callers hold mu.
func (s *RateLimitStore) trim(key string, cutoff time.Time) []time.Time {
	current := s.attempts[key]
	kept := current[:0]
	for _, ts := range current {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(s.attempts, key)
		return nil
	}
	s.attempts[key] = kept
	return kept
}

func countUntil(attempts []time.Time, at time.Time) int {
	n := 0
	for _, ts := range attempts {
		if !ts.After(at) {
			n++
		}
	}
	return n
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
