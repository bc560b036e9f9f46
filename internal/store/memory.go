package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-pages/internal/weather"
)

var (
	// ErrNotFound is returned when no probe has been recorded yet.
	ErrNotFound = errors.New("no probe results recorded")
)

// MemoryStore is a concurrency-safe in-memory history of upstream probe results.
type MemoryStore struct {
	mu      sync.RWMutex
	results []weather.ProbeResult

	// retention configuration
	maxHistory int           // max number of results kept
	maxAge     time.Duration // optional max age for results

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends a probe result and enforces retention.
func (s *MemoryStore) Save(result weather.ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.results) > s.maxHistory {
		over := len(s.results) - s.maxHistory
		s.results = s.results[over:]
	}

	// Enforce retention by age. The newest result is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.results)-1; i++ {
			if !s.results[i].Timestamp.Before(cutoff) {
				break
			}
		}
		s.results = s.results[i:]
	}
}

// Latest returns the most recent probe result.
func (s *MemoryStore) Latest() (weather.ProbeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.results) == 0 {
		return weather.ProbeResult{}, ErrNotFound
	}
	return s.results[len(s.results)-1], nil
}

// History returns a copy of the retained results, oldest first.
func (s *MemoryStore) History() []weather.ProbeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.ProbeResult, len(s.results))
	copy(out, s.results)
	return out
}
