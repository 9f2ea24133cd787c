package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-dataset-aggregator/internal/weather"
)

var (
	// ErrNotFound is returned when no response has been recorded in the window.
	ErrNotFound = errors.New("no combined response recorded")
)

// MemoryStore is a concurrency-safe, in-memory history of combined responses,
// ordered by fetch time. It implements weather.ResponseSink.
type MemoryStore struct {
	mu sync.RWMutex

	history []*weather.CombinedResponse

	// retention configuration
	maxHistory int           // max number of responses kept
	maxAge     time.Duration // optional max age of responses

	now func() time.Time
}

var _ weather.ResponseSink = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveResponse appends resp and enforces retention.
func (s *MemoryStore) SaveResponse(resp *weather.CombinedResponse) {
	if resp == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, resp)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		over := len(s.history) - s.maxHistory
		s.history = append([]*weather.CombinedResponse(nil), s.history[over:]...)
	}

	// Enforce retention by age; the newest response is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.history)-1; i++ {
			if !s.history[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.history = append([]*weather.CombinedResponse(nil), s.history[i:]...)
		}
	}
}

// Latest returns the most recently saved response.
func (s *MemoryStore) Latest() (*weather.CombinedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil, ErrNotFound
	}
	return s.history[len(s.history)-1], nil
}

// Range returns all responses fetched between from and to (inclusive).
func (s *MemoryStore) Range(from, to time.Time) ([]*weather.CombinedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*weather.CombinedResponse
	for _, resp := range s.history {
		if !resp.FetchedAt.Before(from) && !resp.FetchedAt.After(to) {
			result = append(result, resp)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Len reports how many responses are retained.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
