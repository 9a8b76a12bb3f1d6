package server

import (
	"sync"
	"time"
)

// MatchStore maps match identifiers to live simulation state. It is safe for
// concurrent use by the tick scheduler and inbound-message handlers, and is
// injectable so tests can run against isolated instances.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]*matchState
}

func NewMatchStore() *MatchStore {
	return &MatchStore{matches: make(map[string]*matchState)}
}

// getOrCreate returns the state for matchID, creating it when absent.
// Creation is idempotent: an existing match is returned as-is and the
// supplied identities are ignored.
func (s *MatchStore) getOrCreate(matchID, leftID, rightID string, now time.Time) (*matchState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.matches[matchID]; ok {
		return existing, false
	}
	m := newMatchState(matchID, leftID, rightID, now)
	s.matches[matchID] = m
	return m, true
}

func (s *MatchStore) get(matchID string) (*matchState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	return m, ok
}

// remove is a no-op for unknown ids.
func (s *MatchStore) remove(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, matchID)
}

func (s *MatchStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

// snapshot copies the current match set so the tick loop can iterate without
// holding the store lock while joins and cleanups mutate the map.
func (s *MatchStore) snapshot() []*matchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]*matchState, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, m)
	}
	return matches
}
