package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coincademy/sim-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
//
// Documents are stored as marshaled JSON so callers can never mutate
// stored state through a retained pointer.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (s *MemoryStore) SaveState(_ context.Context, userID string, state *model.AppState) error {
	// Normalize a shallow copy; trimming only reslices, so the caller's
	// document is left untouched.
	doc := *state
	doc.Normalize()
	data, err := json.Marshal(&doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = data
	return nil
}

func (s *MemoryStore) LoadState(_ context.Context, userID string) (*model.AppState, error) {
	s.mu.RLock()
	data, ok := s.states[userID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	var state model.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *MemoryStore) DeleteState(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}
