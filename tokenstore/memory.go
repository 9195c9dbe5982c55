package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. Nothing survives the process; it exists
// for tests and for hosts that must not persist credentials.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	shared  string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Load(_ context.Context, gameID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[gameID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, gameID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[gameID] = rec
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, gameID)
	return nil
}

func (s *MemoryStore) LoadShared(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared, nil
}

func (s *MemoryStore) SaveShared(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = token
	return nil
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]Record)
	s.shared = ""
	return nil
}
