package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process DocumentStore, used by tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
	// Saves counts successful Save calls per document name.
	Saves map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string][]byte{}, Saves: map[string]int{}}
}

func (s *MemoryStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Save(_ context.Context, docs ...Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.docs[d.Name] = append([]byte(nil), d.Body...)
		s.Saves[d.Name]++
	}
	return nil
}

// Put stores raw bytes without counting a save.
func (s *MemoryStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = append([]byte(nil), data...)
}
