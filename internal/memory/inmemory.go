package memory

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	modes map[string]string
	turns map[string][]Turn
	keys  keySource
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		modes: make(map[string]string),
		turns: make(map[string][]Turn),
	}
}

func (s *InMemoryStore) GetMode(_ context.Context, identity string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modes[identity], nil
}

func (s *InMemoryStore) SetMode(_ context.Context, identity, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[identity] = mode
	return nil
}

func (s *InMemoryStore) ClearHistory(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, identity)
	return nil
}

func (s *InMemoryStore) AppendTurn(_ context.Context, identity, role, content string) error {
	if !ValidRole(role) || content == "" {
		return nil
	}
	key := s.keys.next()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[identity] = append(s.turns[identity], Turn{Role: role, Content: content, TS: key})
	return nil
}

func (s *InMemoryStore) LoadRecentHistory(_ context.Context, identity string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[identity]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Turn, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) TrimHistory(_ context.Context, identity string, keep int) error {
	if keep <= 0 {
		keep = DefaultHistoryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	arr := s.turns[identity]
	if len(arr) <= keep {
		return nil
	}
	trimmed := make([]Turn, keep)
	copy(trimmed, arr[len(arr)-keep:])
	s.turns[identity] = trimmed
	return nil
}

func (s *InMemoryStore) Driver() string { return "in-memory" }

func (s *InMemoryStore) Close() error { return nil }
