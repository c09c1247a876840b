package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"forwardlab/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	sessions    map[string]model.SessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.sessions = make(map[string]model.SessionRecord)
	return nil
}

func (s *MemoryStore) SaveSession(_ context.Context, session model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (model.SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return model.SessionRecord{}, false, nil
	}
	return cloneSession(session), true, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// ListSessions returns sessions oldest first.
func (s *MemoryStore) ListSessions(_ context.Context) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SessionRecord, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
