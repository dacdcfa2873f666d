package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/misbah-png/My-Journal/internal/domain"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// degraded no-persistence mode.
type MemoryStore struct {
	mu          sync.RWMutex
	events      map[string]map[string]domain.Event
	collections map[string]map[string]json.RawMessage
	users       map[string]domain.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:      make(map[string]map[string]domain.Event),
		collections: make(map[string]map[string]json.RawMessage),
		users:       make(map[string]domain.User),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) List(_ context.Context, userID string) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, 0, len(s.events[userID]))
	for _, e := range s.events[userID] {
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, userID string, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events[userID] == nil {
		s.events[userID] = make(map[string]domain.Event)
	}
	s.events[userID][event.ID] = event
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events[userID], eventID)
	return nil
}

func (s *MemoryStore) LoadCollection(_ context.Context, userID, name string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[userID][name]
	if !ok {
		return nil, nil
	}
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out, nil
}

func (s *MemoryStore) SaveCollection(_ context.Context, userID, name string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[userID] == nil {
		s.collections[userID] = make(map[string]json.RawMessage)
	}
	kept := make(json.RawMessage, len(doc))
	copy(kept, doc)
	s.collections[userID][name] = kept
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := s.users[key]; ok {
		return ErrEmailExists
	}
	s.users[key] = user
	return nil
}
