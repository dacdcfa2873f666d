package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/misbah-png/My-Journal/internal/domain"
)

// FileStore keeps all state in one JSON document and rewrites the whole file
// on every mutation, the way the browser variants rewrite the serialized
// localStorage array. Writes go through a temp file and rename so a crash
// never leaves a half-written document behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// fileUser re-exposes the password hash, which domain.User deliberately hides
// from JSON marshalling.
type fileUser struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

type fileState struct {
	Users       []fileUser                            `json:"users,omitempty"`
	Events      map[string][]domain.Event             `json:"events,omitempty"`
	Collections map[string]map[string]json.RawMessage `json:"collections,omitempty"`
}

func (u fileUser) user() domain.User {
	out := u.User
	out.PasswordHash = u.PasswordHash
	return out
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	s := &FileStore{path: path}
	// Fail fast on an unreadable or corrupt file instead of at first request.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) Close() {}

func (s *FileStore) load() (fileState, error) {
	state := fileState{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("read store: %w", err)
	}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("decode store: %w", err)
	}
	return state, nil
}

func (s *FileStore) save(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".journal-*.tmp")
	if err != nil {
		return fmt.Errorf("temp store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename store: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context, userID string) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]domain.Event(nil), state.Events[userID]...), nil
}

func (s *FileStore) Put(_ context.Context, userID string, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	if state.Events == nil {
		state.Events = make(map[string][]domain.Event)
	}
	list := state.Events[userID]
	replaced := false
	for i, e := range list {
		if e.ID == event.ID {
			list[i] = event
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, event)
	}
	state.Events[userID] = list
	return s.save(state)
}

func (s *FileStore) Delete(_ context.Context, userID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	list := state.Events[userID]
	kept := list[:0]
	for _, e := range list {
		if e.ID != eventID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(list) {
		// Absent id: nothing to rewrite.
		return nil
	}
	state.Events[userID] = kept
	return s.save(state)
}

func (s *FileStore) LoadCollection(_ context.Context, userID, name string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	return state.Collections[userID][name], nil
}

func (s *FileStore) SaveCollection(_ context.Context, userID, name string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	if state.Collections == nil {
		state.Collections = make(map[string]map[string]json.RawMessage)
	}
	if state.Collections[userID] == nil {
		state.Collections[userID] = make(map[string]json.RawMessage)
	}
	state.Collections[userID][name] = doc
	return s.save(state)
}

func (s *FileStore) FindByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range state.Users {
		if strings.EqualFold(u.Email, email) {
			return u.user(), nil
		}
	}
	return domain.User{}, ErrNotFound
}

func (s *FileStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(state.Users))
	for _, u := range state.Users {
		out = append(out, u.user())
	}
	return out, nil
}

func (s *FileStore) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	for _, u := range state.Users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrEmailExists
		}
	}
	state.Users = append(state.Users, fileUser{User: user, PasswordHash: user.PasswordHash})
	return s.save(state)
}
