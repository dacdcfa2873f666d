// Package store is the persistence boundary. The application never depends on
// which backend is in use; each backend implements the same contracts against
// an in-memory map, a single JSON file, or a Postgres database.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/misbah-png/My-Journal/internal/domain"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrEmailExists = errors.New("email already registered")
)

// EventRepository stores calendar events scoped per user. List order is
// unspecified. Put overwrites the whole record when the id already exists.
// Delete of an absent id is a no-op. No backend retries on failure.
type EventRepository interface {
	List(ctx context.Context, userID string) ([]domain.Event, error)
	Put(ctx context.Context, userID string, event domain.Event) error
	Delete(ctx context.Context, userID, eventID string) error
}

// CollectionStore persists whole named JSON documents per user. Habits and
// tasks are read and replaced as entire collections, never item by item.
type CollectionStore interface {
	LoadCollection(ctx context.Context, userID, name string) (json.RawMessage, error)
	SaveCollection(ctx context.Context, userID, name string, doc json.RawMessage) error
}

// UserStore persists accounts. FindByEmail returns ErrNotFound for unknown
// addresses; Create returns ErrEmailExists on duplicates.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, user domain.User) error
}

// Backend is the full persistence collaborator a deployment selects once.
type Backend interface {
	EventRepository
	CollectionStore
	UserStore
	Name() string
	Close()
}
