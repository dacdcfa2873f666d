package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/misbah-png/My-Journal/internal/domain"
)

// PostgresStore is the hosted document-database backend: one row per event,
// scoped by user id, with whole-row upserts matching the repository's
// overwrite semantics.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS journal_users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS journal_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			start_at TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			repeat TEXT NOT NULL DEFAULT 'none'
		)`,
		`CREATE INDEX IF NOT EXISTS journal_events_user_idx ON journal_events (user_id)`,
		`CREATE TABLE IF NOT EXISTS journal_collections (
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (user_id, name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, title, start_at, end_at, color, repeat
FROM journal_events
WHERE user_id = $1
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Start, &e.End, &e.Color, &e.Repeat); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Put(ctx context.Context, userID string, event domain.Event) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO journal_events (id, user_id, title, start_at, end_at, color, repeat)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title,
    start_at = EXCLUDED.start_at,
    end_at = EXCLUDED.end_at,
    color = EXCLUDED.color,
    repeat = EXCLUDED.repeat
WHERE journal_events.user_id = EXCLUDED.user_id
`, event.ID, userID, event.Title, event.Start, event.End, event.Color, event.Repeat)
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, eventID string) error {
	_, err := s.pool.Exec(ctx, `
DELETE FROM journal_events
WHERE user_id = $1 AND id = $2
`, userID, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadCollection(ctx context.Context, userID, name string) (json.RawMessage, error) {
	var payload json.RawMessage
	err := s.pool.QueryRow(ctx, `
SELECT payload FROM journal_collections
WHERE user_id = $1 AND name = $2
`, userID, name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return payload, nil
}

func (s *PostgresStore) SaveCollection(ctx context.Context, userID, name string, doc json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO journal_collections (user_id, name, payload)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, name) DO UPDATE SET payload = EXCLUDED.payload
`, userID, name, doc)
	if err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
SELECT id, email, password_hash, created_at
FROM journal_users
WHERE lower(email) = lower($1)
`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, email, password_hash, created_at
FROM journal_users
`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO journal_users (id, email, password_hash, created_at)
VALUES ($1, $2, $3, $4)
`, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
