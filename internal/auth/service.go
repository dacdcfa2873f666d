// Package auth implements email/password accounts on top of the user store.
// Sessions are opaque bearer tokens held in memory; restarting the server
// logs everyone out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/misbah-png/My-Journal/internal/domain"
	"github.com/misbah-png/My-Journal/internal/security"
	"github.com/misbah-png/My-Journal/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const minPasswordLen = 8

type Service struct {
	users    store.UserStore
	sessions *security.SessionManager
	now      func() time.Time
}

func NewService(users store.UserStore, sessions *security.SessionManager) *Service {
	return &Service{users: users, sessions: sessions, now: time.Now}
}

// Register creates an account and logs it in, returning the session token.
func (s *Service) Register(ctx context.Context, email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, "", fmt.Errorf("invalid email address")
	}
	if len(password) < minPasswordLen {
		return domain.User{}, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, "", err
	}
	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Login verifies credentials and issues a session token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("find user: %w", err)
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}
