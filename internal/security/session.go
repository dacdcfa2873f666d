// Package security holds the bearer-token session machinery used to scope
// API requests to an authenticated identity.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const tokenBytes = 32

// SessionManager issues and resolves opaque bearer tokens. Expired sessions
// are pruned lazily on resolve.
type SessionManager struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]session
}

type session struct {
	userID  string
	expires time.Time
}

func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]session),
	}
}

// Issue mints a fresh random token bound to userID.
func (m *SessionManager) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	token := hex.EncodeToString(raw)
	m.mu.Lock()
	m.sessions[token] = session{userID: userID, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return token, nil
}

// Resolve returns the user id bound to token, or false for unknown or
// expired tokens.
func (m *SessionManager) Resolve(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return "", false
	}
	if m.now().After(s.expires) {
		delete(m.sessions, token)
		return "", false
	}
	return s.userID, true
}

// Revoke drops a session; revoking an unknown token is a no-op.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// TokenFromRequest extracts the bearer token from the Authorization header,
// or from the access_token query parameter for clients (calendar apps
// fetching the ICS feed) that cannot set headers.
func TokenFromRequest(r *http.Request) string {
	head := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if strings.HasPrefix(head, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(head, prefix))
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
