package apiclient

import (
	"context"
	"sync"
)

// Tokens is an access/refresh JWT pair.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Identity describes the authenticated user a session belongs to. The JSON
// tags mirror the server's user payload so login responses decode directly.
type Identity struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// FullName joins the identity's name parts for display.
func (i Identity) FullName() string {
	if i.FirstName == "" {
		return i.LastName
	}
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// Session couples an identity with its token pair.
type Session struct {
	Identity Identity `json:"identity"`
	Tokens   Tokens   `json:"tokens"`
}

// SessionStore persists the client's session across requests. Load returns
// (nil, nil) when no session exists. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// MemorySessionStore is an in-memory SessionStore. Suitable for CLIs and
// tests; anything longer-lived should persist sessions elsewhere.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Load returns a copy of the stored session, or (nil, nil) when empty.
func (s *MemorySessionStore) Load(_ context.Context) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, nil
	}
	cpy := *s.session
	return &cpy, nil
}

// Save stores a copy of the session.
func (s *MemorySessionStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess == nil {
		s.session = nil
		return nil
	}
	cpy := *sess
	s.session = &cpy
	return nil
}

// Clear removes the stored session.
func (s *MemorySessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
