// internal/session/store.go
//
// Durable session state: the bearer token and authenticated user profile,
// persisted as JSON under the trustwork home so logins survive restarts.
// No client-side expiry; the server's 401 is the sole source of truth for
// session validity, and the presentation layer calls Clear when it sees one.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/trustwork/trustwork/internal/api"
)

// Roles as the backend names them.
const (
	RoleEmployer = "employer"
	RoleWorker   = "employee"
)

// Session is the persisted principal.
type Session struct {
	Access string   `json:"access"`
	User   api.User `json:"user"`
}

// Store holds the current session, backed by a JSON file.
type Store struct {
	path string

	mu      sync.RWMutex
	current *Session
}

// NewStore loads any persisted session from path. A missing or unreadable
// file means logged out, not an error.
func NewStore(path string) *Store {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var ses Session
	if json.Unmarshal(data, &ses) == nil && ses.Access != "" {
		s.current = &ses
	}
	return s
}

// Set stores the session and persists it.
func (s *Store) Set(token string, user api.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &Session{Access: token, User: user}
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("session: creating dir: %w", err)
	}
	// 0600: the file holds a bearer token.
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("session: writing %s: %w", s.path, err)
	}
	return nil
}

// Get returns the current session, or nil when logged out.
func (s *Store) Get() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// Clear forgets the session and removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: removing %s: %w", s.path, err)
	}
	return nil
}

// Authenticated reports whether a session is present.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Access
}

// Role returns the current user's role, or "" when logged out.
func (s *Store) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.User.UserType
}

// UserID returns the current user's id, or 0 when logged out.
func (s *Store) UserID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0
	}
	return s.current.User.ID
}

// IsEmployer reports whether the current user posts jobs.
func (s *Store) IsEmployer() bool { return s.Role() == RoleEmployer }

// IsWorker reports whether the current user applies to jobs.
func (s *Store) IsWorker() bool { return s.Role() == RoleWorker }
