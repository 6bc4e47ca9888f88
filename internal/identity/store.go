// Package identity persists the current bearer token and user record across
// process restarts.
//
// The pairing invariant — a token exists iff a user exists — is enforced by
// the callers (the response interceptor and the session layer), not by the
// store itself: reconciliation sometimes needs to write one half before the
// other within a single step.
package identity

import (
	"encoding/json"
	"fmt"
	"sync"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

// Credentials is the current token/user pair.
type Credentials struct {
	Token string
	User  *User
}

// Store holds the single current identity, backed by a Storage.
type Store struct {
	mu      sync.RWMutex
	storage Storage
	prefix  string

	// cached copy so reads don't hit the backend on every call
	loaded bool
	creds  Credentials
}

// NewStore creates a store namespaced by appName on top of storage.
func NewStore(storage Storage, appName string) *Store {
	return &Store{
		storage: storage,
		prefix:  appName + ".",
	}
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Get returns the current credentials and whether an identity is present.
// Presence requires both halves: a stray token without a user (or vice
// versa) reads as absent.
func (s *Store) Get() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if s.creds.Token == "" || s.creds.User == nil {
		return Credentials{}, false
	}
	return s.creds, true
}

// Token returns the current bearer token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.creds.Token
}

// User returns the current user record, or nil.
func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if s.creds.User == nil {
		return nil
	}
	u := *s.creds.User
	return &u
}

// Set persists the token and user together.
func (s *Store) Set(token string, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if err := s.writeToken(token); err != nil {
		return err
	}
	return s.writeUser(user)
}

// SetToken persists only the token. Callers must follow up with the matching
// user within the same reconciliation step.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.writeToken(token)
}

// SetUser persists only the user record.
func (s *Store) SetUser(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.writeUser(user)
}

// Clear removes both halves of the identity.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.creds = Credentials{}
	if err := s.storage.Delete(s.key(tokenKey)); err != nil {
		return err
	}
	return s.storage.Delete(s.key(userKey))
}

func (s *Store) writeToken(token string) error {
	if err := s.storage.Set(s.key(tokenKey), []byte(token)); err != nil {
		return err
	}
	s.creds.Token = token
	return nil
}

func (s *Store) writeUser(user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("identity: marshal user: %w", err)
	}
	if err := s.storage.Set(s.key(userKey), data); err != nil {
		return err
	}
	if user == nil {
		s.creds.User = nil
	} else {
		u := *user
		s.creds.User = &u
	}
	return nil
}

// load populates the in-memory copy from the backend once.
func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true

	if data, err := s.storage.Get(s.key(tokenKey)); err == nil {
		s.creds.Token = string(data)
	}
	if data, err := s.storage.Get(s.key(userKey)); err == nil {
		var u User
		if err := json.Unmarshal(data, &u); err == nil && u.ID != "" {
			s.creds.User = &u
		}
	}
}
