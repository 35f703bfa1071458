// Package auth verifies users against a configured credential store and
// guards HTTP routes with Basic authentication.
package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	hash []byte
	role domain.Role
}

// Store is an in-memory credential store. Users added at runtime are lost
// on restart.
type Store struct {
	mu    sync.RWMutex
	users map[string]user
	cost  int

	// the configured default admin cannot be deleted
	defaultAdmin string

	// compared against for unknown usernames so lookups cost the same
	dummy []byte
}

// NewStore builds the store from configured users plus the default admin.
func NewStore(cfg domain.AuthConfig) (*Store, error) {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, domain.ConfigError("bcrypt cost %d out of range", cost)
	}

	s := &Store{users: make(map[string]user), cost: cost}

	for _, u := range cfg.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return nil, domain.ConfigError("user with empty username")
		}
		if !u.Role.Valid() {
			return nil, domain.ConfigError("user %q has invalid role %q", name, u.Role)
		}
		if _, dup := s.users[name]; dup {
			return nil, domain.ConfigError("duplicate user %q", name)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, domain.ConfigError("user %q: password_hash is not a bcrypt hash", name)
		}
		s.users[name] = user{hash: []byte(u.PasswordHash), role: u.Role}
	}

	if admin := strings.TrimSpace(cfg.DefaultAdminUsername); admin != "" {
		if _, exists := s.users[admin]; !exists {
			if cfg.DefaultAdminPassword == "" {
				return nil, domain.ConfigError("default admin %q has no password", admin)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultAdminPassword), cost)
			if err != nil {
				return nil, domain.ConfigError("hash default admin password: %v", err)
			}
			s.users[admin] = user{hash: hash, role: domain.RoleAdmin}
		}
		s.defaultAdmin = admin
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("kestrel"), cost)
	if err != nil {
		return nil, domain.ConfigError("hash: %v", err)
	}
	s.dummy = dummy

	return s, nil
}

// Verify checks the password and returns the user's role.
func (s *Store) Verify(ctx context.Context, username, password string) (domain.Role, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}
	return u.role, nil
}

// Users lists the users sorted by name.
func (s *Store) Users() []domain.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserInfo, 0, len(s.users))
	for name, u := range s.users {
		out = append(out, domain.UserInfo{Username: name, Role: u.role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Add creates a user with a bcrypt hash of password.
func (s *Store) Add(ctx context.Context, username, password string, role domain.Role) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.MissingFieldError("username")
	}
	if password == "" {
		return domain.MissingFieldError("password")
	}
	if !role.Valid() {
		return &domain.UnknownCategoryError{Field: "role", Value: string(role)}
	}

	s.mu.RLock()
	_, exists := s.users[username]
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("user %q: %w", username, domain.ErrUserExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return fmt.Errorf("user %q: %w", username, domain.ErrUserExists)
	}
	s.users[username] = user{hash: hash, role: role}
	return nil
}

// Delete removes a user. The default admin cannot be deleted.
func (s *Store) Delete(ctx context.Context, username string) error {
	if username == s.defaultAdmin {
		return fmt.Errorf("delete default admin: %w", domain.ErrForbidden)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	delete(s.users, username)
	return nil
}
