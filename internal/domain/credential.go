package domain

import (
	"context"
)

// Role grants access to officer or admin operations.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOfficer Role = "officer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOfficer
}

// CredentialStore verifies a username and password and returns the user's role.
// A mismatch returns ErrInvalidCredentials.
type CredentialStore interface {
	Verify(ctx context.Context, username, password string) (Role, error)
}

// Principal is the verified caller attached to a request.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// UserInfo describes a configured user without its password hash.
type UserInfo struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
