// Package auth provides operator accounts for the HTTP service mode: a
// JSON-file user store, bcrypt password handling, and JWT session tokens.
// These accounts gate access to the batch API; they are unrelated to the
// directory credentials used for membership operations.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents a service operator account
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         string     `json:"role"` // "admin" or "operator"
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	FailedLogins int        `json:"failed_logins"`
	Locked       bool       `json:"locked"`
}

// UserDatabase represents the user storage structure
type UserDatabase struct {
	Version   string          `json:"version"`
	Users     map[string]User `json:"users"` // Key: username
	UpdatedAt time.Time       `json:"updated_at"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Role constants. Admins manage operator accounts; operators submit batches.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)
