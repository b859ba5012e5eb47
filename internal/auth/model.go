// Package auth provides operator accounts and JWT session tokens for the
// management API. Devices authenticate separately with request signatures;
// see the device package.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// Operator roles.
const (
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
)

// Operator is a human account allowed to manage scenarios, devices, policy,
// and to run simulations.
type Operator struct {
	ID           uuid.UUID `json:"id"         db:"id"`
	Username     string    `json:"username"   db:"username"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	Role         string    `json:"role"       db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// LoginRequest is the payload for POST /auth/token.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned on successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}
