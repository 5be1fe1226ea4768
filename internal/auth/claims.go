package auth

import (
	"authguard/internal/rbac"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// The identity fields are a snapshot; role and verification changes are
// picked up on the next renewal, which re-reads the user store.
type Claims struct {
	jwt.RegisteredClaims

	UserID    int64     `json:"uid"`
	Email     string    `json:"email"`
	Handle    string    `json:"handle"`
	Role      rbac.Role `json:"role"`
	Verified  bool      `json:"verified"`
	TokenType TokenType `json:"token_type"`
}

func (c Claims) Identity() rbac.Identity {
	return rbac.Identity{
		ID:       c.UserID,
		Email:    c.Email,
		Handle:   c.Handle,
		Role:     c.Role,
		Verified: c.Verified,
	}
}
