package users

import (
	"time"

	"authguard/internal/rbac"
)

// User is an account. PasswordHash never leaves the process.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Handle       string    `json:"handle" db:"handle"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         rbac.Role `json:"role" db:"role"`
	Verified     bool      `json:"verified" db:"verified"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Identity is the claim set embedded in tokens issued for u.
func (u User) Identity() rbac.Identity {
	return rbac.Identity{ID: u.ID, Email: u.Email, Handle: u.Handle, Role: u.Role, Verified: u.Verified}
}

// OwnerID makes an account its own resource.
func (u User) OwnerID() int64 { return u.ID }
