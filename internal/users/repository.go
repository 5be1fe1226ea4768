package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"authguard/internal/rbac"
)

var (
	ErrNotFound        = errors.New("users: not found")
	ErrAlreadyExists   = errors.New("users: already exists")
	ErrInvalidArgument = errors.New("users: invalid argument")
)

// Repository is the persistence contract for accounts.
type Repository interface {
	Create(ctx context.Context, u *User) error
	ByID(ctx context.Context, id int64) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	UpdateHandle(ctx context.Context, id int64, handle string) (User, error)
	SetVerified(ctx context.Context, id int64, verified bool) (User, error)
	SetRole(ctx context.Context, id int64, role rbac.Role) (User, error)
	Delete(ctx context.Context, id int64) error
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

const (
	MinPasswordLen = 8
	// MaxPasswordLen is the bcrypt input limit.
	MaxPasswordLen = 72
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return &ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	return nil
}

func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return &ValidationError{Field: "handle", Reason: "must be 3-32 characters of a-z, 0-9 or _"}
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be %d-%d bytes", MinPasswordLen, MaxPasswordLen)}
	}
	return nil
}
