package users

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"authguard/internal/auth"
	"authguard/internal/ownership"
	"authguard/internal/rbac"
)

// ErrInvalidCredentials covers both an unknown e-mail and a wrong password.
var ErrInvalidCredentials = errors.New("users: invalid credentials")

// Service holds account rules on top of a Repository.
type Service struct {
	repo   Repository
	hasher *auth.Hasher

	dummyOnce   sync.Once
	dummyDigest string
}

func NewService(repo Repository, hasher *auth.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// Register creates a role=user, unverified account.
func (s *Service) Register(ctx context.Context, email, handle, password string) (User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return User{}, err
	}
	if err := ValidateHandle(handle); err != nil {
		return User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return User{}, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("users.Service.Register: %w", err)
	}
	u := User{Email: email, Handle: handle, PasswordHash: digest, Role: rbac.RoleUser}
	if err := s.repo.Create(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate spends one hash comparison whether or not the e-mail exists.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return User{}, err
		}
		s.hasher.Verify(password, s.dummy())
		return User{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash("authguard-timing-equalizer")
	})
	return s.dummyDigest
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.ByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]User, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) UpdateHandle(ctx context.Context, id int64, handle string) (User, error) {
	if err := ValidateHandle(handle); err != nil {
		return User{}, err
	}
	return s.repo.UpdateHandle(ctx, id, handle)
}

func (s *Service) Verify(ctx context.Context, id int64) (User, error) {
	return s.repo.SetVerified(ctx, id, true)
}

// ChangeRole returns the role held before the change.
func (s *Service) ChangeRole(ctx context.Context, id int64, role rbac.Role) (rbac.Role, User, error) {
	if !role.Valid() {
		return "", User{}, &ValidationError{Field: "role", Reason: "unknown role"}
	}
	before, err := s.repo.ByID(ctx, id)
	if err != nil {
		return "", User{}, err
	}
	after, err := s.repo.SetRole(ctx, id, role)
	if err != nil {
		return "", User{}, err
	}
	return before.Role, after, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// OwnerOf treats an account as owned by itself, for ownership guards on
// /users/:id routes.
func (s *Service) OwnerOf(ctx context.Context, id int64) (int64, error) {
	u, err := s.repo.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("users.Service.OwnerOf: %w", ownership.ErrNotFound)
		}
		return 0, err
	}
	return u.ID, nil
}

var _ ownership.Lookup = (*Service)(nil)
