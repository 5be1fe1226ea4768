package users

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"authguard/internal/rbac"
)

// MemoryRepo keeps accounts in a process-local map.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]User
	clock  func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[int64]User), clock: time.Now}
}

func (r *MemoryRepo) Create(_ context.Context, u *User) error {
	const op = "users.MemoryRepo.Create"
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, u.Email) || existing.Handle == u.Handle {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
	}
	r.nextID++
	now := r.clock().UTC()
	u.ID = r.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	r.byID[u.ID] = *u
	return nil
}

func (r *MemoryRepo) ByID(_ context.Context, id int64) (User, error) {
	const op = "users.MemoryRepo.ByID"
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return u, nil
}

func (r *MemoryRepo) ByEmail(_ context.Context, email string) (User, error) {
	const op = "users.MemoryRepo.ByEmail"
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
}

func (r *MemoryRepo) List(_ context.Context, limit, offset int) ([]User, error) {
	r.mu.RLock()
	out := make([]User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []User{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) update(op string, id int64, fn func(*User) error) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err := fn(&u); err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.UpdatedAt = r.clock().UTC()
	r.byID[id] = u
	return u, nil
}

func (r *MemoryRepo) UpdateHandle(_ context.Context, id int64, handle string) (User, error) {
	return r.update("users.MemoryRepo.UpdateHandle", id, func(u *User) error {
		for otherID, other := range r.byID {
			if otherID != id && other.Handle == handle {
				return ErrAlreadyExists
			}
		}
		u.Handle = handle
		return nil
	})
}

func (r *MemoryRepo) SetVerified(_ context.Context, id int64, verified bool) (User, error) {
	return r.update("users.MemoryRepo.SetVerified", id, func(u *User) error {
		u.Verified = verified
		return nil
	})
}

func (r *MemoryRepo) SetRole(_ context.Context, id int64, role rbac.Role) (User, error) {
	return r.update("users.MemoryRepo.SetRole", id, func(u *User) error {
		u.Role = role
		return nil
	})
}

func (r *MemoryRepo) Delete(_ context.Context, id int64) error {
	const op = "users.MemoryRepo.Delete"
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}
