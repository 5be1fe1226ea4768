package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrUnverified means the role grants the permission but the account is not verified.
	ErrUnverified = errors.New("rbac: email verification required")
	// ErrMissingPermission means the role does not grant the permission.
	ErrMissingPermission = errors.New("rbac: missing permission")
)

// PermissionError names the permission that was missing.
type PermissionError struct {
	Permission Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("rbac: missing permission %q", e.Permission)
}

func (e *PermissionError) Unwrap() error { return ErrMissingPermission }

// Authorize applies the verification gate first and then the role grant, so
// the two failure reasons stay distinguishable.
func (t *Table) Authorize(id Identity, p Permission) error {
	if RequiresVerification(p) && !id.Verified {
		return ErrUnverified
	}
	if !t.HasPermission(id, p) {
		return &PermissionError{Permission: p}
	}
	return nil
}

// HasAdminOverride reports whether id may act on resources it does not own.
func (t *Table) HasAdminOverride(id Identity) bool {
	return t.HasAnyPermission(id, adminOverride...)
}

// CanAccessResource allows the owner holding p, or any admin-override holder.
// The two paths are alternatives; the override does not need p.
func (t *Table) CanAccessResource(id Identity, ownerID int64, p Permission) bool {
	if id.ID == ownerID && t.HasPermission(id, p) {
		return true
	}
	return t.HasAdminOverride(id)
}

// CanAccessResourceWith is CanAccessResource with a narrower override: only
// the listed permissions let a non-owner through. An empty list falls back
// to the general admin override set.
func (t *Table) CanAccessResourceWith(id Identity, ownerID int64, p Permission, overrides ...Permission) bool {
	if len(overrides) == 0 {
		return t.CanAccessResource(id, ownerID, p)
	}
	if id.ID == ownerID && t.HasPermission(id, p) {
		return true
	}
	return t.HasAnyPermission(id, overrides...)
}

// Owned is implemented by resources that carry an owner id.
type Owned interface {
	OwnerID() int64
}

// FilterAccessible returns every resource for global readers, otherwise only
// the resources id owns, provided id holds p.
func FilterAccessible[T Owned](t *Table, id Identity, resources []T, p Permission) []T {
	if t.HasAnyPermission(id, globalRead...) {
		return resources
	}
	if !t.HasPermission(id, p) {
		return []T{}
	}
	out := make([]T, 0, len(resources))
	for _, r := range resources {
		if r.OwnerID() == id.ID {
			out = append(out, r)
		}
	}
	return out
}
