package users

import (
	"context"
	"errors"
	"testing"

	"authguard/internal/auth"
	"authguard/internal/ownership"
	"authguard/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, auth.NewHasher(bcrypt.MinCost)), repo
}

func TestRegister(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Ada@Example.com ", "ada", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, rbac.RoleUser, u.Role)
	assert.False(t, u.Verified)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	stored, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)

	_, err = svc.Register(ctx, "ADA@example.com", "other", "correct horse")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = svc.Register(ctx, "bob@example.com", "ada", "correct horse")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	cases := []struct {
		name, email, handle, password, field string
	}{
		{"bad email", "nope", "ada", "correct horse", "email"},
		{"display name email", "Ada <ada@example.com>", "ada", "correct horse", "email"},
		{"short handle", "a@example.com", "ab", "correct horse", "handle"},
		{"upper handle", "a@example.com", "Ada", "correct horse", "handle"},
		{"short password", "a@example.com", "ada", "short", "password"},
		{"long password", "a@example.com", "ada", string(make([]byte, 73)), "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.email, tc.handle, tc.password)
			require.ErrorIs(t, err, ErrInvalidArgument)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestAuthenticate_UniformFailure(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, "ada@example.com", "ada", "correct horse")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Handle)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "ghost@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangeRoleAndVerify(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	u, err := svc.Register(ctx, "ada@example.com", "ada", "correct horse")
	require.NoError(t, err)

	before, after, err := svc.ChangeRole(ctx, u.ID, rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleUser, before)
	assert.Equal(t, rbac.RoleAdmin, after.Role)

	_, _, err = svc.ChangeRole(ctx, u.ID, rbac.Role("owner"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, _, err = svc.ChangeRole(ctx, 999, rbac.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := svc.Verify(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, v.Identity().Verified)
}

func TestOwnerOf(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	u, err := svc.Register(ctx, "ada@example.com", "ada", "correct horse")
	require.NoError(t, err)

	owner, err := svc.OwnerOf(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner)

	require.NoError(t, svc.Delete(ctx, u.ID))
	_, err = svc.OwnerOf(ctx, u.ID)
	assert.ErrorIs(t, err, ownership.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, u.ID), ErrNotFound)
}

func TestMemoryRepo_ListAndHandleConflict(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()
	for _, h := range []string{"ada", "bob", "cat"} {
		_, err := svc.Register(ctx, h+"@example.com", h, "correct horse")
		require.NoError(t, err)
	}

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "ada", page[0].Handle)

	page, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "cat", page[0].Handle)

	page, err = repo.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = svc.UpdateHandle(ctx, 1, "bob")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	u, err := svc.UpdateHandle(ctx, 1, "ada_l")
	require.NoError(t, err)
	assert.Equal(t, "ada_l", u.Handle)
}

func TestFilterAccessibleOverAccounts(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()
	for _, h := range []string{"ada", "bob"} {
		_, err := svc.Register(ctx, h+"@example.com", h, "correct horse")
		require.NoError(t, err)
	}
	all, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)

	table := rbac.NewTable()
	self := rbac.Identity{ID: 2, Role: rbac.RoleUser, Verified: true}
	mine := rbac.FilterAccessible(table, self, all, rbac.PermUpdateOwnProfile)
	require.Len(t, mine, 1)
	assert.Equal(t, "bob", mine[0].Handle)

	admin := rbac.Identity{ID: 9, Role: rbac.RoleAdmin, Verified: true}
	assert.Len(t, rbac.FilterAccessible(table, admin, all, rbac.PermUpdateOwnProfile), 2)
}
