package rbac

import "sort"

// Permission names a single capability.
type Permission string

// User tier.
const (
	PermReadContent      Permission = "read_content"
	PermCreateAlbum      Permission = "create_album"
	PermCreateBlogPost   Permission = "create_blog_post"
	PermUploadMedia      Permission = "upload_media"
	PermComment          Permission = "comment"
	PermUpdateOwnContent Permission = "update_own_content"
	PermDeleteOwnContent Permission = "delete_own_content"
	PermUpdateOwnProfile Permission = "update_own_profile"
	PermDeleteOwnAccount Permission = "delete_own_account"
)

// Admin tier.
const (
	PermReadAllContent   Permission = "read_all_content"
	PermUpdateAnyContent Permission = "update_any_content"
	PermDeleteAnyContent Permission = "delete_any_content"
	PermModerateContent  Permission = "moderate_content"
	PermFeatureContent   Permission = "feature_content"
	PermReadAllUsers     Permission = "read_all_users"
	PermManageUsers      Permission = "manage_users"
	PermViewAnalytics    Permission = "view_analytics"
)

// Super admin tier.
const (
	PermUpdateAnyUser        Permission = "update_any_user"
	PermDeleteAnyUser        Permission = "delete_any_user"
	PermManageAdmins         Permission = "manage_admins"
	PermManageSystemSettings Permission = "manage_system_settings"
	PermViewAuditLog         Permission = "view_audit_log"
)

var (
	userTier = []Permission{
		PermReadContent,
		PermCreateAlbum,
		PermCreateBlogPost,
		PermUploadMedia,
		PermComment,
		PermUpdateOwnContent,
		PermDeleteOwnContent,
		PermUpdateOwnProfile,
		PermDeleteOwnAccount,
	}
	adminTier = []Permission{
		PermReadAllContent,
		PermUpdateAnyContent,
		PermDeleteAnyContent,
		PermModerateContent,
		PermFeatureContent,
		PermReadAllUsers,
		PermManageUsers,
		PermViewAnalytics,
	}
	superAdminTier = []Permission{
		PermUpdateAnyUser,
		PermDeleteAnyUser,
		PermManageAdmins,
		PermManageSystemSettings,
		PermViewAuditLog,
	}
)

// adminOverride grants access to any resource regardless of its owner.
var adminOverride = []Permission{
	PermReadAllContent,
	PermUpdateAnyContent,
	PermDeleteAnyContent,
	PermReadAllUsers,
	PermUpdateAnyUser,
	PermDeleteAnyUser,
}

// globalRead lets filtering return every resource untouched.
var globalRead = []Permission{
	PermReadAllContent,
	PermReadAllUsers,
}

// verificationGated permissions create content and need a verified account
// on top of the role grant.
var verificationGated = map[Permission]struct{}{
	PermCreateAlbum:    {},
	PermCreateBlogPost: {},
	PermUploadMedia:    {},
	PermComment:        {},
}

// RequiresVerification reports whether p is a content-creation permission.
func RequiresVerification(p Permission) bool {
	_, ok := verificationGated[p]
	return ok
}

// Table maps roles to permission sets. It is built once by NewTable and
// never mutated afterwards, so it is safe for concurrent use.
type Table struct {
	grants map[Role]map[Permission]struct{}
}

// NewTable composes the role tiers: every tier inherits the tier below it.
func NewTable() *Table {
	tiers := []struct {
		role  Role
		perms []Permission
	}{
		{RoleUser, userTier},
		{RoleAdmin, adminTier},
		{RoleSuperAdmin, superAdminTier},
	}

	grants := make(map[Role]map[Permission]struct{}, len(tiers))
	inherited := map[Permission]struct{}{}
	for _, tier := range tiers {
		set := make(map[Permission]struct{}, len(inherited)+len(tier.perms))
		for p := range inherited {
			set[p] = struct{}{}
		}
		for _, p := range tier.perms {
			set[p] = struct{}{}
		}
		grants[tier.role] = set
		inherited = set
	}
	return &Table{grants: grants}
}

// Permissions returns a sorted copy of the permissions held by role.
func (t *Table) Permissions(role Role) []Permission {
	set := t.grants[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *Table) roleHas(role Role, p Permission) bool {
	_, ok := t.grants[role][p]
	return ok
}

func (t *Table) HasPermission(id Identity, p Permission) bool {
	return t.roleHas(id.Role, p)
}

func (t *Table) HasAnyPermission(id Identity, perms ...Permission) bool {
	for _, p := range perms {
		if t.roleHas(id.Role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions is true for an empty list.
func (t *Table) HasAllPermissions(id Identity, perms ...Permission) bool {
	for _, p := range perms {
		if !t.roleHas(id.Role, p) {
			return false
		}
	}
	return true
}
