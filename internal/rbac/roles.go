package rbac

// Role names. Keep these stable; they are embedded in issued tokens.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Rank places a role on the total order user < admin < super_admin.
// Unknown roles rank 0, below every real role.
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r sits at or above floor.
func (r Role) AtLeast(floor Role) bool {
	return r.Valid() && r.Rank() >= floor.Rank()
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

func IsSuperAdmin(r Role) bool { return r == RoleSuperAdmin }

// Identity is the claim set carried by access and refresh tokens.
// It is a snapshot taken at issue time; the user store stays the source of truth.
type Identity struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Handle   string `json:"handle"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
}
