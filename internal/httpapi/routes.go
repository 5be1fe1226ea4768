package httpapi

import (
	"authguard/internal/guard"
	"authguard/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RefreshPath scopes the refresh cookie: browsers send it to the renewal
// endpoint and nowhere else.
const RefreshPath = "/v1/auth/refresh"

const (
	scopeRegister = "register"
	scopeLogin    = "login"
)

// Routes wires the /v1 API. Every route declares its guards through a
// Pipeline so the evaluation order is fixed.
func (h *Handlers) Routes(r gin.IRouter) {
	g := h.Guards
	v1 := r.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", g.Pipeline().RateLimited(scopeRegister, guard.ByClientIP).Build(h.Register)...)
		authGroup.POST("/login", g.Pipeline().RateLimited(scopeLogin, guard.ByClientIP).Build(h.Login)...)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/csrf", h.CSRFToken)
	}

	v1.GET("/me", g.Pipeline().Authenticated().Build(h.Me)...)

	usersGroup := v1.Group("/users")
	{
		usersGroup.PATCH("/:id", g.Pipeline().
			Verified().
			Owner("id", h.Users, rbac.PermUpdateOwnProfile, rbac.PermUpdateAnyUser).
			CSRF().
			Build(h.UpdateUser)...)
		usersGroup.DELETE("/:id", g.Pipeline().
			Owner("id", h.Users, rbac.PermDeleteOwnAccount, rbac.PermDeleteAnyUser).
			CSRF().
			Build(h.DeleteUser)...)
	}

	admin := v1.Group("/admin")
	{
		admin.GET("/users", g.Pipeline().
			Role(rbac.RoleAdmin).
			Permission(rbac.PermReadAllUsers).
			Build(h.ListUsers)...)
		admin.POST("/users/:id/verify", g.Pipeline().
			Permission(rbac.PermManageUsers).
			CSRF().
			Build(h.VerifyUser)...)
		admin.PUT("/users/:id/role", g.Pipeline().
			Role(rbac.RoleSuperAdmin).
			Permission(rbac.PermManageAdmins).
			CSRF().
			Build(h.ChangeRole)...)
		admin.GET("/audit", g.Pipeline().
			Permission(rbac.PermViewAuditLog).
			Build(h.AuditLog)...)
	}
}
