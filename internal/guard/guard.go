// Package guard wraps gin handlers with authentication and authorization
// decisions. Every denial is answered with the apierr envelope before the
// wrapped handler runs.
package guard

import (
	"errors"
	"strconv"

	"authguard/internal/apierr"
	"authguard/internal/auth"
	"authguard/internal/ownership"
	"authguard/internal/ratelimit"
	"authguard/internal/rbac"
	"authguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	stepAuthenticate = "authenticate"
	stepOptionalAuth = "optional_auth"
	stepVerify       = "verify"
	stepRole         = "role"
	stepPermission   = "permission"
	stepOwnership    = "ownership"
	stepRateLimit    = "rate_limit"
	stepCSRF         = "csrf"
)

const ctxOwnerID = "resource_owner_id"

// Guards holds the shared dependencies of every guard.
type Guards struct {
	resolver *auth.Resolver
	table    *rbac.Table
	limiter  *ratelimit.Limiter
	metrics  *Metrics

	onRateLimited func(c *gin.Context, scope string)
}

type Option func(*Guards)

func WithMetrics(m *Metrics) Option {
	return func(g *Guards) { g.metrics = m }
}

// OnRateLimited runs fn for every request denied by a rate limit.
func OnRateLimited(fn func(c *gin.Context, scope string)) Option {
	return func(g *Guards) { g.onRateLimited = fn }
}

func New(resolver *auth.Resolver, table *rbac.Table, limiter *ratelimit.Limiter, opts ...Option) *Guards {
	g := &Guards{resolver: resolver, table: table, limiter: limiter}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Identity returns the identity resolved by Authenticate or OptionalAuth.
func Identity(c *gin.Context) (rbac.Identity, bool) {
	return auth.IdentityFrom(c.Request.Context())
}

// OwnerID returns the owner id loaded by RequireOwnership.
func OwnerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxOwnerID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func (g *Guards) attach(c *gin.Context, id rbac.Identity) {
	c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
	c.Set(logger.KeyUserID, id.ID)
}

func (g *Guards) deny(c *gin.Context, step string, e *apierr.Error) {
	g.metrics.deny(step)
	logger.FromGin(c).Debug("guard denied", "guard", step, "code", string(e.Code))
	apierr.Abort(c, e)
}

// Authenticate denies with AUTHENTICATION_REQUIRED when no valid access token
// is presented.
func (g *Guards) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := g.resolver.Resolve(c.Request)
		if !ok {
			g.deny(c, stepAuthenticate, apierr.AuthenticationRequired())
			return
		}
		g.attach(c, id)
		g.metrics.allow(stepAuthenticate)
		c.Next()
	}
}

// OptionalAuth always proceeds; handlers branch on Identity.
func (g *Guards) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := g.resolver.Resolve(c.Request); ok {
			g.attach(c, id)
		}
		c.Next()
	}
}

// RequireVerified must run after Authenticate.
func (g *Guards) RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			g.deny(c, stepVerify, apierr.AuthenticationRequired())
			return
		}
		if !id.Verified {
			g.deny(c, stepVerify, apierr.EmailVerificationRequired())
			return
		}
		g.metrics.allow(stepVerify)
		c.Next()
	}
}

// RequireRole denies callers ranked below floor.
func (g *Guards) RequireRole(floor rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			g.deny(c, stepRole, apierr.AuthenticationRequired())
			return
		}
		if !id.Role.AtLeast(floor) {
			g.deny(c, stepRole, apierr.InsufficientPermissions("role "+string(floor)+" required"))
			return
		}
		g.metrics.allow(stepRole)
		c.Next()
	}
}

// RequirePermission requires every listed permission. Content-creation
// permissions also require a verified account, reported separately.
func (g *Guards) RequirePermission(perms ...rbac.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			g.deny(c, stepPermission, apierr.AuthenticationRequired())
			return
		}
		for _, p := range perms {
			if err := g.table.Authorize(id, p); err != nil {
				if errors.Is(err, rbac.ErrUnverified) {
					g.deny(c, stepPermission, apierr.EmailVerificationRequired())
					return
				}
				g.deny(c, stepPermission, apierr.InsufficientPermissions("missing permission: "+string(p)))
				return
			}
		}
		g.metrics.allow(stepPermission)
		c.Next()
	}
}

// RequireOwnership loads the owner of the resource named by the path param
// and allows the owner holding perm or an admin-override holder. When
// overrides are given, only those permissions let a non-owner through.
// A missing resource is NOT_FOUND; the lookup only runs for authenticated
// callers.
func (g *Guards) RequireOwnership(param string, lookup ownership.Lookup, perm rbac.Permission, overrides ...rbac.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			g.deny(c, stepOwnership, apierr.AuthenticationRequired())
			return
		}
		resourceID, err := strconv.ParseInt(c.Param(param), 10, 64)
		if err != nil || resourceID <= 0 {
			g.deny(c, stepOwnership, apierr.InvalidRequest("invalid "+param))
			return
		}

		owner, err := lookup.OwnerOf(c.Request.Context(), resourceID)
		if err != nil {
			if errors.Is(err, ownership.ErrNotFound) {
				g.deny(c, stepOwnership, apierr.NotFound("resource"))
				return
			}
			logger.FromGin(c).Error("owner lookup failed", "err", err, "resource_id", resourceID)
			apierr.Abort(c, apierr.Internal())
			return
		}

		if !g.table.CanAccessResourceWith(id, owner, perm, overrides...) {
			g.deny(c, stepOwnership, apierr.ResourceAccessDenied())
			return
		}
		c.Set(ctxOwnerID, owner)
		g.metrics.allow(stepOwnership)
		c.Next()
	}
}
