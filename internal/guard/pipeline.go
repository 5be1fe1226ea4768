package guard

import (
	"authguard/internal/ownership"
	"authguard/internal/rbac"

	"github.com/gin-gonic/gin"
)

type authMode int

const (
	authNone authMode = iota
	authOptional
	authRequired
)

type ownerStep struct {
	param     string
	lookup    ownership.Lookup
	perm      rbac.Permission
	overrides []rbac.Permission
}

type rateStep struct {
	scope string
	key   KeyFunc
}

// Pipeline declares the guards a route needs. Build emits them in a fixed
// order regardless of declaration order: authenticate, verify, role,
// permission, ownership, rate limit, CSRF.
type Pipeline struct {
	g        *Guards
	auth     authMode
	verified bool
	minRole  rbac.Role
	perms    []rbac.Permission
	owner    *ownerStep
	rate     *rateStep
	csrf     bool
}

func (g *Guards) Pipeline() *Pipeline {
	return &Pipeline{g: g}
}

// Optional resolves the identity when present without requiring it.
func (p *Pipeline) Optional() *Pipeline {
	if p.auth == authNone {
		p.auth = authOptional
	}
	return p
}

func (p *Pipeline) Authenticated() *Pipeline {
	p.auth = authRequired
	return p
}

func (p *Pipeline) Verified() *Pipeline {
	p.verified = true
	return p.Authenticated()
}

func (p *Pipeline) Role(floor rbac.Role) *Pipeline {
	p.minRole = floor
	return p.Authenticated()
}

func (p *Pipeline) Permission(perms ...rbac.Permission) *Pipeline {
	p.perms = append(p.perms, perms...)
	return p.Authenticated()
}

// Owner adds an ownership check; see RequireOwnership for overrides.
func (p *Pipeline) Owner(param string, lookup ownership.Lookup, perm rbac.Permission, overrides ...rbac.Permission) *Pipeline {
	p.owner = &ownerStep{param: param, lookup: lookup, perm: perm, overrides: overrides}
	return p.Authenticated()
}

func (p *Pipeline) RateLimited(scope string, key KeyFunc) *Pipeline {
	p.rate = &rateStep{scope: scope, key: key}
	return p
}

func (p *Pipeline) CSRF() *Pipeline {
	p.csrf = true
	return p
}

// Steps lists the guard names Build will emit, in order.
func (p *Pipeline) Steps() []string {
	var steps []string
	switch p.auth {
	case authRequired:
		steps = append(steps, stepAuthenticate)
	case authOptional:
		steps = append(steps, stepOptionalAuth)
	}
	if p.verified {
		steps = append(steps, stepVerify)
	}
	if p.minRole != "" {
		steps = append(steps, stepRole)
	}
	if len(p.perms) > 0 {
		steps = append(steps, stepPermission)
	}
	if p.owner != nil {
		steps = append(steps, stepOwnership)
	}
	if p.rate != nil {
		steps = append(steps, stepRateLimit)
	}
	if p.csrf {
		steps = append(steps, stepCSRF)
	}
	return steps
}

// Build returns the guard chain followed by handlers.
func (p *Pipeline) Build(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	var chain []gin.HandlerFunc
	for _, step := range p.Steps() {
		chain = append(chain, p.handler(step))
	}
	return append(chain, handlers...)
}

func (p *Pipeline) handler(step string) gin.HandlerFunc {
	switch step {
	case stepAuthenticate:
		return p.g.Authenticate()
	case stepOptionalAuth:
		return p.g.OptionalAuth()
	case stepVerify:
		return p.g.RequireVerified()
	case stepRole:
		return p.g.RequireRole(p.minRole)
	case stepPermission:
		return p.g.RequirePermission(p.perms...)
	case stepOwnership:
		return p.g.RequireOwnership(p.owner.param, p.owner.lookup, p.owner.perm, p.owner.overrides...)
	case stepRateLimit:
		return p.g.RateLimit(p.rate.scope, p.rate.key)
	default:
		return p.g.CSRF()
	}
}
