package guard

import (
	"strconv"

	"authguard/internal/apierr"

	"github.com/gin-gonic/gin"
)

const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"

	ctxRateLimitKey = "rate_limit_key"
)

// KeyFunc names the caller a rate limit applies to.
type KeyFunc func(c *gin.Context) string

// ByClientIP keys on the resolved client address.
func ByClientIP(c *gin.Context) string { return c.ClientIP() }

// ByIdentity keys on the authenticated user, falling back to the client IP.
func ByIdentity(c *gin.Context) string {
	if id, ok := Identity(c); ok {
		return "user:" + strconv.FormatInt(id.ID, 10)
	}
	return "ip:" + c.ClientIP()
}

// RateLimit counts one attempt per request under scope+key. Both allowed and
// denied responses carry the X-RateLimit-* headers; denials add Retry-After.
// An empty scope uses the route pattern.
func (g *Guards) RateLimit(scope string, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ByClientIP
	}
	return func(c *gin.Context) {
		s := scope
		if s == "" {
			s = c.FullPath()
		}
		k := s + ":" + key(c)

		d := g.limiter.Check(c.Request.Context(), k)
		h := c.Writer.Header()
		h.Set(headerLimit, strconv.Itoa(d.Limit))
		h.Set(headerRemaining, strconv.Itoa(d.Remaining))
		h.Set(headerReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
		c.Set(ctxRateLimitKey, k)

		if !d.Allowed {
			retry := d.RetryAfter(g.limiter.Now())
			h.Set(headerRetryAfter, strconv.FormatInt(int64(retry.Seconds()), 10))
			if g.onRateLimited != nil {
				g.onRateLimited(c, s)
			}
			g.deny(c, stepRateLimit, apierr.RateLimitExceeded())
			return
		}
		g.metrics.allow(stepRateLimit)
		c.Next()
	}
}

// ForgiveAttempts clears the window counted for this request, e.g. after a
// successful login.
func (g *Guards) ForgiveAttempts(c *gin.Context) {
	if k := c.GetString(ctxRateLimitKey); k != "" {
		g.limiter.Reset(c.Request.Context(), k)
	}
}
