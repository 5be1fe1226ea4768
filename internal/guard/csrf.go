package guard

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"authguard/internal/apierr"

	"github.com/gin-gonic/gin"
)

const (
	CSRFCookie = "csrfToken"
	CSRFHeader = "X-CSRF-Token"
)

// NewCSRFToken returns 32 random bytes, base64url encoded.
func NewCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetCSRFCookie stores token in a script-readable cookie so the client can
// echo it in the CSRF header.
func SetCSRFCookie(c *gin.Context, token string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// CSRF enforces the double-submit check on state-changing requests: the
// header must equal the cookie and both must be present.
func (g *Guards) CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if safeMethod(c.Request.Method) {
			c.Next()
			return
		}
		header := c.GetHeader(CSRFHeader)
		cookie, err := c.Cookie(CSRFCookie)
		if err != nil || header == "" || cookie == "" ||
			subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
			g.deny(c, stepCSRF, apierr.CSRFTokenInvalid())
			return
		}
		g.metrics.allow(stepCSRF)
		c.Next()
	}
}
