package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"authguard/internal/config"
)

// Cookie names are part of the wire contract with browser clients.
// ExpiryCookie holds the access expiry in epoch milliseconds and is readable
// by script.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
	ExpiryCookie  = "tokenExpiry"
)

// CookieStore attaches and clears credential cookies on responses.
type CookieStore struct {
	refreshPath string
	domain      string
	forceSecure bool
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

// NewCookieStore scopes the refresh cookie to refreshPath only.
func NewCookieStore(codec *Codec, cfg config.CookieConfig, refreshPath string) *CookieStore {
	return &CookieStore{
		refreshPath: refreshPath,
		domain:      cfg.Domain,
		forceSecure: cfg.Secure,
		accessTTL:   codec.AccessTTL(),
		refreshTTL:  codec.RefreshTTL(),
	}
}

func (s *CookieStore) Attach(w http.ResponseWriter, r *http.Request, pair TokenPair) {
	secure := s.Secure(r)

	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   int(s.accessTTL / time.Second),
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     s.refreshPath,
		Domain:   s.domain,
		MaxAge:   int(s.refreshTTL / time.Second),
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     ExpiryCookie,
		Value:    strconv.FormatInt(pair.AccessExpiresAt.UnixMilli(), 10),
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   int(s.accessTTL / time.Second),
		Expires:  pair.AccessExpiresAt,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires all three cookies immediately.
func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request) {
	secure := s.Secure(r)
	for _, ck := range []struct {
		name     string
		path     string
		httpOnly bool
	}{
		{AccessCookie, "/", true},
		{RefreshCookie, s.refreshPath, true},
		{ExpiryCookie, "/", false},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     ck.name,
			Value:    "",
			Path:     ck.path,
			Domain:   s.domain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: ck.httpOnly,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// Secure reports whether cookies set on this request get the Secure flag.
func (s *CookieStore) Secure(r *http.Request) bool {
	if s.forceSecure {
		return true
	}
	if r == nil {
		return false
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
