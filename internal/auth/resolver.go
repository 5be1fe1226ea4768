package auth

import (
	"net/http"
	"strings"

	"authguard/internal/rbac"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// TokenSource extracts a raw bearer credential from a request.
type TokenSource interface {
	Token(r *http.Request) (string, bool)
}

// BearerHeader reads "Authorization: Bearer <token>".
type BearerHeader struct{}

func (BearerHeader) Token(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get(authorizationHeader))
	if len(raw) <= len(bearerPrefix) || !strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(raw[len(bearerPrefix):])
	return tok, tok != ""
}

// CookieSource reads the named cookie.
type CookieSource string

func (name CookieSource) Token(r *http.Request) (string, bool) {
	ck, err := r.Cookie(string(name))
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Resolver turns a request into an identity. Sources are tried in order and
// the first one that yields a credential decides; a bad header does not fall
// through to the cookie. Query strings are never consulted.
type Resolver struct {
	codec   *Codec
	sources []TokenSource
}

// NewResolver defaults to the bearer header followed by the access cookie.
func NewResolver(codec *Codec, sources ...TokenSource) *Resolver {
	if len(sources) == 0 {
		sources = []TokenSource{BearerHeader{}, CookieSource(AccessCookie)}
	}
	return &Resolver{codec: codec, sources: sources}
}

func (res *Resolver) Resolve(r *http.Request) (rbac.Identity, bool) {
	for _, src := range res.sources {
		tok, ok := src.Token(r)
		if !ok {
			continue
		}
		return res.codec.VerifyAccessToken(tok)
	}
	return rbac.Identity{}, false
}
