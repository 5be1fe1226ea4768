package auth

import (
	"errors"
	"fmt"
	"time"

	"authguard/internal/config"
	"authguard/internal/rbac"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errTokenType = errors.New("token_type mismatch")

// Codec signs and verifies access and refresh tokens. Each class has its own
// HMAC secret, so one leaked key cannot forge the other class.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	leeway        time.Duration
	clock         func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) CodecOption {
	return func(c *Codec) { c.clock = clock }
}

func NewCodec(cfg config.AuthConfig, opts ...CodecOption) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}

	c := &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		leeway:        cfg.Leeway,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime, seconds

	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

/* ===================== ISSUE TOKENS ===================== */

func (c *Codec) IssueAccessToken(id rbac.Identity) (string, error) {
	return c.issue(c.clock(), TokenTypeAccess, id)
}

func (c *Codec) IssueRefreshToken(id rbac.Identity) (string, error) {
	return c.issue(c.clock(), TokenTypeRefresh, id)
}

func (c *Codec) IssuePair(id rbac.Identity) (TokenPair, error) {
	now := c.clock()

	access, err := c.issue(now, TokenTypeAccess, id)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.issue(now, TokenTypeRefresh, id)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(c.accessTTL / time.Second),
		AccessExpiresAt:  now.Add(c.accessTTL),
		RefreshExpiresAt: now.Add(c.refreshTTL),
	}, nil
}

/* ===================== VERIFY TOKEN ===================== */

// VerifyAccessToken returns the identity of a valid access token. Every
// failure (signature, issuer, audience, expiry, type) collapses to false.
func (c *Codec) VerifyAccessToken(token string) (rbac.Identity, bool) {
	claims, err := c.verify(token, TokenTypeAccess)
	if err != nil {
		return rbac.Identity{}, false
	}
	return claims.Identity(), true
}

func (c *Codec) VerifyRefreshToken(token string) (rbac.Identity, bool) {
	claims, err := c.verify(token, TokenTypeRefresh)
	if err != nil {
		return rbac.Identity{}, false
	}
	return claims.Identity(), true
}

func (c *Codec) verify(tokenString string, expected TokenType) (Claims, error) {
	if tokenString == "" {
		return Claims{}, errors.New("empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock),
		jwt.WithLeeway(c.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return c.secretFor(expected), nil
	})
	if err != nil {
		return Claims{}, err
	}

	// Custom claims validation
	if claims.TokenType != expected {
		return Claims{}, errTokenType
	}
	if claims.UserID <= 0 {
		return Claims{}, errors.New("uid missing")
	}
	if !claims.Role.Valid() {
		return Claims{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

func (c *Codec) secretFor(t TokenType) []byte {
	if t == TokenTypeRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

/* ===================== INTERNAL ISSUE ===================== */

func (c *Codec) issue(now time.Time, tokenType TokenType, id rbac.Identity) (string, error) {
	ttl := c.accessTTL
	if tokenType == TokenTypeRefresh {
		ttl = c.refreshTTL
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   fmt.Sprintf("%d", id.ID),
			Audience:  audienceOrNil(c.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    id.ID,
		Email:     id.Email,
		Handle:    id.Handle,
		Role:      id.Role,
		Verified:  id.Verified,
		TokenType: tokenType,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.secretFor(tokenType))
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
