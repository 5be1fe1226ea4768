// Package authclient is the trusted-client side of authguard: it keeps the
// token pair in a ranked list of credential sources, renews it at most once
// at a time, and retries a rejected request exactly once after renewal.
package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var ErrNoCredentials = errors.New("authclient: no credentials")

// Cookie names and the refresh path set by the server.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
	ExpiryCookie  = "tokenExpiry"
	RefreshPath   = "/v1/auth/refresh"
)

// Credentials is the persisted token pair.
type Credentials struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	ExpiresAtUnixMs int64  `json:"expires_at_unix_ms"`
}

func (c Credentials) ExpiresAt() time.Time { return time.UnixMilli(c.ExpiresAtUnixMs) }

func (c Credentials) empty() bool { return c.AccessToken == "" && c.RefreshToken == "" }

// Source is one place credentials may live. Load returns ErrNoCredentials
// when the source holds nothing.
type Source interface {
	Name() string
	Load() (Credentials, error)
	Save(Credentials) error
	Clear() error
}

// --- memory ---

type MemorySource struct {
	mu    sync.Mutex
	creds Credentials
}

func NewMemorySource() *MemorySource { return &MemorySource{} }

func (s *MemorySource) Name() string { return "memory" }

func (s *MemorySource) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds.empty() {
		return Credentials{}, ErrNoCredentials
	}
	return s.creds, nil
}

func (s *MemorySource) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = c
	return nil
}

func (s *MemorySource) Clear() error { return s.Save(Credentials{}) }

// --- cookie jar ---

// CookieJarSource reads the cookies the server attached to responses. Save
// writes them back so a jar-backed http.Client sends fresh cookies too.
type CookieJarSource struct {
	jar     http.CookieJar
	base    *url.URL
	refresh *url.URL
}

func NewCookieJarSource(jar http.CookieJar, baseURL string) (*CookieJarSource, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &CookieJarSource{jar: jar, base: base, refresh: base.JoinPath(RefreshPath)}, nil
}

func (s *CookieJarSource) Name() string { return "cookie_jar" }

func (s *CookieJarSource) Load() (Credentials, error) {
	var c Credentials
	for _, ck := range s.jar.Cookies(s.base) {
		switch ck.Name {
		case AccessCookie:
			c.AccessToken = ck.Value
		case ExpiryCookie:
			c.ExpiresAtUnixMs, _ = strconv.ParseInt(ck.Value, 10, 64)
		}
	}
	for _, ck := range s.jar.Cookies(s.refresh) {
		if ck.Name == RefreshCookie {
			c.RefreshToken = ck.Value
		}
	}
	if c.empty() {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

func (s *CookieJarSource) Save(c Credentials) error {
	s.jar.SetCookies(s.base, []*http.Cookie{
		{Name: AccessCookie, Value: c.AccessToken, Path: "/"},
		{Name: ExpiryCookie, Value: strconv.FormatInt(c.ExpiresAtUnixMs, 10), Path: "/"},
	})
	if c.RefreshToken != "" {
		s.jar.SetCookies(s.refresh, []*http.Cookie{{Name: RefreshCookie, Value: c.RefreshToken, Path: RefreshPath}})
	}
	return nil
}

func (s *CookieJarSource) Clear() error {
	s.jar.SetCookies(s.base, []*http.Cookie{
		{Name: AccessCookie, Path: "/", MaxAge: -1},
		{Name: ExpiryCookie, Path: "/", MaxAge: -1},
	})
	s.jar.SetCookies(s.refresh, []*http.Cookie{{Name: RefreshCookie, Path: RefreshPath, MaxAge: -1}})
	return nil
}

// --- file ---

const credentialsFile = "credentials.json"

// FileSource persists credentials as JSON with 0600 permissions.
type FileSource struct {
	path string
}

// DefaultCredentialsPath is ~/.authguard/credentials.json.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".authguard", credentialsFile), nil
}

func NewFileSource(path string) *FileSource { return &FileSource{path: path} }

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Load() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	if c.empty() {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

func (s *FileSource) Save(c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileSource) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
