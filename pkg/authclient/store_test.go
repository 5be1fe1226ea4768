package authclient

import (
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RankedLoad(t *testing.T) {
	primary := NewMemorySource()
	secondary := NewMemorySource()
	s := NewStore(primary, secondary)

	_, err := s.Load()
	require.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, secondary.Save(Credentials{AccessToken: "from-secondary"}))
	c, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-secondary", c.AccessToken)

	require.NoError(t, primary.Save(Credentials{AccessToken: "from-primary"}))
	c, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-primary", c.AccessToken)

	require.NoError(t, s.Clear())
	_, err = s.Load()
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestStore_IsExpiredHonoursMargin(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewStore()
	s.clock = func() time.Time { return now }

	assert.True(t, s.IsExpired(), "no credentials")

	require.NoError(t, s.Save(Credentials{AccessToken: "a", ExpiresAtUnixMs: now.Add(time.Minute).UnixMilli()}))
	assert.False(t, s.IsExpired())

	require.NoError(t, s.Save(Credentials{AccessToken: "a", ExpiresAtUnixMs: now.Add(20 * time.Second).UnixMilli()}))
	assert.True(t, s.IsExpired(), "inside the 30s safety margin")
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", credentialsFile)
	src := NewFileSource(path)

	_, err := src.Load()
	require.ErrorIs(t, err, ErrNoCredentials)

	want := Credentials{AccessToken: "a", RefreshToken: "r", ExpiresAtUnixMs: 42}
	require.NoError(t, src.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, src.Clear())
	require.NoError(t, src.Clear(), "clearing twice is fine")
	_, err = src.Load()
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestFileSource_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), credentialsFile)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewFileSource(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredentials)
}

func TestCookieJarSource(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	src, err := NewCookieJarSource(jar, "http://api.example.test")
	require.NoError(t, err)

	_, err = src.Load()
	require.ErrorIs(t, err, ErrNoCredentials)

	want := Credentials{AccessToken: "a.b.c", RefreshToken: "r.s.t", ExpiresAtUnixMs: 1700000000000}
	require.NoError(t, src.Save(want))
	got, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	login, err := url.Parse("http://api.example.test/v1/auth/login")
	require.NoError(t, err)
	for _, ck := range jar.Cookies(login) {
		assert.NotEqual(t, RefreshCookie, ck.Name, "refresh cookie leaks outside the renewal path")
	}
	renew, err := url.Parse("http://api.example.test/v1/auth/refresh")
	require.NoError(t, err)
	assert.Len(t, jar.Cookies(renew), 3)

	require.NoError(t, src.Clear())
	_, err = src.Load()
	require.ErrorIs(t, err, ErrNoCredentials)
}
