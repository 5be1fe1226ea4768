package authclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeServer struct {
	*httptest.Server
	refreshes   atomic.Int32
	resourceHit atomic.Int32
	// acceptToken is the bearer the resource accepts; empty rejects everyone.
	acceptToken atomic.Value
	rejectRenew atomic.Bool
	lastBody    atomic.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"success": false,
		"error":   map[string]any{"code": "AUTHENTICATION_REQUIRED", "message": "invalid or expired token", "status": 401},
	})
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.acceptToken.Store("new-access")

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		fs.refreshes.Add(1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if fs.rejectRenew.Load() || body.RefreshToken == "" {
			unauthorized(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{"tokens": map[string]any{
				"accessToken": "new-access", "refreshToken": "new-refresh", "expiresIn": 900,
			}},
		})
	})
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"user":   map[string]any{"id": 1, "email": "ada@example.com", "handle": "ada", "role": "user", "verified": true},
				"tokens": map[string]any{"accessToken": "new-access", "refreshToken": "new-refresh", "expiresIn": 900},
			},
		})
	})
	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"loggedOut": true}})
	})
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		fs.resourceHit.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+fs.acceptToken.Load().(string) {
			unauthorized(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"user": map[string]any{"id": 1, "handle": "ada", "role": "user"}},
		})
	})
	mux.HandleFunc("/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		fs.resourceHit.Add(1)
		b, _ := io.ReadAll(r.Body)
		fs.lastBody.Store(string(b))
		if r.Header.Get("Authorization") != "Bearer "+fs.acceptToken.Load().(string) {
			unauthorized(w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

// staleClient holds a token the server no longer accepts but that is not
// yet expired locally, so only a 401 can trigger renewal.
func staleClient(t *testing.T, fs *fakeServer) *Client {
	t.Helper()
	c := New(Config{BaseURL: fs.URL, HTTPClient: fs.Client()})
	require.NoError(t, c.Store().Save(Credentials{
		AccessToken:     "revoked-access",
		RefreshToken:    "old-refresh",
		ExpiresAtUnixMs: time.Now().Add(time.Hour).UnixMilli(),
	}))
	return c
}

func TestClient_RetryOnceAfterRenewal(t *testing.T) {
	fs := newFakeServer(t)
	c := staleClient(t, fs)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada", me.Handle)
	assert.Equal(t, int32(1), fs.refreshes.Load())
	assert.Equal(t, int32(2), fs.resourceHit.Load())

	creds, err := c.Store().Load()
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", creds.RefreshToken)
}

func TestClient_SecondRejectionIsTerminal(t *testing.T) {
	fs := newFakeServer(t)
	fs.acceptToken.Store("")
	c := staleClient(t, fs)

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.Equal(t, int32(1), fs.refreshes.Load())
	assert.Equal(t, int32(2), fs.resourceHit.Load(), "no third attempt")
}

func TestClient_FailedRenewalIsTerminal(t *testing.T) {
	fs := newFakeServer(t)
	fs.rejectRenew.Store(true)
	c := staleClient(t, fs)

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrReauthenticationRequired)
	assert.Equal(t, int32(1), fs.resourceHit.Load())

	_, err = c.Store().Load()
	assert.ErrorIs(t, err, ErrNoCredentials, "a rejected refresh token is dropped")
}

func TestClient_RetryResendsBody(t *testing.T) {
	fs := newFakeServer(t)
	c := staleClient(t, fs)

	req, err := http.NewRequest(http.MethodPost, fs.URL+"/v1/echo", strings.NewReader(`{"n":1}`))
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, `{"n":1}`, fs.lastBody.Load())
}

func TestClient_ExpiredTokenRenewsBeforeSending(t *testing.T) {
	fs := newFakeServer(t)
	c := New(Config{BaseURL: fs.URL, HTTPClient: fs.Client()})
	require.NoError(t, c.Store().Save(Credentials{AccessToken: "expired", RefreshToken: "old-refresh", ExpiresAtUnixMs: 1}))

	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.resourceHit.Load(), "renewed up front, no 401 round trip")
}

func TestClient_LoginAndLogout(t *testing.T) {
	fs := newFakeServer(t)
	file := NewFileSource(t.TempDir() + "/" + credentialsFile)
	c := New(Config{BaseURL: fs.URL, HTTPClient: fs.Client(), Sources: []Source{NewMemorySource(), file}})

	id, err := c.Login(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.ID)

	persisted, err := file.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-access", persisted.AccessToken)
	assert.False(t, c.Store().IsExpired())

	require.NoError(t, c.Logout(context.Background()))
	_, err = file.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestClient_OAuth2TokenSource(t *testing.T) {
	fs := newFakeServer(t)
	c := New(Config{BaseURL: fs.URL, HTTPClient: fs.Client()})
	require.NoError(t, c.Store().Save(Credentials{AccessToken: "expired", RefreshToken: "old-refresh", ExpiresAtUnixMs: 1}))

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, fs.Client())
	hc := oauth2.NewClient(ctx, c.TokenSource(ctx))
	resp, err := hc.Get(fs.URL + "/v1/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), fs.refreshes.Load())

	tok, err := c.TokenSource(ctx).Token()
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.Type())
	assert.True(t, tok.Valid())
}
