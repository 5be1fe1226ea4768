package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "", "hash-password", "--cost", "4", "correct horse")
	require.NoError(t, err)
	digest := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(digest), []byte("correct horse")))

	out, err = run(t, "from stdin\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from stdin")))
}

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	user := map[string]any{"id": 7, "email": "ada@example.com", "handle": "ada", "role": "admin", "verified": true}
	tokens := map[string]any{"accessToken": "access-1", "refreshToken": "refresh-1", "expiresIn": 900}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"user": user, "tokens": tokens}})
	})
	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"loggedOut": true}})
	})
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			write(w, http.StatusUnauthorized, map[string]any{"success": false, "error": map[string]any{"code": "AUTHENTICATION_REQUIRED", "status": 401}})
			return
		}
		write(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"user": user}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv := apiServer(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")
	common := []string{"--server", srv.URL, "--credentials", creds}

	_, err := run(t, "", append([]string{"login"}, common...)...)
	require.Error(t, err, "flags are required")

	out, err := run(t, "", append([]string{"login", "--email", "ada@example.com", "--password", "correct horse"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ada")

	// A new process has an empty cookie jar and falls back to the file.
	out, err = run(t, "", append([]string{"whoami"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "7 ada <ada@example.com> role=admin verified\n", out)

	out, err = run(t, "", append([]string{"logout"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = run(t, "", append([]string{"whoami"}, common...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}
