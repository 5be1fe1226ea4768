package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrReauthenticationRequired is terminal: renewal failed or the retried
// request was rejected again.
var ErrReauthenticationRequired = errors.New("authclient: re-authentication required")

// APIError is a non-2xx envelope returned by the server.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message) }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

type tokenPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (p tokenPayload) credentials(now time.Time) Credentials {
	return Credentials{
		AccessToken:     p.AccessToken,
		RefreshToken:    p.RefreshToken,
		ExpiresAtUnixMs: now.Add(time.Duration(p.ExpiresIn) * time.Second).UnixMilli(),
	}
}

func decode(resp *http.Response, out any) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if !env.Success || resp.StatusCode >= 300 {
		if env.Error == nil {
			return &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		}
		return env.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func postJSON(ctx context.Context, hc *http.Client, url string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return hc.Do(req)
}

// HTTPRenewer calls the server's renewal endpoint.
type HTTPRenewer struct {
	BaseURL    string
	HTTPClient *http.Client
	clock      func() time.Time
}

func (r *HTTPRenewer) Renew(ctx context.Context, refreshToken string) (Credentials, error) {
	hc := r.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := postJSON(ctx, hc, strings.TrimRight(r.BaseURL, "/")+RefreshPath, map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return Credentials{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Credentials{}, ErrRenewalRejected
	}
	var out struct {
		Tokens tokenPayload `json:"tokens"`
	}
	if err := decode(resp, &out); err != nil {
		return Credentials{}, err
	}
	now := time.Now()
	if r.clock != nil {
		now = r.clock()
	}
	return out.Tokens.credentials(now), nil
}

// Config describes a Client. Zero values pick defaults: http.DefaultClient,
// a memory-only store and a 10s renewal timeout.
type Config struct {
	BaseURL        string
	HTTPClient     *http.Client
	Sources        []Source
	RenewalTimeout time.Duration
}

// Client sends authenticated requests to an authguard server.
type Client struct {
	baseURL string
	http    *http.Client
	store   *Store
	coord   *Coordinator
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	store := NewStore(cfg.Sources...)
	renewer := &HTTPRenewer{BaseURL: base, HTTPClient: hc}
	return &Client{
		baseURL: base,
		http:    hc,
		store:   store,
		coord:   NewCoordinator(store, renewer, cfg.RenewalTimeout),
	}
}

func (c *Client) Store() *Store { return c.store }
func (c *Client) Coordinator() *Coordinator { return c.coord }

// Do sends req with the current bearer token. On a 401 it renews once and
// retries once; a second 401 or a failed renewal yields
// ErrReauthenticationRequired.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(b))
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
	}

	ctx := req.Context()
	c.coord.EnsureValid(ctx)

	resp, err := c.send(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drain(resp)

	if !c.coord.Refresh(ctx) {
		return nil, ErrReauthenticationRequired
	}
	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	resp, err = c.send(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, ErrReauthenticationRequired
	}
	return resp, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if creds, err := c.store.Load(); err == nil && creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}
	return c.http.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// Identity is the claim set returned by /v1/me.
type Identity struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Handle   string `json:"handle"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

// Login exchanges e-mail and password for a pair and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (Identity, error) {
	resp, err := postJSON(ctx, c.http, c.baseURL+"/v1/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	var out struct {
		User   Identity     `json:"user"`
		Tokens tokenPayload `json:"tokens"`
	}
	if err := decode(resp, &out); err != nil {
		return Identity{}, err
	}
	if err := c.store.Save(out.Tokens.credentials(time.Now())); err != nil {
		return Identity{}, err
	}
	return out.User, nil
}

// Me returns the server's view of the current caller.
func (c *Client) Me(ctx context.Context) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/me", nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	var out struct {
		User Identity `json:"user"`
	}
	if err := decode(resp, &out); err != nil {
		return Identity{}, err
	}
	return out.User, nil
}

// Logout clears server cookies and every local source.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := postJSON(ctx, c.http, c.baseURL+"/v1/auth/logout", struct{}{})
	if err == nil {
		drain(resp)
	}
	if clearErr := c.store.Clear(); clearErr != nil {
		return clearErr
	}
	return err
}

// TokenSource adapts the client to oauth2, renewing through the
// coordinator when the stored token is expired.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, c: c}
}

type tokenSource struct {
	ctx context.Context
	c   *Client
}

func (t *tokenSource) Token() (*oauth2.Token, error) {
	if !t.c.coord.EnsureValid(t.ctx) {
		return nil, ErrReauthenticationRequired
	}
	creds, err := t.c.store.Load()
	if err != nil {
		return nil, ErrReauthenticationRequired
	}
	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.ExpiresAt(),
	}, nil
}
