// Package client is the consumer side of the session API: it keeps the
// token, attaches it to requests and guards navigation into protected views.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// APIError is a non-success envelope returned by the server.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Unauthorized reports whether the server rejected the credential.
func (e *APIError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	LoginView string
	Timeout   time.Duration
	// Base is the underlying round tripper. Nil means http.DefaultTransport.
	Base      http.RoundTripper
	Navigator Navigator
	Notifier  Notifier
}

// Client calls the session endpoints on behalf of a Session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	logger  *logger.Logger
}

// New creates a Client whose requests go through a session Transport.
func New(session *Session, opts Options, logger *logger.Logger) *Client {
	transport := NewTransport(otelhttp.NewTransport(opts.Base), session, opts.Navigator, opts.Notifier, opts.LoginView, logger)
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		session: session,
		logger:  logger,
	}
}

// Session returns the session the client acts for.
func (c *Client) Session() *Session {
	return c.session
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	Profile   model.Profile `json:"profile"`
	ExpiresIn int64         `json:"expiresIn"`
}

type whoAmIResponse struct {
	Profile model.Profile `json:"profile"`
}

type refreshResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Login exchanges credentials for a token and starts a new session.
func (c *Client) Login(ctx context.Context, username, password string) (model.Profile, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, &out); err != nil {
		return model.Profile{}, err
	}

	c.session.Establish(out.Token, out.Profile)
	return out.Profile, nil
}

// Logout revokes the token on the server. The local session is reset even
// when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.session.Reset()

	if !c.session.IsLoggedIn() {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// WhoAmI fetches the profile of the token holder and caches it.
func (c *Client) WhoAmI(ctx context.Context) (model.Profile, error) {
	generation := c.session.Generation()

	var out whoAmIResponse
	if err := c.do(ctx, http.MethodGet, "/auth/whoami", nil, &out); err != nil {
		return model.Profile{}, err
	}

	if !c.session.SetProfile(generation, out.Profile) {
		c.logger.Debug("Client: discarded stale profile")
	}
	return out.Profile, nil
}

// Refresh exchanges the current token for a new one. It returns the new
// token lifetime in seconds.
func (c *Client) Refresh(ctx context.Context) (int64, error) {
	generation := c.session.Generation()

	var out refreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &out); err != nil {
		return 0, err
	}

	if !c.session.ReplaceToken(generation, out.Token) {
		c.logger.Debug("Client: discarded stale refreshed token")
	}
	return out.ExpiresIn, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK {
		code := env.Code
		if code == 0 || code == http.StatusOK {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
