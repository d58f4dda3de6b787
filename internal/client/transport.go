package client

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/dtroode/cardbook-server/internal/api/bearer"
	"github.com/dtroode/cardbook-server/internal/logger"
)

// User-visible notices.
const (
	NoticeSessionExpired = "session expired, please log in again"
	NoticeLoginRequired  = "please log in first"
)

// maxPeek bounds how much of a JSON body is buffered to read the envelope code.
const maxPeek = 1 << 20

// Navigator moves the user interface to a view.
type Navigator interface {
	Redirect(view string)
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(message string)
}

// Transport attaches the session token to outgoing requests and resets the
// session when the server rejects it.
type Transport struct {
	base      http.RoundTripper
	session   *Session
	navigator Navigator
	notifier  Notifier
	loginView string
	logger    *logger.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base. A nil base means http.DefaultTransport.
func NewTransport(base http.RoundTripper, session *Session, navigator Navigator, notifier Notifier, loginView string, logger *logger.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		session:   session,
		navigator: navigator,
		notifier:  notifier,
		loginView: loginView,
		logger:    logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, generation := t.session.snapshot()
	if token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", bearer.Header(token))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// A request sent without a token cannot have been rejected for it.
	if token != "" && t.unauthorized(resp) {
		t.expire(generation)
	}

	return resp, nil
}

func (t *Transport) expire(generation uint64) {
	if !t.session.ResetIf(generation) {
		return
	}

	t.logger.Info("Session: token rejected by server, session reset")
	if t.navigator != nil {
		t.navigator.Redirect(t.loginView)
	}
	if t.notifier != nil {
		t.notifier.Notify(NoticeSessionExpired)
	}
}

// unauthorized reports an HTTP 401 or an envelope carrying code 401. The
// body is restored for the caller.
func (t *Transport) unauthorized(resp *http.Response) bool {
	if resp.StatusCode == http.StatusUnauthorized {
		return true
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" || resp.Body == nil {
		return false
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, maxPeek))
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), resp.Body), resp.Body}
	if err != nil {
		return false
	}

	var env struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(head, &env); err != nil {
		return false
	}
	return env.Code == http.StatusUnauthorized
}
