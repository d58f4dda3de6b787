package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/cardbook-server/database"
	httpctx "github.com/dtroode/cardbook-server/internal/api/http/context"
	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/obs"
	"github.com/dtroode/cardbook-server/internal/repository/memory"
	"github.com/dtroode/cardbook-server/internal/service"
	logtest "github.com/dtroode/cardbook-server/internal/testutil"
	"github.com/dtroode/cardbook-server/internal/token"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	handler http.Handler
	clk     *clock.FakeClock
	metrics *obs.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := logtest.MakeNoopLogger()

	users := memory.NewUserRepository(clk)
	_, err := service.EnsureAccount(ctx, users, database.Account{
		Username: "admin",
		Password: "123456",
		Email:    "admin@example.com",
		RealName: "管理员",
	})
	require.NoError(t, err)

	codec, err := token.NewJWT(token.Options{
		Secret:    "router-test-secret",
		Algorithm: "HS256",
		Lifetime:  2 * time.Hour,
		Issuer:    "business-card-system",
		Audience:  "business-card-users",
		Subject:   "business-card-auth",
	}, clk)
	require.NoError(t, err)

	metrics := obs.NewMetricsWithRegistry(prometheus.NewRegistry())
	session := service.NewSession(users, memory.NewRevocationRepository(clk), codec, nil, metrics, clk, log)
	avatars := service.NewAvatar(users, nil, 2048*1024, log)

	r := New(session, avatars, httpctx.NewManager(), Options{
		Version:        "test",
		MaxBodyBytes:   1 << 20,
		UploadMaxBytes: 2048 * 1024,
		Metrics:        metrics,
	}, log)

	return &testServer{handler: r.Register(), clk: clk, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, tok, body string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.Equal(t, rec.Code, env.Code)
	return rec.Code, env
}

func (s *testServer) login(t *testing.T, path string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, path, "", `{"username":"admin","password":"123456"}`)
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Token     string         `json:"token"`
		ExpiresIn int64          `json:"expiresIn"`
		Profile   map[string]any `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	assert.Equal(t, int64(7200), data.ExpiresIn)
	assert.Equal(t, "admin", data.Profile["username"])
	assert.NotContains(t, data.Profile, "password")
	return data.Token
}

func TestRouter_LoginWhoAmILogout(t *testing.T) {
	s := newTestServer(t)
	tok := s.login(t, "/auth/login")

	code, env := s.do(t, http.MethodGet, "/auth/whoami", tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"username":"admin"`)

	code, _ = s.do(t, http.MethodPost, "/auth/logout", tok, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/auth/whoami", tok, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/auth/refresh", tok, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/auth/logout", tok, "")
	assert.Equal(t, http.StatusOK, code, "logout is idempotent")
}

func TestRouter_Refresh(t *testing.T) {
	s := newTestServer(t)
	tok := s.login(t, "/api/v1/auth/login")

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/refresh", tok, "")
	require.Equal(t, http.StatusOK, code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	code, _ = s.do(t, http.MethodGet, "/api/v1/auth/user", tok, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/auth/user", data.Token, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_Expiry(t *testing.T) {
	s := newTestServer(t)
	tok := s.login(t, "/auth/login")

	s.clk.Advance(2 * time.Hour)
	code, _ := s.do(t, http.MethodGet, "/auth/whoami", tok, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_LoginFailures(t *testing.T) {
	s := newTestServer(t)

	code, wrongPassword := s.do(t, http.MethodPost, "/auth/login", "", `{"username":"admin","password":"654321"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, unknownUser := s.do(t, http.MethodPost, "/auth/login", "", `{"username":"nobody","password":"654321"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, wrongPassword.Message, unknownUser.Message)

	code, _ = s.do(t, http.MethodPost, "/auth/login", "", `{"username":"ad","password":"654321"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestRouter_UploadRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/upload/avatar", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/upload/avatar", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_UploadStorageDisabled(t *testing.T) {
	s := newTestServer(t)
	tok := s.login(t, "/auth/login")

	body := "--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.png\"\r\nContent-Type: image/png\r\n\r\n\x89PNG\r\n\x1a\n\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload/avatar", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_SystemRoutes(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Business Card System API", env.Message)

	code, _ = s.do(t, http.MethodGet, "/does/not/exist", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "/auth/login")
	s.do(t, http.MethodGet, "/does/not/exist", "", "")

	n, err := testutil.GatherAndCount(s.metrics.Registry(), "cardbook_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(s.metrics.Registry(), "cardbook_session_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
