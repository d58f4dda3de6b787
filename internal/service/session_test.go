package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/mocks"
	"github.com/dtroode/cardbook-server/internal/model"
	"github.com/dtroode/cardbook-server/internal/repository/memory"
	"github.com/dtroode/cardbook-server/internal/testutil"
	"github.com/dtroode/cardbook-server/internal/token"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testLifetime = 2 * time.Hour

type sessionFixture struct {
	clk         *clock.FakeClock
	users       *memory.UserRepository
	revocations *memory.RevocationRepository
	codec       *token.JWT
	metrics     *recordingMetrics
	session     *Session
	admin       model.User
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *recordingMetrics) SessionOp(op, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[op+"/"+result]++
}

func (m *recordingMetrics) count(op, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[op+"/"+result]
}

func newCodec(t *testing.T, clk clock.Clock) *token.JWT {
	t.Helper()
	codec, err := token.NewJWT(token.Options{
		Secret:    "test-secret",
		Algorithm: "HS256",
		Lifetime:  testLifetime,
		Issuer:    "business-card-system",
		Audience:  "business-card-users",
		Subject:   "business-card-auth",
	}, clk)
	require.NoError(t, err)
	return codec
}

func addUser(t *testing.T, users model.UserStore, username, password string, status model.UserStatus) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := users.Create(context.Background(), model.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        username + "@example.com",
		RealName:     "管理员",
		Status:       status,
	})
	require.NoError(t, err)
	return user
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	clk := clock.Fake(testStart)
	f := &sessionFixture{
		clk:         clk,
		users:       memory.NewUserRepository(clk),
		revocations: memory.NewRevocationRepository(clk),
		codec:       newCodec(t, clk),
		metrics:     &recordingMetrics{},
	}
	f.admin = addUser(t, f.users, "admin", "123456", model.UserStatusActive)
	f.session = NewSession(f.users, f.revocations, f.codec, nil, f.metrics, clk, testutil.MakeNoopLogger())
	return f
}

func (f *sessionFixture) login(t *testing.T) string {
	t.Helper()
	res, err := f.session.Login(context.Background(), model.Credentials{
		Username:   "admin",
		Password:   "123456",
		RemoteAddr: "10.0.0.1",
	})
	require.NoError(t, err)
	return res.Token
}

func TestSession_Login(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	res, err := f.session.Login(ctx, model.Credentials{Username: "admin", Password: "123456", RemoteAddr: "10.0.0.1"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(7200), res.ExpiresIn)
	assert.Equal(t, f.admin.ID, res.Profile.ID)
	assert.Equal(t, "admin", res.Profile.Username)
	assert.Equal(t, "管理员", res.Profile.RealName)
	assert.Equal(t, "10.0.0.1", res.Profile.LastLoginIP)
	require.NotNil(t, res.Profile.LastLoginTime)
	assert.True(t, res.Profile.LastLoginTime.Equal(testStart))

	claims, err := f.codec.Decode(res.Token)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, claims.UserID)
	assert.Equal(t, testStart.Add(testLifetime), claims.ExpiresAt)

	stored, err := f.users.GetByID(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", stored.LastLoginIP)
	assert.Equal(t, 1, f.metrics.count(OpLogin, ResultOK))
}

func TestSession_Login_Rejected(t *testing.T) {
	f := newSessionFixture(t)
	addUser(t, f.users, "disabled", "123456", model.UserStatusDisabled)

	tests := []struct {
		name        string
		credentials model.Credentials
		wantErr     error
		wantField   string
	}{
		{name: "unknown user", credentials: model.Credentials{Username: "nobody", Password: "123456"}, wantErr: model.ErrInvalidCredentials},
		{name: "wrong password", credentials: model.Credentials{Username: "admin", Password: "1234567"}, wantErr: model.ErrInvalidCredentials},
		{name: "disabled account", credentials: model.Credentials{Username: "disabled", Password: "123456"}, wantErr: model.ErrAccountDisabled},
		{name: "empty username", credentials: model.Credentials{Username: "", Password: "123456"}, wantField: "username"},
		{name: "short username", credentials: model.Credentials{Username: "ab", Password: "123456"}, wantField: "username"},
		{name: "short password", credentials: model.Credentials{Username: "admin", Password: "12345"}, wantField: "password"},
		{name: "long password", credentials: model.Credentials{Username: "admin", Password: string(make([]byte, 51))}, wantField: "password"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := f.session.Login(context.Background(), tt.credentials)
			require.Error(t, err)
			assert.Empty(t, res.Token)

			if tt.wantField != "" {
				var verr *model.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSession_Login_MultibyteUsername(t *testing.T) {
	f := newSessionFixture(t)
	addUser(t, f.users, "张三丰", "123456", model.UserStatusActive)

	_, err := f.session.Login(context.Background(), model.Credentials{Username: "张三丰", Password: "123456"})
	require.NoError(t, err)
}

func TestSession_WhoAmI(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	profile, err := f.session.WhoAmI(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, profile.ID)

	for _, bad := range []string{"", "garbage", tok + "x"} {
		_, err := f.session.WhoAmI(ctx, bad)
		assert.ErrorIs(t, err, model.ErrUnauthorized, "token %q", bad)
	}
}

func TestSession_WhoAmI_Expired(t *testing.T) {
	f := newSessionFixture(t)
	tok := f.login(t)

	f.clk.Advance(testLifetime - time.Second)
	_, err := f.session.WhoAmI(context.Background(), tok)
	require.NoError(t, err)

	f.clk.Advance(time.Second)
	_, err = f.session.WhoAmI(context.Background(), tok)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestSession_LogoutRevokes(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	require.NoError(t, f.session.Logout(ctx, tok))

	_, err := f.session.WhoAmI(ctx, tok)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.session.Refresh(ctx, tok)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, f.session.Logout(ctx, tok), "logout is idempotent")
	assert.Equal(t, 1, f.revocations.Len())
}

func TestSession_LogoutEntryLivesUntilExpiry(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	f.clk.Advance(30 * time.Minute)
	require.NoError(t, f.session.Logout(ctx, tok))

	f.clk.Advance(testLifetime - 30*time.Minute - time.Second)
	n, err := f.revocations.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clk.Advance(time.Second)
	n, err = f.revocations.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSession_LogoutUndecodable(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		assert.NoError(t, f.session.Logout(ctx, tok))
	}
	assert.Zero(t, f.revocations.Len())
}

func TestSession_LogoutExpiredToken(t *testing.T) {
	f := newSessionFixture(t)
	tok := f.login(t)

	f.clk.Advance(testLifetime + time.Minute)
	require.NoError(t, f.session.Logout(context.Background(), tok))
	assert.Zero(t, f.revocations.Len())
}

func TestSession_Refresh(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	f.clk.Advance(time.Hour)
	res, err := f.session.Refresh(ctx, tok)
	require.NoError(t, err)
	assert.NotEqual(t, tok, res.Token)
	assert.Equal(t, int64(7200), res.ExpiresIn)

	oldClaims, err := f.codec.Decode(tok)
	require.NoError(t, err)
	newClaims, err := f.codec.Decode(res.Token)
	require.NoError(t, err)
	assert.NotEqual(t, oldClaims.ID, newClaims.ID)
	assert.Equal(t, oldClaims.Identity, newClaims.Identity)
	assert.Equal(t, testStart.Add(time.Hour+testLifetime), newClaims.ExpiresAt)

	_, err = f.session.WhoAmI(ctx, tok)
	assert.ErrorIs(t, err, model.ErrUnauthorized, "old token is revoked")

	profile, err := f.session.WhoAmI(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, profile.ID)

	_, err = f.session.Refresh(ctx, tok)
	assert.ErrorIs(t, err, model.ErrUnauthorized, "a token refreshes once")
	assert.Equal(t, 1, f.metrics.count(OpRefresh, ResultOK))
	assert.Equal(t, 1, f.metrics.count(OpRefresh, ResultUnauthorized))
}

func TestSession_RefreshConcurrent(t *testing.T) {
	f := newSessionFixture(t)
	tok := f.login(t)

	const workers = 16
	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.session.Refresh(context.Background(), tok)
			if err == nil {
				success.Add(1)
				return
			}
			assert.ErrorIs(t, err, model.ErrUnauthorized)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), success.Load())
}

func TestSession_Authenticate(t *testing.T) {
	f := newSessionFixture(t)
	tok := f.login(t)

	principal, err := f.session.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, principal.Claims.UserID)
	assert.Equal(t, "admin", principal.Profile.Username)
	assert.NotEmpty(t, principal.Claims.ID)
}

func mockClaims() model.Claims {
	return model.Claims{
		Identity:  model.Identity{UserID: 7, Username: "admin"},
		ID:        "jti-1",
		IssuedAt:  testStart,
		NotBefore: testStart,
		ExpiresAt: testStart.Add(testLifetime),
	}
}

func TestSession_StoreFailures(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")

	t.Run("logout mark error", func(t *testing.T) {
		codec := mocks.NewTokenCodec(t)
		revocations := mocks.NewRevocationStore(t)
		users := mocks.NewUserStore(t)
		codec.On("Decode", "tok").Return(mockClaims(), nil).Once()
		revocations.On("Mark", mock.Anything, "jti-1", testLifetime).Return(false, storeErr).Once()

		s := NewSession(users, revocations, codec, nil, nil, clock.Fake(testStart), testutil.MakeNoopLogger())
		err := s.Logout(ctx, "tok")
		require.Error(t, err)
		assert.ErrorIs(t, err, storeErr)
		assert.NotErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("whoami revocation check error", func(t *testing.T) {
		codec := mocks.NewTokenCodec(t)
		revocations := mocks.NewRevocationStore(t)
		users := mocks.NewUserStore(t)
		codec.On("Decode", "tok").Return(mockClaims(), nil).Once()
		revocations.On("IsMarked", mock.Anything, "jti-1").Return(false, storeErr).Once()

		s := NewSession(users, revocations, codec, nil, nil, clock.Fake(testStart), testutil.MakeNoopLogger())
		_, err := s.WhoAmI(ctx, "tok")
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("whoami disabled account", func(t *testing.T) {
		codec := mocks.NewTokenCodec(t)
		revocations := mocks.NewRevocationStore(t)
		users := mocks.NewUserStore(t)
		codec.On("Decode", "tok").Return(mockClaims(), nil).Once()
		revocations.On("IsMarked", mock.Anything, "jti-1").Return(false, nil).Once()
		users.On("GetByID", mock.Anything, int64(7)).Return(model.User{ID: 7, Status: model.UserStatusDisabled}, nil).Once()

		s := NewSession(users, revocations, codec, nil, nil, clock.Fake(testStart), testutil.MakeNoopLogger())
		_, err := s.WhoAmI(ctx, "tok")
		assert.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("whoami deleted account", func(t *testing.T) {
		codec := mocks.NewTokenCodec(t)
		revocations := mocks.NewRevocationStore(t)
		users := mocks.NewUserStore(t)
		codec.On("Decode", "tok").Return(mockClaims(), nil).Once()
		revocations.On("IsMarked", mock.Anything, "jti-1").Return(false, nil).Once()
		users.On("GetByID", mock.Anything, int64(7)).Return(model.User{}, model.ErrNotFound).Once()

		s := NewSession(users, revocations, codec, nil, nil, clock.Fake(testStart), testutil.MakeNoopLogger())
		_, err := s.WhoAmI(ctx, "tok")
		assert.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("login lookup error", func(t *testing.T) {
		codec := mocks.NewTokenCodec(t)
		revocations := mocks.NewRevocationStore(t)
		users := mocks.NewUserStore(t)
		users.On("GetByUsername", mock.Anything, "admin").Return(model.User{}, storeErr).Once()

		s := NewSession(users, revocations, codec, nil, nil, clock.Fake(testStart), testutil.MakeNoopLogger())
		_, err := s.Login(ctx, model.Credentials{Username: "admin", Password: "123456"})
		require.Error(t, err)
		assert.ErrorIs(t, err, storeErr)
		assert.NotErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("refresh mark error", func(t *testing.T) {
		codec := mocks.NewTokenCodec(t)
		revocations := mocks.NewRevocationStore(t)
		users := mocks.NewUserStore(t)
		codec.On("Decode", "tok").Return(mockClaims(), nil).Once()
		revocations.On("IsMarked", mock.Anything, "jti-1").Return(false, nil).Once()
		users.On("GetByID", mock.Anything, int64(7)).Return(model.User{ID: 7, Status: model.UserStatusActive}, nil).Once()
		revocations.On("Mark", mock.Anything, "jti-1", testLifetime).Return(false, storeErr).Once()

		s := NewSession(users, revocations, codec, nil, nil, clock.Fake(testStart), testutil.MakeNoopLogger())
		_, err := s.Refresh(ctx, "tok")
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrUnauthorized)
	})
}

func TestSession_LoginInfoFailureIsTolerated(t *testing.T) {
	clk := clock.Fake(testStart)
	users := mocks.NewUserStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	require.NoError(t, err)

	users.On("GetByUsername", mock.Anything, "admin").
		Return(model.User{ID: 7, Username: "admin", PasswordHash: string(hash), Status: model.UserStatusActive}, nil).Once()
	users.On("UpdateLoginInfo", mock.Anything, int64(7), testStart, "10.0.0.1").Return(errors.New("read-only")).Once()

	s := NewSession(users, memory.NewRevocationRepository(clk), newCodec(t, clk), nil, nil, clk, testutil.MakeNoopLogger())
	res, err := s.Login(context.Background(), model.Credentials{Username: "admin", Password: "123456", RemoteAddr: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Nil(t, res.Profile.LastLoginTime)
}

func TestSession_Audit(t *testing.T) {
	clk := clock.Fake(testStart)
	users := memory.NewUserRepository(clk)
	addUser(t, users, "admin", "123456", model.UserStatusActive)
	audit := mocks.NewAuditPublisher(t)

	actions := func(action model.AuditAction) interface{} {
		return mock.MatchedBy(func(e model.AuditEvent) bool {
			return e.Action == action && e.OccurredAt.Equal(testStart)
		})
	}
	audit.On("Publish", mock.Anything, actions(model.AuditLoginFailed)).Return(nil).Once()
	audit.On("Publish", mock.Anything, actions(model.AuditLoginSucceeded)).Return(errors.New("broker down")).Once()
	audit.On("Publish", mock.Anything, actions(model.AuditRefreshed)).Return(nil).Once()
	audit.On("Publish", mock.Anything, actions(model.AuditRefreshRejected)).Return(nil).Once()
	audit.On("Publish", mock.Anything, actions(model.AuditLogout)).Return(nil).Once()

	s := NewSession(users, memory.NewRevocationRepository(clk), newCodec(t, clk), audit, nil, clk, testutil.MakeNoopLogger())
	ctx := context.Background()

	_, err := s.Login(ctx, model.Credentials{Username: "admin", Password: "wrong-password"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	res, err := s.Login(ctx, model.Credentials{Username: "admin", Password: "123456"})
	require.NoError(t, err, "audit failures do not fail login")

	refreshed, err := s.Refresh(ctx, res.Token)
	require.NoError(t, err)

	_, err = s.Refresh(ctx, res.Token)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, s.Logout(ctx, refreshed.Token))
}
