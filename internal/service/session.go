package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 50
	passwordMinLen = 6
	passwordMaxLen = 50
)

// Session operation and result labels reported to SessionMetrics.
const (
	OpLogin   = "login"
	OpLogout  = "logout"
	OpWhoAmI  = "whoami"
	OpRefresh = "refresh"

	ResultOK           = "ok"
	ResultInvalid      = "invalid"
	ResultRejected     = "rejected"
	ResultUnauthorized = "unauthorized"
	ResultError        = "error"
)

// SessionMetrics counts session operation outcomes.
type SessionMetrics interface {
	SessionOp(op, result string)
}

type nopMetrics struct{}

func (nopMetrics) SessionOp(string, string) {}

// Session issues, inspects, refreshes and revokes bearer tokens.
type Session struct {
	userStore   model.UserStore
	revocations model.RevocationStore
	codec       model.TokenCodec
	audit       model.AuditPublisher
	metrics     SessionMetrics
	clock       clock.Clock
	logger      *logger.Logger
	dummyHash   []byte
}

// NewSession creates a Session. A nil audit publisher, metrics sink or clock
// is replaced with a no-op or the wall clock.
func NewSession(
	userStore model.UserStore,
	revocations model.RevocationStore,
	codec model.TokenCodec,
	audit model.AuditPublisher,
	metrics SessionMetrics,
	clk clock.Clock,
	logger *logger.Logger,
) *Session {
	if audit == nil {
		audit = model.NopAuditPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if clk == nil {
		clk = clock.Real()
	}

	// Unknown usernames are compared against this hash so that they cost
	// as much as a wrong password.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("cardbook-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Session service: failed to prepare dummy hash", "error", err.Error())
	}

	return &Session{
		userStore:   userStore,
		revocations: revocations,
		codec:       codec,
		audit:       audit,
		metrics:     metrics,
		clock:       clk,
		logger:      logger,
		dummyHash:   dummyHash,
	}
}

// Login verifies credentials and issues a token.
func (s *Session) Login(ctx context.Context, credentials model.Credentials) (model.LoginResult, error) {
	s.logger.Debug("Session service: login attempt",
		"username", credentials.Username,
		"remote_addr", credentials.RemoteAddr)

	if err := validateCredentials(credentials); err != nil {
		s.metrics.SessionOp(OpLogin, ResultInvalid)
		return model.LoginResult{}, err
	}

	user, err := s.userStore.GetByUsername(ctx, credentials.Username)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("Session service: failed to get user by username",
				"username", credentials.Username,
				"error", err.Error())
			s.metrics.SessionOp(OpLogin, ResultError)
			return model.LoginResult{}, fmt.Errorf("failed to get user by username: %w", err)
		}

		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(credentials.Password))
		s.rejectLogin(ctx, credentials, 0, "unknown_user")
		return model.LoginResult{}, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credentials.Password)); err != nil {
		s.rejectLogin(ctx, credentials, user.ID, "wrong_password")
		return model.LoginResult{}, model.ErrInvalidCredentials
	}

	if !user.Active() {
		s.rejectLogin(ctx, credentials, user.ID, "account_disabled")
		return model.LoginResult{}, model.ErrAccountDisabled
	}

	now := s.clock.Now()
	if err := s.userStore.UpdateLoginInfo(ctx, user.ID, now, credentials.RemoteAddr); err != nil {
		s.logger.Warn("Session service: failed to record login info",
			"user_id", user.ID,
			"error", err.Error())
	} else {
		user.LastLoginTime = &now
		user.LastLoginIP = credentials.RemoteAddr
	}

	token, claims, err := s.codec.Encode(identityOf(user))
	if err != nil {
		s.logger.Error("Session service: failed to encode token",
			"user_id", user.ID,
			"error", err.Error())
		s.metrics.SessionOp(OpLogin, ResultError)
		return model.LoginResult{}, fmt.Errorf("failed to encode token: %w", err)
	}

	s.publish(ctx, model.AuditEvent{
		Action:     model.AuditLoginSucceeded,
		UserID:     user.ID,
		Username:   user.Username,
		TokenID:    claims.ID,
		RemoteAddr: credentials.RemoteAddr,
	})
	s.metrics.SessionOp(OpLogin, ResultOK)

	s.logger.Info("Session service: user logged in",
		"user_id", user.ID,
		"jti", claims.ID)

	return model.LoginResult{
		Token:     token,
		Profile:   user.Profile(),
		ExpiresIn: int64(s.codec.Lifetime() / time.Second),
	}, nil
}

// Logout revokes token for the rest of its lifetime. Tokens that cannot be
// decoded are already unusable, so logging them out succeeds without effect.
func (s *Session) Logout(ctx context.Context, token string) error {
	claims, err := s.codec.Decode(token)
	if err != nil {
		s.logger.Debug("Session service: logout with undecodable token",
			"error", err.Error())
		s.metrics.SessionOp(OpLogout, ResultOK)
		return nil
	}

	ttl := claims.ExpiresAt.Sub(s.clock.Now())
	if _, err := s.revocations.Mark(ctx, claims.ID, ttl); err != nil {
		s.logger.Error("Session service: failed to revoke token",
			"jti", claims.ID,
			"error", err.Error())
		s.metrics.SessionOp(OpLogout, ResultError)
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.publish(ctx, model.AuditEvent{
		Action:   model.AuditLogout,
		UserID:   claims.UserID,
		Username: claims.Username,
		TokenID:  claims.ID,
	})
	s.metrics.SessionOp(OpLogout, ResultOK)

	s.logger.Info("Session service: user logged out",
		"user_id", claims.UserID,
		"jti", claims.ID)

	return nil
}

// WhoAmI returns the profile of the token holder.
func (s *Session) WhoAmI(ctx context.Context, token string) (model.Profile, error) {
	principal, err := s.authenticate(ctx, token)
	if err != nil {
		s.metrics.SessionOp(OpWhoAmI, resultOf(err))
		return model.Profile{}, err
	}

	s.metrics.SessionOp(OpWhoAmI, ResultOK)
	return principal.Profile, nil
}

// Authenticate resolves token into a principal. Any token that is not
// currently usable yields model.ErrUnauthorized.
func (s *Session) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	return s.authenticate(ctx, token)
}

func (s *Session) authenticate(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, model.ErrUnauthorized
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", model.ErrUnauthorized, err)
	}

	marked, err := s.revocations.IsMarked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("Session service: failed to check revocation",
			"jti", claims.ID,
			"error", err.Error())
		return model.Principal{}, fmt.Errorf("failed to check revocation: %w", err)
	}
	if marked {
		return model.Principal{}, fmt.Errorf("%w: token revoked", model.ErrUnauthorized)
	}

	user, err := s.userStore.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Principal{}, fmt.Errorf("%w: account not found", model.ErrUnauthorized)
		}
		s.logger.Error("Session service: failed to get user by id",
			"user_id", claims.UserID,
			"error", err.Error())
		return model.Principal{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	if !user.Active() {
		return model.Principal{}, fmt.Errorf("%w: account disabled", model.ErrUnauthorized)
	}

	return model.Principal{Claims: claims, Profile: user.Profile()}, nil
}

// Refresh exchanges a usable token for a new one carrying the same identity.
// The old token is revoked first, so of two concurrent refreshes of the same
// token exactly one succeeds.
func (s *Session) Refresh(ctx context.Context, token string) (model.RefreshResult, error) {
	principal, err := s.authenticate(ctx, token)
	if err != nil {
		s.rejectRefresh(ctx, principal.Claims, err)
		return model.RefreshResult{}, err
	}

	claims := principal.Claims
	ttl := claims.ExpiresAt.Sub(s.clock.Now())
	claimed, err := s.revocations.Mark(ctx, claims.ID, ttl)
	if err != nil {
		s.logger.Error("Session service: failed to revoke refreshed token",
			"jti", claims.ID,
			"error", err.Error())
		s.metrics.SessionOp(OpRefresh, ResultError)
		return model.RefreshResult{}, fmt.Errorf("failed to revoke refreshed token: %w", err)
	}
	if !claimed {
		err = fmt.Errorf("%w: token already revoked", model.ErrUnauthorized)
		s.rejectRefresh(ctx, claims, err)
		return model.RefreshResult{}, err
	}

	newToken, newClaims, err := s.codec.Encode(claims.Identity)
	if err != nil {
		s.logger.Error("Session service: failed to encode refreshed token",
			"user_id", claims.UserID,
			"error", err.Error())
		s.metrics.SessionOp(OpRefresh, ResultError)
		return model.RefreshResult{}, fmt.Errorf("failed to encode token: %w", err)
	}

	s.publish(ctx, model.AuditEvent{
		Action:   model.AuditRefreshed,
		UserID:   claims.UserID,
		Username: claims.Username,
		TokenID:  newClaims.ID,
		Reason:   "replaces " + claims.ID,
	})
	s.metrics.SessionOp(OpRefresh, ResultOK)

	s.logger.Info("Session service: token refreshed",
		"user_id", claims.UserID,
		"old_jti", claims.ID,
		"jti", newClaims.ID)

	return model.RefreshResult{
		Token:     newToken,
		ExpiresIn: int64(s.codec.Lifetime() / time.Second),
	}, nil
}

func (s *Session) rejectLogin(ctx context.Context, credentials model.Credentials, userID int64, reason string) {
	s.logger.Info("Session service: login rejected",
		"username", credentials.Username,
		"reason", reason)
	s.publish(ctx, model.AuditEvent{
		Action:     model.AuditLoginFailed,
		UserID:     userID,
		Username:   credentials.Username,
		RemoteAddr: credentials.RemoteAddr,
		Reason:     reason,
	})
	s.metrics.SessionOp(OpLogin, ResultRejected)
}

func (s *Session) rejectRefresh(ctx context.Context, claims model.Claims, err error) {
	s.metrics.SessionOp(OpRefresh, resultOf(err))
	if !errors.Is(err, model.ErrUnauthorized) {
		return
	}
	s.publish(ctx, model.AuditEvent{
		Action:   model.AuditRefreshRejected,
		UserID:   claims.UserID,
		Username: claims.Username,
		TokenID:  claims.ID,
		Reason:   err.Error(),
	})
}

func (s *Session) publish(ctx context.Context, event model.AuditEvent) {
	event.OccurredAt = s.clock.Now().UTC()
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.Warn("Session service: failed to publish audit event",
			"action", string(event.Action),
			"error", err.Error())
	}
}

func resultOf(err error) string {
	if errors.Is(err, model.ErrUnauthorized) {
		return ResultUnauthorized
	}
	return ResultError
}

func identityOf(user model.User) model.Identity {
	return model.Identity{
		UserID:   user.ID,
		Username: user.Username,
		RealName: user.RealName,
	}
}

func validateCredentials(c model.Credentials) error {
	if strings.TrimSpace(c.Username) == "" {
		return model.NewValidationError("username", "is required")
	}
	if n := utf8.RuneCountInString(c.Username); n < usernameMinLen || n > usernameMaxLen {
		return model.NewValidationError("username",
			fmt.Sprintf("must be between %d and %d characters", usernameMinLen, usernameMaxLen))
	}
	if c.Password == "" {
		return model.NewValidationError("password", "is required")
	}
	if n := utf8.RuneCountInString(c.Password); n < passwordMinLen || n > passwordMaxLen {
		return model.NewValidationError("password",
			fmt.Sprintf("must be between %d and %d characters", passwordMinLen, passwordMaxLen))
	}
	return nil
}
