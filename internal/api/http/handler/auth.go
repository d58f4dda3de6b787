package handler

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/dtroode/cardbook-server/internal/api/bearer"
	"github.com/dtroode/cardbook-server/internal/api/http/response"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// SessionService is the subset of the session service used by Auth.
type SessionService interface {
	Login(ctx context.Context, credentials model.Credentials) (model.LoginResult, error)
	Logout(ctx context.Context, token string) error
	WhoAmI(ctx context.Context, token string) (model.Profile, error)
	Refresh(ctx context.Context, token string) (model.RefreshResult, error)
}

// Auth serves the session endpoints.
type Auth struct {
	session      SessionService
	maxBodyBytes int64
	trustProxy   bool
	logger       *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(session SessionService, maxBodyBytes int64, trustProxy bool, logger *logger.Logger) *Auth {
	return &Auth{
		session:      session,
		maxBodyBytes: maxBodyBytes,
		trustProxy:   trustProxy,
		logger:       logger,
	}
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

type logoutResponse struct {
	Success bool `json:"success"`
}

type whoAmIResponse struct {
	Profile model.Profile `json:"profile"`
}

type refreshResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Login handles POST /auth/login.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		h.logger.Debug("Auth handler: failed to decode login request", "error", err.Error())
		response.Error(w, http.StatusBadRequest, msgMalformedBody)
		return
	}

	result, err := h.session.Login(r.Context(), model.Credentials{
		Username:   strings.TrimSpace(req.Username),
		Password:   req.Password,
		RemoteAddr: clientIP(r, h.trustProxy),
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	response.Success(w, "login successful", loginResponse{
		Token:     result.Token,
		Profile:   result.Profile,
		ExpiresIn: result.ExpiresIn,
	})
}

// Logout handles POST /auth/logout. It succeeds whether or not a usable
// token was presented.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := bearer.FromHeader(r.Header.Get("Authorization")); ok {
		if err := h.session.Logout(r.Context(), token); err != nil {
			writeError(w, r, err, h.logger)
			return
		}
	}

	response.Success(w, "logout successful", logoutResponse{Success: true})
}

// WhoAmI handles GET /auth/whoami.
func (h *Auth) WhoAmI(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer.FromHeader(r.Header.Get("Authorization"))
	if !ok {
		response.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	profile, err := h.session.WhoAmI(r.Context(), token)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	response.Success(w, "success", whoAmIResponse{Profile: profile})
}

// Refresh handles POST /auth/refresh.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer.FromHeader(r.Header.Get("Authorization"))
	if !ok {
		response.Error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	result, err := h.session.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	response.Success(w, "token refreshed", refreshResponse{
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
