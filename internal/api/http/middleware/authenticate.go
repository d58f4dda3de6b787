package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/dtroode/cardbook-server/internal/api/bearer"
	"github.com/dtroode/cardbook-server/internal/api/http/response"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// Authenticator resolves bearer tokens into principals.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

// Authenticate guards handlers that require an identity.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authenticator Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{
		authenticator:  authenticator,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Handle rejects requests without a usable bearer token and passes the rest
// on with the principal attached to the request context.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer.FromHeader(r.Header.Get("Authorization"))
		if !ok {
			response.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		principal, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, model.ErrUnauthorized) {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			m.logger.Error("HTTP authenticate: failed to authenticate request",
				"path", r.URL.Path,
				"error", err.Error())
			response.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := m.contextManager.SetPrincipalToContext(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
