package middleware

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/cardbook-server/internal/api/bearer"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// Authenticator resolves bearer tokens into principals.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

// Authenticate validates bearer tokens and injects the principal into context.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authenticator Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, contextManager: contextManager, logger: logger}
}

// AuthFunc parses the authorization metadata, validates the token and returns
// a context carrying the principal.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}
	}

	token, ok := bearer.FromHeader(header)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}

	principal, err := m.authenticator.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		m.logger.Error("gRPC authenticate: failed to authenticate request",
			"error", err.Error())
		return nil, status.Error(codes.Internal, "internal error")
	}

	return m.contextManager.SetPrincipalToContext(ctx, principal), nil
}
