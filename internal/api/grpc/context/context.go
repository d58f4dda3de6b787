package context

import (
	"context"
	"strconv"

	"google.golang.org/grpc/metadata"

	"github.com/dtroode/cardbook-server/internal/model"
)

// Metadata keys mirrored from the principal for downstream interceptors.
const (
	userIDKey  = "user_id"
	tokenIDKey = "token_id"
)

type principalKey struct{}

// Manager binds the authenticated principal to gRPC contexts.
type Manager struct{}

// NewManager creates a new gRPC context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetPrincipalToContext stores principal in ctx and mirrors its user and
// token IDs into the incoming metadata.
func (m *Manager) SetPrincipalToContext(ctx context.Context, principal model.Principal) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	md.Set(userIDKey, strconv.FormatInt(principal.Claims.UserID, 10))
	md.Set(tokenIDKey, principal.Claims.ID)

	ctx = metadata.NewIncomingContext(ctx, md)
	return context.WithValue(ctx, principalKey{}, principal)
}

// GetPrincipalFromContext returns the principal attached by the interceptor.
func (m *Manager) GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(model.Principal)
	return principal, ok
}

// GetUserIDFromContext reads the user ID mirrored into incoming metadata.
func (m *Manager) GetUserIDFromContext(ctx context.Context) (int64, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, false
	}

	values := md.Get(userIDKey)
	if len(values) == 0 {
		return 0, false
	}

	userID, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}
