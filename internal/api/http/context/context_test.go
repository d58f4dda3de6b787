package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtroode/cardbook-server/internal/model"
)

func TestManager(t *testing.T) {
	m := NewManager()

	_, ok := m.GetPrincipalFromContext(context.Background())
	assert.False(t, ok)

	principal := model.Principal{
		Claims:  model.Claims{ID: "jti-1", Identity: model.Identity{UserID: 7}},
		Profile: model.Profile{ID: 7, Username: "admin"},
	}
	ctx := m.SetPrincipalToContext(context.Background(), principal)

	got, ok := m.GetPrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, principal, got)
}
