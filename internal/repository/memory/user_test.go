package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/model"
)

func TestUserRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(testStart)
	repo := NewUserRepository(clk)

	saved, err := repo.Create(ctx, model.User{
		Username:     "admin",
		PasswordHash: "hash",
		RealName:     "管理员",
		Status:       model.UserStatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	assert.Equal(t, testStart, saved.CreatedAt)

	byName, err := repo.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, saved, byName)

	byID, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, byID)

	_, err = repo.Create(ctx, model.User{Username: "admin"})
	assert.Error(t, err)

	loginAt := testStart.Add(time.Minute)
	require.NoError(t, repo.UpdateLoginInfo(ctx, saved.ID, loginAt, "10.0.0.1"))
	require.NoError(t, repo.UpdateAvatar(ctx, saved.ID, "avatars/1/a.png"))

	updated, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastLoginTime)
	assert.Equal(t, loginAt, *updated.LastLoginTime)
	assert.Equal(t, "10.0.0.1", updated.LastLoginIP)
	assert.Equal(t, "avatars/1/a.png", updated.Avatar)
}

func TestUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(nil)

	_, err := repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, repo.UpdateLoginInfo(ctx, 42, time.Now(), ""), model.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateAvatar(ctx, 42, "x"), model.ErrNotFound)
}
