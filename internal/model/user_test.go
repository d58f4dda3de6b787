package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_Active(t *testing.T) {
	assert.True(t, User{Status: UserStatusActive}.Active())
	assert.False(t, User{Status: UserStatusDisabled}.Active())
	assert.False(t, User{Status: 7}.Active())
}

func TestUser_ProfileOmitsPassword(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := User{
		ID:            1,
		Username:      "admin",
		PasswordHash:  "$2a$10$secret",
		RealName:      "管理员",
		Status:        UserStatusActive,
		LastLoginTime: &at,
		LastLoginIP:   "127.0.0.1",
	}

	p := u.Profile()
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "管理员", p.RealName)
	assert.Equal(t, &at, p.LastLoginTime)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
	assert.Contains(t, string(data), `"real_name":"管理员"`)
}

func TestValidationError(t *testing.T) {
	var err error = NewValidationError("username", "must be 3 to 50 characters")
	assert.EqualError(t, err, "username: must be 3 to 50 characters")

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "username", ve.Field)
}
