package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/cardbook-server/database"
	"github.com/dtroode/cardbook-server/internal/model"
)

// EnsureAccount creates account in userStore unless the username is taken.
// It reports whether the account was created.
func EnsureAccount(ctx context.Context, userStore model.UserStore, account database.Account) (bool, error) {
	_, err := userStore.GetByUsername(ctx, account.Username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return false, fmt.Errorf("failed to get user by username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash seed password: %w", err)
	}

	_, err = userStore.Create(ctx, model.User{
		Username:     account.Username,
		PasswordHash: string(hash),
		Email:        account.Email,
		RealName:     account.RealName,
		Status:       model.UserStatusActive,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create seed account: %w", err)
	}

	return true, nil
}
