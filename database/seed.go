package database

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Account is the initial administrator inserted by Seed.
type Account struct {
	Username string
	Password string
	Email    string
	RealName string
}

const seedQuery = `INSERT INTO users (username, password, email, real_name, status)
	VALUES ($1, $2, $3, $4, 1)
	ON CONFLICT (username) DO NOTHING`

// Seed inserts account unless a user with the same username exists.
// It reports whether a row was inserted.
func Seed(ctx context.Context, db *sql.DB, account Account) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash seed password: %w", err)
	}

	res, err := db.ExecContext(ctx, seedQuery, account.Username, string(hash), account.Email, account.RealName)
	if err != nil {
		return false, fmt.Errorf("failed to seed account: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read seed result: %w", err)
	}

	return n == 1, nil
}
