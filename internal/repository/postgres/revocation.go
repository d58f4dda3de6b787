package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/model"
)

var _ model.RevocationStore = (*RevocationRepository)(nil)

// RevocationRepository keeps revoked token IDs in the revoked_tokens table.
// The primary key on jti makes Mark an atomic check-and-set.
type RevocationRepository struct {
	db    *Connection
	clock clock.Clock
}

func NewRevocationRepository(db *Connection, clk clock.Clock) *RevocationRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &RevocationRepository{
		db:    db,
		clock: clk,
	}
}

func (r *RevocationRepository) Mark(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}

	now := r.clock.Now()
	// An expired row that was not purged yet may be taken over.
	query := `INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
			  ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at
			  WHERE revoked_tokens.expires_at <= $3`

	tag, err := r.db.Exec(ctx, query, jti, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to mark token: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *RevocationRepository) IsMarked(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expires_at > $2)`

	var marked bool
	if err := r.db.QueryRow(ctx, query, jti, r.clock.Now()).Scan(&marked); err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}

	return marked, nil
}

func (r *RevocationRepository) Purge(ctx context.Context) (int, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at <= $1`

	tag, err := r.db.Exec(ctx, query, r.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
