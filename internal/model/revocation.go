package model

import (
	"context"
	"time"
)

// RevocationStore is an expiring deny-list keyed by token ID.
//
// Mark reports true only for the call that created the entry. A non-positive
// ttl is a no-op that reports false. Entries become invisible to IsMarked once
// their ttl elapses.
type RevocationStore interface {
	Mark(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	IsMarked(ctx context.Context, jti string) (bool, error)
	Purge(ctx context.Context) (int, error)
}
