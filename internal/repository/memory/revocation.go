package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/model"
)

var _ model.RevocationStore = (*RevocationRepository)(nil)

// RevocationRepository is a process-local deny-list of token IDs.
// Expired entries are hidden on read and dropped by Purge.
type RevocationRepository struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	clock   clock.Clock
}

// NewRevocationRepository creates an empty in-memory revocation store.
func NewRevocationRepository(clk clock.Clock) *RevocationRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &RevocationRepository{
		entries: make(map[string]time.Time),
		clock:   clk,
	}
}

// Mark records jti until now+ttl. It reports whether this call created the entry.
func (r *RevocationRepository) Mark(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if expiresAt, ok := r.entries[jti]; ok && now.Before(expiresAt) {
		return false, nil
	}
	r.entries[jti] = now.Add(ttl)

	return true, nil
}

// IsMarked reports whether jti has a live entry.
func (r *RevocationRepository) IsMarked(_ context.Context, jti string) (bool, error) {
	r.mu.RLock()
	expiresAt, ok := r.entries[jti]
	r.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return r.clock.Now().Before(expiresAt), nil
}

// Purge drops expired entries and returns how many were removed.
func (r *RevocationRepository) Purge(_ context.Context) (int, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for jti, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, jti)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (r *RevocationRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
