package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository keeps accounts in memory. It backs the server when no
// database is configured.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[int64]model.User
	byUsername map[string]int64
	nextID     int64
	clock      clock.Clock
}

// NewUserRepository creates an empty in-memory user store.
func NewUserRepository(clk clock.Clock) *UserRepository {
	if clk == nil {
		clk = clock.Real()
	}
	return &UserRepository{
		byID:       make(map[int64]model.User),
		byUsername: make(map[string]int64),
		clock:      clk,
	}
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Create(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return model.User{}, fmt.Errorf("failed to create user: username %q already taken", user.Username)
	}

	r.nextID++
	now := r.clock.Now()
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	r.byID[user.ID] = user
	r.byUsername[user.Username] = user.ID

	return user, nil
}

func (r *UserRepository) UpdateLoginInfo(_ context.Context, id int64, at time.Time, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return model.ErrNotFound
	}
	user.LastLoginTime = &at
	user.LastLoginIP = ip
	user.UpdatedAt = r.clock.Now()
	r.byID[id] = user

	return nil
}

func (r *UserRepository) UpdateAvatar(_ context.Context, id int64, avatar string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return model.ErrNotFound
	}
	user.Avatar = avatar
	user.UpdatedAt = r.clock.Now()
	r.byID[id] = user

	return nil
}
