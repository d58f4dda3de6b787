package client

import (
	"sync"

	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// Session is the client-side view of the current login. The token is
// persisted through a TokenSlot; the profile is kept in memory only.
//
// Every login and reset starts a new generation. Results of requests issued
// under an older generation are discarded so that a reset can never be
// undone by a late response.
type Session struct {
	mu         sync.Mutex
	slot       TokenSlot
	token      string
	profile    *model.Profile
	generation uint64
	logger     *logger.Logger
}

// NewSession restores the token from slot.
func NewSession(slot TokenSlot, logger *logger.Logger) *Session {
	s := &Session{slot: slot, logger: logger}

	token, err := slot.Load()
	if err != nil {
		logger.Warn("Session: failed to load token, starting logged out", "error", err.Error())
		s.clearSlot()
		return s
	}
	s.token = token

	return s
}

// Token returns the current bearer token or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsLoggedIn reports whether a token is held.
func (s *Session) IsLoggedIn() bool {
	return s.Token() != ""
}

// Profile returns the cached profile, if it was fetched in this generation.
func (s *Session) Profile() (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return model.Profile{}, false
	}
	return *s.profile, true
}

// Generation identifies the current login. Capture it before a request and
// pass it back when storing the result.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) snapshot() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.generation
}

// Establish starts a new generation holding token and profile.
func (s *Session) Establish(token string, profile model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.token = token
	s.profile = &profile
	s.storeSlot(token)
}

// SetProfile caches profile unless the session moved past generation.
func (s *Session) SetProfile(generation uint64, profile model.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.token == "" {
		return false
	}
	s.profile = &profile
	return true
}

// ReplaceToken swaps in a refreshed token unless the session moved past
// generation. The cached profile is kept.
func (s *Session) ReplaceToken(generation uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.token == "" {
		return false
	}
	s.token = token
	s.storeSlot(token)
	return true
}

// Reset forgets the token and profile and starts a new generation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// ResetIf resets only while the session is still at generation and holds a
// token. It reports whether this call performed the reset, so that a burst
// of failing requests yields a single reaction.
func (s *Session) ResetIf(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.token == "" {
		return false
	}
	s.reset()
	return true
}

func (s *Session) reset() {
	s.generation++
	s.token = ""
	s.profile = nil
	s.clearSlot()
}

func (s *Session) storeSlot(token string) {
	if err := s.slot.Store(token); err != nil {
		s.logger.Warn("Session: failed to persist token", "error", err.Error())
	}
}

func (s *Session) clearSlot() {
	if err := s.slot.Clear(); err != nil {
		s.logger.Warn("Session: failed to clear stored token", "error", err.Error())
	}
}
