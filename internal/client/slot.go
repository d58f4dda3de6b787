package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dtroode/cardbook-server/internal/clock"
)

// DefaultHorizon is how long a stored token is presented before the slot
// forgets it, independent of the token's own expiry.
const DefaultHorizon = 7 * 24 * time.Hour

// TokenSlot is a durable single-value store for the bearer token.
type TokenSlot interface {
	// Load returns the stored token, or "" when the slot is empty or past its horizon.
	Load() (string, error)
	Store(token string) error
	Clear() error
}

type slotRecord struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileSlot keeps the token in a JSON file readable only by the owner.
type FileSlot struct {
	mu      sync.Mutex
	path    string
	horizon time.Duration
	clock   clock.Clock
}

var _ TokenSlot = (*FileSlot)(nil)

// NewFileSlot creates a slot backed by path. A non-positive horizon means
// DefaultHorizon.
func NewFileSlot(path string, horizon time.Duration, clk clock.Clock) *FileSlot {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &FileSlot{path: path, horizon: horizon, clock: clk}
}

// Load reads the slot. An expired record is removed.
func (s *FileSlot) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	var rec slotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("failed to decode token file: %w", err)
	}

	if !s.clock.Now().Before(rec.ExpiresAt) {
		if err := s.remove(); err != nil {
			return "", err
		}
		return "", nil
	}

	return rec.Token, nil
}

// Store writes token with a fresh horizon.
func (s *FileSlot) Store(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(slotRecord{Token: token, ExpiresAt: s.clock.Now().Add(s.horizon).UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}

// Clear removes the token file.
func (s *FileSlot) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove()
}

func (s *FileSlot) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// MemorySlot is a TokenSlot that lives as long as the process.
type MemorySlot struct {
	mu      sync.Mutex
	record  slotRecord
	horizon time.Duration
	clock   clock.Clock
}

var _ TokenSlot = (*MemorySlot)(nil)

// NewMemorySlot creates an empty in-memory slot.
func NewMemorySlot(horizon time.Duration, clk clock.Clock) *MemorySlot {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &MemorySlot{horizon: horizon, clock: clk}
}

func (s *MemorySlot) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.Token == "" || !s.clock.Now().Before(s.record.ExpiresAt) {
		s.record = slotRecord{}
		return "", nil
	}
	return s.record.Token, nil
}

func (s *MemorySlot) Store(token string) error {
	s.mu.Lock()
	s.record = slotRecord{Token: token, ExpiresAt: s.clock.Now().Add(s.horizon)}
	s.mu.Unlock()
	return nil
}

func (s *MemorySlot) Clear() error {
	s.mu.Lock()
	s.record = slotRecord{}
	s.mu.Unlock()
	return nil
}
