// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/souq/internal/kv"
	"github.com/tomtom215/souq/internal/logging"
)

// ErrAccountLocked is returned when authentication is blocked due to lockout.
var ErrAccountLocked = errors.New("account temporarily locked due to too many failed attempts")

const lockoutKeyPrefix = "lockout:"

// LockoutConfig holds configuration for the account lockout system.
type LockoutConfig struct {
	// MaxAttempts is the number of failed attempts before lockout.
	MaxAttempts int

	// LockoutDuration is the base lockout period. It doubles with every
	// further lockout, up to MaxLockoutDuration.
	LockoutDuration    time.Duration
	MaxLockoutDuration time.Duration

	// AttemptWindow is how long failed attempts are remembered.
	AttemptWindow time.Duration

	Enabled bool
}

// DefaultLockoutConfig returns sensible defaults.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:        5,
		LockoutDuration:    5 * time.Minute,
		MaxLockoutDuration: 24 * time.Hour,
		AttemptWindow:      time.Hour,
		Enabled:            true,
	}
}

// LockoutEntry tracks failed login attempts for one email address.
type LockoutEntry struct {
	Subject        string    `json:"subject"`
	FailedAttempts int       `json:"failed_attempts"`
	LockoutCount   int       `json:"lockout_count"`
	LastAttempt    time.Time `json:"last_attempt"`
	LockedUntil    time.Time `json:"locked_until"`
	LastFailedIP   string    `json:"last_failed_ip,omitempty"`
}

// IsLocked returns true if the entry is currently locked out.
func (e *LockoutEntry) IsLocked() bool {
	return time.Now().Before(e.LockedUntil)
}

// LockoutManager counts failed logins in the KV store.
type LockoutManager struct {
	config LockoutConfig
	store  *kv.Store
	mu     sync.Mutex
}

// NewLockoutManager creates a lockout manager. A nil store disables lockout.
func NewLockoutManager(store *kv.Store, config LockoutConfig) *LockoutManager {
	if store == nil {
		config.Enabled = false
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = 5 * time.Minute
	}
	if config.MaxLockoutDuration < config.LockoutDuration {
		config.MaxLockoutDuration = config.LockoutDuration
	}
	if config.AttemptWindow <= 0 {
		config.AttemptWindow = time.Hour
	}
	return &LockoutManager{config: config, store: store}
}

func (m *LockoutManager) entry(ctx context.Context, subject string) (*LockoutEntry, error) {
	var entry LockoutEntry
	err := m.store.Get(ctx, lockoutKeyPrefix+subject, &entry)
	if errors.Is(err, kv.ErrNotFound) {
		return &LockoutEntry{Subject: subject}, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CheckLocked reports whether subject is locked and for how long.
func (m *LockoutManager) CheckLocked(ctx context.Context, subject string) (bool, time.Duration, error) {
	if !m.config.Enabled {
		return false, 0, nil
	}
	entry, err := m.entry(ctx, subject)
	if err != nil {
		return false, 0, fmt.Errorf("check lockout: %w", err)
	}
	if !entry.IsLocked() {
		return false, 0, nil
	}
	return true, time.Until(entry.LockedUntil), nil
}

// lockoutDuration doubles the base period for every previous lockout.
func (m *LockoutManager) lockoutDuration(lockoutCount int) time.Duration {
	d := m.config.LockoutDuration
	for i := 0; i < lockoutCount && d < m.config.MaxLockoutDuration; i++ {
		d *= 2
	}
	if d > m.config.MaxLockoutDuration {
		d = m.config.MaxLockoutDuration
	}
	return d
}

// RecordFailedAttempt counts a failure and reports whether subject is now
// locked.
func (m *LockoutManager) RecordFailedAttempt(ctx context.Context, subject, ip string) (bool, time.Duration, error) {
	if !m.config.Enabled {
		return false, 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.entry(ctx, subject)
	if err != nil {
		return false, 0, fmt.Errorf("record failed attempt: %w", err)
	}
	if entry.IsLocked() {
		return true, time.Until(entry.LockedUntil), nil
	}

	now := time.Now()
	entry.FailedAttempts++
	entry.LastAttempt = now
	entry.LastFailedIP = ip

	locked := false
	var remaining time.Duration
	if entry.FailedAttempts >= m.config.MaxAttempts {
		remaining = m.lockoutDuration(entry.LockoutCount)
		entry.LockedUntil = now.Add(remaining)
		entry.LockoutCount++
		entry.FailedAttempts = 0
		locked = true

		logging.Warn().
			Str("subject", subject).
			Str("ip", ip).
			Dur("duration", remaining).
			Int("lockout_count", entry.LockoutCount).
			Msg("Account locked")
	}

	ttl := m.config.AttemptWindow + m.config.MaxLockoutDuration
	if err := m.store.Set(ctx, lockoutKeyPrefix+subject, entry, ttl); err != nil {
		return false, 0, fmt.Errorf("save lockout entry: %w", err)
	}
	return locked, remaining, nil
}

// RecordSuccessfulLogin clears the failure count for subject.
func (m *LockoutManager) RecordSuccessfulLogin(ctx context.Context, subject string) error {
	if !m.config.Enabled {
		return nil
	}
	return m.store.Delete(ctx, lockoutKeyPrefix+subject)
}
