// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/kv"
	"github.com/tomtom215/souq/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// memoryUsers mirrors the DuckDB user repository semantics.
type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	touched map[string]int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*models.User{}, touched: map[string]int{}}
}

func (m *memoryUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = database.NormalizeEmail(u.Email)
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return database.ErrDuplicate
		}
	}
	u.ID = uuid.New().String()
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	stored := *u
	m.byID[u.ID] = &stored
	return nil
}

func (m *memoryUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memoryUsers) UpdateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[u.ID]
	if !ok {
		return database.ErrNotFound
	}
	hash := existing.PasswordHash
	if u.PasswordHash != "" {
		hash = u.PasswordHash
	}
	stored := *u
	stored.PasswordHash = hash
	m.byID[u.ID] = &stored
	return nil
}

func (m *memoryUsers) TouchLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[id]++
	return nil
}

type testEnv struct {
	users    *memoryUsers
	sessions SessionStore
	tokens   *TokenManager
	service  *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	users := newMemoryUsers()
	sessions := NewMemorySessionStore()
	lockout := NewLockoutManager(store, LockoutConfig{
		MaxAttempts:     3,
		LockoutDuration: time.Minute,
		Enabled:         true,
	})
	svc := NewService(users, sessions, tokens, lockout, ServiceConfig{
		MinPasswordLength: 8,
		SessionTTL:        time.Hour,
		BcryptCost:        bcrypt.MinCost,
	})
	return &testEnv{users: users, sessions: sessions, tokens: tokens, service: svc}
}

func (e *testEnv) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := e.service.Register(context.Background(), Registration{Email: email, Name: "Test", Password: password})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return u
}
