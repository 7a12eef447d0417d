// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/souq/internal/kv"
	"github.com/tomtom215/souq/internal/models"
)

func sessionStores(t *testing.T) map[string]SessionStore {
	t.Helper()
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return map[string]SessionStore{
		"memory": NewMemorySessionStore(),
		"badger": NewBadgerSessionStore(store),
	}
}

func testSession(userID string, ttl time.Duration) *Session {
	return NewSession(&models.User{ID: userID, Email: userID + "@example.com", Role: models.RoleCustomer}, ttl)
}

func TestSessionStore_CreateGetDelete(t *testing.T) {
	t.Parallel()
	for name, store := range sessionStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := testSession("user-1", time.Hour)
			s.IP = "10.0.0.1"

			if err := store.Create(ctx, s); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			got, err := store.Get(ctx, s.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.UserID != "user-1" || got.Role != models.RoleCustomer || got.IP != "10.0.0.1" {
				t.Errorf("Get() = %+v", got)
			}

			if err := store.Delete(ctx, s.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrSessionNotFound", err)
			}
			if err := store.Delete(ctx, "missing"); err != nil {
				t.Errorf("Delete(missing) error = %v", err)
			}
		})
	}
}

func TestSessionStore_ByUser(t *testing.T) {
	t.Parallel()
	for name, store := range sessionStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				if err := store.Create(ctx, testSession("alice", time.Hour)); err != nil {
					t.Fatal(err)
				}
			}
			other := testSession("bob", time.Hour)
			if err := store.Create(ctx, other); err != nil {
				t.Fatal(err)
			}

			sessions, err := store.GetByUserID(ctx, "alice")
			if err != nil {
				t.Fatalf("GetByUserID() error = %v", err)
			}
			if len(sessions) != 3 {
				t.Errorf("GetByUserID() = %d sessions, want 3", len(sessions))
			}

			n, err := store.DeleteByUserID(ctx, "alice")
			if err != nil || n != 3 {
				t.Errorf("DeleteByUserID() = %d, %v, want 3, nil", n, err)
			}
			if _, err := store.Get(ctx, other.ID); err != nil {
				t.Errorf("other user's session was removed: %v", err)
			}
		})
	}
}

func TestSessionStore_TouchExtends(t *testing.T) {
	t.Parallel()
	for name, store := range sessionStores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := testSession("carol", time.Minute)
			if err := store.Create(ctx, s); err != nil {
				t.Fatal(err)
			}
			newExpiry := time.Now().Add(2 * time.Hour)
			if err := store.Touch(ctx, s.ID, newExpiry); err != nil {
				t.Fatalf("Touch() error = %v", err)
			}
			got, err := store.Get(ctx, s.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.ExpiresAt.Before(newExpiry.Add(-time.Second)) {
				t.Errorf("ExpiresAt = %v, want about %v", got.ExpiresAt, newExpiry)
			}
			if err := store.Touch(ctx, "missing", newExpiry); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Touch(missing) error = %v, want ErrSessionNotFound", err)
			}
		})
	}
}

func TestMemorySessionStore_ExpiredAndCleanup(t *testing.T) {
	t.Parallel()
	store := NewMemorySessionStore()
	ctx := context.Background()

	expired := testSession("dave", time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.Create(ctx, expired); err != nil {
		t.Fatal(err)
	}
	live := testSession("dave", time.Hour)
	if err := store.Create(ctx, live); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, expired.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Get(expired) error = %v, want ErrSessionExpired", err)
	}
	n, err := store.CleanupExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("CleanupExpired() = %d, %v, want 1, nil", n, err)
	}
	if _, err := store.Get(ctx, live.ID); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}

func TestBadgerSessionStore_RejectsExpiredCreate(t *testing.T) {
	t.Parallel()
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s := testSession("erin", time.Hour)
	s.ExpiresAt = time.Now().Add(-time.Second)
	if err := NewBadgerSessionStore(store).Create(context.Background(), s); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Create(expired) error = %v, want ErrSessionExpired", err)
	}
}

func TestNewSessionStore(t *testing.T) {
	t.Parallel()
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	tests := []struct {
		kind    string
		kv      *kv.Store
		wantErr bool
	}{
		{"badger", store, false},
		{"", store, false},
		{"memory", nil, false},
		{"badger", nil, true},
		{"redis", store, true},
	}
	for _, tt := range tests {
		_, err := NewSessionStore(tt.kind, tt.kv)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewSessionStore(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
		}
	}
}
