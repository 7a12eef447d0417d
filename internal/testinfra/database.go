// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package testinfra

import (
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/kv"
)

// dbSemaphore is held for the whole test and released in t.Cleanup.
var dbSemaphore = make(chan struct{}, 1)

// dbMutex serializes database.New itself.
var dbMutex sync.Mutex

// NewDB returns a migrated in-memory database that is closed when the
// test ends. It fails the test if DuckDB does not start within two minutes.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	dbSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-dbSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   2,
	}

	type result struct {
		db  *database.DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		dbMutex.Lock()
		db, err := database.New(cfg)
		dbMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Logf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatal("Timed out creating test database")
		return nil
	}
}

// NewKV returns an in-memory Badger store closed at test end.
func NewKV(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory kv store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Failed to close kv store: %v", err)
		}
	})
	return store
}
