// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package kv

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/souq/internal/config"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	if _, err := Open(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := Open(&config.KVConfig{}); err == nil {
		t.Error("expected error for empty path without in_memory")
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	var got doc
	if err := s.Get(ctx, "doc:1", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "doc:1", doc{Name: "a", Count: 2}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Get(ctx, "doc:1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Errorf("Get = %+v", got)
	}

	if err := s.Delete(ctx, "doc:1", "doc:missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, "doc:1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestStore_TTLExpires(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "short", doc{Name: "x"}, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	var got doc
	if err := s.Get(ctx, "short", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get expired = %v, want ErrNotFound", err)
	}
}

func TestStore_ScanPrefix(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SetMany(ctx, map[string]interface{}{
		"a:1": doc{Name: "one"},
		"a:2": doc{Name: "two"},
		"b:1": doc{Name: "other"},
	}, 0)
	if err != nil {
		t.Fatalf("SetMany: %v", err)
	}

	var keys []string
	if err := s.Scan(ctx, "a:", func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a:1" || keys[1] != "a:2" {
		t.Errorf("Scan keys = %v", keys)
	}

	count := 0
	_ = s.Scan(ctx, "", func(string, []byte) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Scan did not stop early, visited %d", count)
	}
}

func TestStore_Closed(t *testing.T) {
	t.Parallel()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := s.Set(context.Background(), "k", 1, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after close = %v, want ErrClosed", err)
	}
}

func TestGCLoop_StartStop(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	g := NewGCLoop(s, 10*time.Millisecond)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !g.IsRunning() {
		t.Error("expected running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for g.LastRun().IsZero() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if g.LastRun().IsZero() {
		t.Error("GC never ran")
	}

	g.Stop()
	g.Stop()
	if g.IsRunning() {
		t.Error("expected stopped")
	}
}
