// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/souq/internal/models"
)

// MemoryStore implements Store in memory. Suitable for development and
// testing. Data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.AuditEvent
	maxLen int
}

// NewMemoryStore creates an in-memory store keeping at most maxLen events.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{maxLen: maxLen}
}

// InsertAuditEvent stores e, evicting the oldest event when full.
func (s *MemoryStore) InsertAuditEvent(_ context.Context, e *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) >= s.maxLen {
		s.events = s.events[1:]
	}
	s.events = append(s.events, *e)
	return nil
}

// ListAuditEvents returns matching events, newest first.
func (s *MemoryStore) ListAuditEvents(_ context.Context, f models.AuditFilter) ([]models.AuditEvent, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.AuditEvent
	for _, e := range s.events {
		if matches(e, f) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

// DeleteAuditEventsBefore removes events older than cutoff.
func (s *MemoryStore) DeleteAuditEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, e := range s.events {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func matches(e models.AuditEvent, f models.AuditFilter) bool {
	return (f.ActorID == "" || e.ActorID == f.ActorID) &&
		(f.EntityType == "" || e.EntityType == f.EntityType) &&
		(f.EntityID == "" || e.EntityID == f.EntityID) &&
		(f.Action == "" || e.Action == f.Action)
}
