// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package services

import (
	"context"
	"fmt"
)

// NewsletterSchedulerManager is satisfied by *scheduler.Scheduler.
type NewsletterSchedulerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewsletterSchedulerService adapts the campaign scheduler's Start/Stop
// lifecycle to suture. Stop waits for in-flight campaign runs.
type NewsletterSchedulerService struct {
	manager NewsletterSchedulerManager
	name    string
}

// NewNewsletterSchedulerService wraps manager.
func NewNewsletterSchedulerService(manager NewsletterSchedulerManager) *NewsletterSchedulerService {
	return &NewsletterSchedulerService{manager: manager, name: "newsletter-scheduler"}
}

// Serve implements suture.Service. A failed Start is returned so the
// supervisor retries with backoff.
func (s *NewsletterSchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("newsletter scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("newsletter scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *NewsletterSchedulerService) String() string {
	return s.name
}

// GCLoop is satisfied by *kv.GCLoop.
type GCLoop interface {
	Start(ctx context.Context) error
	Stop()
}

// KVGCService runs Badger value log garbage collection for the cart and
// session store.
type KVGCService struct {
	loop GCLoop
}

// NewKVGCService wraps loop.
func NewKVGCService(loop GCLoop) *KVGCService {
	return &KVGCService{loop: loop}
}

// Serve implements suture.Service.
func (s *KVGCService) Serve(ctx context.Context) error {
	if err := s.loop.Start(ctx); err != nil {
		return fmt.Errorf("kv gc start failed: %w", err)
	}
	<-ctx.Done()
	s.loop.Stop()
	return ctx.Err()
}

func (s *KVGCService) String() string {
	return "kv-gc"
}
