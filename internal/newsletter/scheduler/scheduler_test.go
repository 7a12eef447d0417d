// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/newsletter"
)

type fakeRunner struct {
	mu       sync.Mutex
	due      []models.Campaign
	dueErr   error
	runErr   map[string]error
	ran      []string
	delay    time.Duration
	active   int32
	maxSeen  int32
	dueCalls int32
	deadline bool
}

func (f *fakeRunner) Due(context.Context) ([]models.Campaign, error) {
	atomic.AddInt32(&f.dueCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	due := f.due
	f.due = nil // a run consumes the due list
	return due, nil
}

func (f *fakeRunner) Run(ctx context.Context, c *models.Campaign) (*newsletter.RunResult, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := ctx.Deadline(); ok {
		f.deadline = true
	}
	f.ran = append(f.ran, c.ID)
	if err := f.runErr[c.ID]; err != nil {
		return nil, err
	}
	return &newsletter.RunResult{CampaignID: c.ID, Status: models.CampaignSent, Sent: 1}, nil
}

func (f *fakeRunner) ranIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

func newTestScheduler(r Runner, cfg Config) *Scheduler {
	logger := zerolog.Nop()
	return NewScheduler(r, &logger, cfg)
}

func campaigns(ids ...string) []models.Campaign {
	out := make([]models.Campaign, len(ids))
	for i, id := range ids {
		out[i] = models.Campaign{ID: id, Status: models.CampaignScheduled}
	}
	return out
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, Config{})
	if s.config.CheckInterval != time.Minute {
		t.Errorf("CheckInterval = %v, want 1m", s.config.CheckInterval)
	}
	if s.config.MaxConcurrentDeliveries != 5 {
		t.Errorf("MaxConcurrentDeliveries = %d, want 5", s.config.MaxConcurrentDeliveries)
	}
	if s.config.ExecutionTimeout != 30*time.Minute {
		t.Errorf("ExecutionTimeout = %v, want 30m", s.config.ExecutionTimeout)
	}
}

func TestCheckAndExecute_RunsAllDue(t *testing.T) {
	r := &fakeRunner{
		due:    campaigns("c1", "c2", "c3", "c4"),
		runErr: map[string]error{"c2": newsletter.ErrCampaignBusy, "c3": errors.New("smtp down")},
		delay:  10 * time.Millisecond,
	}
	s := newTestScheduler(r, Config{MaxConcurrentDeliveries: 2, Enabled: true})

	s.checkAndExecute(context.Background())

	if got := len(r.ranIDs()); got != 4 {
		t.Fatalf("ran %d campaigns, want 4", got)
	}
	if got := atomic.LoadInt32(&r.maxSeen); got > 2 {
		t.Errorf("max concurrent runs = %d, want <= 2", got)
	}
	if !r.deadline {
		t.Error("runs did not get an execution deadline")
	}
}

func TestCheckAndExecute_DueError(t *testing.T) {
	r := &fakeRunner{dueErr: errors.New("db down")}
	s := newTestScheduler(r, Config{Enabled: true})
	s.checkAndExecute(context.Background())
	if len(r.ranIDs()) != 0 {
		t.Error("ran campaigns despite Due error")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	r := &fakeRunner{due: campaigns("c1")}
	s := newTestScheduler(r, Config{CheckInterval: 10 * time.Millisecond, Enabled: true})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}
	if !s.IsRunning() {
		t.Error("IsRunning = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&r.dueCalls) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("IsRunning = true after Stop")
	}
	if atomic.LoadInt32(&r.dueCalls) < 3 {
		t.Errorf("Due called %d times, want >= 3", r.dueCalls)
	}
	if ids := r.ranIDs(); len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("ran = %v, want [c1]", ids)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestScheduler_Disabled(t *testing.T) {
	r := &fakeRunner{due: campaigns("c1")}
	s := newTestScheduler(r, Config{CheckInterval: 5 * time.Millisecond, Enabled: false})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := atomic.LoadInt32(&r.dueCalls); n != 0 {
		t.Errorf("disabled scheduler called Due %d times", n)
	}
}

func TestScheduler_ContextCancel(t *testing.T) {
	r := &fakeRunner{}
	s := newTestScheduler(r, Config{CheckInterval: time.Hour, Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop did not exit on context cancel")
	}
	_ = s.Stop()
}
