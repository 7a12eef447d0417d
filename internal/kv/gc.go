// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package kv

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
)

// GCLoop runs value log garbage collection on an interval.
type GCLoop struct {
	store    *Store
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewGCLoop creates a GC loop. A non-positive interval defaults to 10 minutes.
func NewGCLoop(store *Store, interval time.Duration) *GCLoop {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCLoop{store: store, interval: interval}
}

// Start begins the background loop.
func (g *GCLoop) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.running = true
	g.mu.Unlock()

	g.wg.Add(1)
	go g.run()

	logging.Info().Dur("interval", g.interval).Msg("KV garbage collector started")
	return nil
}

// Stop halts the loop and waits for it to exit.
func (g *GCLoop) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.cancel()
	g.running = false
	g.mu.Unlock()

	g.wg.Wait()
	logging.Info().Msg("KV garbage collector stopped")
}

// IsRunning reports whether the loop is active.
func (g *GCLoop) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// LastRun returns when GC last completed.
func (g *GCLoop) LastRun() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRun
}

func (g *GCLoop) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.collect()
		}
	}
}

func (g *GCLoop) collect() {
	err := g.store.RunGC()
	metrics.RecordJobRun("kv_gc", err)
	if err != nil {
		logging.Error().Err(err).Msg("KV garbage collection failed")
	}

	g.mu.Lock()
	g.lastRun = time.Now()
	g.mu.Unlock()
}
