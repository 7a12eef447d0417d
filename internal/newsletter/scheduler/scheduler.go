// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package scheduler runs due newsletter campaigns.
//
// The scheduler:
//   - Runs on a configurable interval (default: 1 minute)
//   - Queries for campaigns whose scheduled_at has passed
//   - Executes each with bounded concurrency and a per-run timeout
//
// Rescheduling of recurring campaigns happens in the runner. The scheduler
// integrates with the supervisor tree for lifecycle management.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/souq/internal/metrics"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/newsletter"
)

// Runner finds and executes due campaigns. *newsletter.Service
// implements it.
type Runner interface {
	Due(ctx context.Context) ([]models.Campaign, error)
	Run(ctx context.Context, c *models.Campaign) (*newsletter.RunResult, error)
}

// Config holds configuration for the newsletter scheduler.
type Config struct {
	// CheckInterval is how often to check for due campaigns (default: 1 minute)
	CheckInterval time.Duration

	// MaxConcurrentDeliveries is the maximum number of campaigns run concurrently
	MaxConcurrentDeliveries int

	// ExecutionTimeout is the maximum time allowed for a single campaign run
	ExecutionTimeout time.Duration

	// Enabled controls whether the scheduler is active
	Enabled bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval:           time.Minute,
		MaxConcurrentDeliveries: 5,
		ExecutionTimeout:        30 * time.Minute,
		Enabled:                 true,
	}
}

// Scheduler periodically runs due campaigns.
type Scheduler struct {
	runner Runner
	logger zerolog.Logger
	config Config

	// Runtime state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a new newsletter scheduler.
func NewScheduler(runner Runner, logger *zerolog.Logger, config Config) *Scheduler {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if config.MaxConcurrentDeliveries <= 0 {
		config.MaxConcurrentDeliveries = 5
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = 30 * time.Minute
	}

	return &Scheduler{
		runner: runner,
		logger: logger.With().Str("component", "newsletter-scheduler").Logger(),
		config: config,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Newsletter scheduler disabled")
		go func() {
			defer close(s.doneCh)
			<-s.stopCh
		}()
		return nil
	}

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Int("max_concurrent", s.config.MaxConcurrentDeliveries).
		Msg("Starting newsletter scheduler")

	go s.run(ctx)
	return nil
}

// Stop stops the scheduler loop and waits for in-flight runs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping newsletter scheduler...")
	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Newsletter scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.checkAndExecute(ctx)

	for {
		select {
		case <-ticker.C:
			s.checkAndExecute(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// checkAndExecute runs every due campaign and waits for them.
func (s *Scheduler) checkAndExecute(ctx context.Context) {
	campaigns, err := s.runner.Due(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get due campaigns")
		metrics.RecordJobRun("newsletter_scheduler", err)
		return
	}
	if len(campaigns) == 0 {
		s.logger.Debug().Msg("No campaigns due")
		return
	}

	s.logger.Info().Int("count", len(campaigns)).Msg("Found campaigns due for sending")

	sem := make(chan struct{}, s.config.MaxConcurrentDeliveries)
	var wg sync.WaitGroup

	for i := range campaigns {
		wg.Add(1)
		sem <- struct{}{}

		go func(c *models.Campaign) {
			defer wg.Done()
			defer func() { <-sem }()

			execCtx, cancel := context.WithTimeout(ctx, s.config.ExecutionTimeout)
			defer cancel()

			s.execute(execCtx, c)
		}(&campaigns[i])
	}

	wg.Wait()
}

func (s *Scheduler) execute(ctx context.Context, c *models.Campaign) {
	start := time.Now()
	logger := s.logger.With().Str("campaign_id", c.ID).Logger()

	result, err := s.runner.Run(ctx, c)
	switch {
	case errors.Is(err, newsletter.ErrCampaignBusy):
		logger.Debug().Msg("Campaign already claimed by another run")
		return
	case err != nil:
		logger.Error().Err(err).Msg("Campaign run failed")
		metrics.RecordJobRun("newsletter_campaign", err)
		return
	}
	metrics.RecordJobRun("newsletter_campaign", nil)

	logger.Info().
		Str("status", result.Status).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("Newsletter campaign executed")
}
