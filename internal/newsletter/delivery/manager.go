// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/souq/internal/metrics"
)

// Manager delivers batches of messages through one channel.
// It handles retry logic, parallel delivery and send throttling.
type Manager struct {
	channel     Channel
	logger      zerolog.Logger
	limiter     *rate.Limiter
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	parallelism int
}

// ManagerConfig contains configuration for the delivery manager.
type ManagerConfig struct {
	// MaxRetries is the maximum number of retry attempts for transient errors.
	MaxRetries int

	// BaseDelay is the initial delay between retries.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Parallelism is the maximum number of concurrent sends.
	Parallelism int

	// RatePerSecond limits sends across all workers. 0 disables throttling.
	RatePerSecond float64
}

// DefaultManagerConfig returns a default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxRetries:    3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		Parallelism:   10,
		RatePerSecond: 10,
	}
}

// NewManager creates a delivery manager for channel.
func NewManager(channel Channel, logger *zerolog.Logger, config ManagerConfig) *Manager {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 10
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RatePerSecond > 0 {
		burst := int(config.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}

	return &Manager{
		channel:     channel,
		logger:      logger.With().Str("component", "newsletter-delivery").Str("channel", channel.Name()).Logger(),
		limiter:     limiter,
		maxRetries:  config.MaxRetries,
		baseDelay:   config.BaseDelay,
		maxDelay:    config.MaxDelay,
		parallelism: config.Parallelism,
	}
}

// Channel returns the channel messages are sent through.
func (m *Manager) Channel() Channel {
	return m.channel
}

// Report aggregates the results of a batch.
type Report struct {
	// Results holds one result per message, in input order.
	Results     []Result
	Successful  int
	Failed      int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Deliver sends every message and waits for all of them. A cancelled
// context fails the messages that were not sent yet.
func (m *Manager) Deliver(ctx context.Context, msgs []*Message) *Report {
	report := &Report{Results: make([]Result, len(msgs)), StartedAt: time.Now()}
	if len(msgs) == 0 {
		report.CompletedAt = report.StartedAt
		return report
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := m.parallelism
	if workers > len(msgs) {
		workers = len(msgs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report.Results[idx] = m.deliverOne(ctx, msgs[idx])
			}
		}()
	}
	for i := range msgs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i := range report.Results {
		status := "sent"
		if report.Results[i].Success {
			report.Successful++
		} else {
			report.Failed++
			status = "failed"
		}
		metrics.NewsletterDeliveries.WithLabelValues(m.channel.Name(), status).Inc()
	}
	report.CompletedAt = time.Now()

	m.logger.Info().
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Dur("duration", report.CompletedAt.Sub(report.StartedAt)).
		Msg("newsletter batch delivered")
	return report
}

// deliverOne sends one message, retrying transient failures.
func (m *Manager) deliverOne(ctx context.Context, msg *Message) Result {
	var last *Result
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			delay := m.calculateBackoff(attempt, last)
			m.logger.Debug().Str("recipient", msg.To).Int("attempt", attempt).Dur("delay", delay).
				Msg("retrying delivery after delay")
			select {
			case <-ctx.Done():
				return canceled(msg, attempt)
			case <-time.After(delay):
			}
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return canceled(msg, attempt)
		}

		result, err := m.channel.Send(ctx, msg)
		if err != nil {
			m.logger.Error().Err(err).Str("recipient", msg.To).Int("attempt", attempt).Msg("channel send error")
			result = &Result{Recipient: msg.To, ErrorMessage: err.Error(), ErrorCode: ErrorCodeUnknown}
		}
		result.Attempts = attempt + 1
		last = result

		if result.Success {
			return *result
		}
		if !result.IsTransient {
			m.logger.Warn().Str("recipient", msg.To).Str("error", result.ErrorMessage).
				Str("error_code", result.ErrorCode).Msg("permanent delivery error, not retrying")
			return *result
		}
	}
	m.logger.Warn().Str("recipient", msg.To).Str("error", last.ErrorMessage).Msg("delivery failed after retries")
	return *last
}

func canceled(msg *Message, attempts int) Result {
	return Result{Recipient: msg.To, ErrorMessage: "delivery canceled", ErrorCode: ErrorCodeCanceled, Attempts: attempts}
}

// calculateBackoff returns the delay before the given retry attempt.
func (m *Manager) calculateBackoff(attempt int, last *Result) time.Duration {
	if last != nil && last.RetryAfter != nil {
		return *last.RetryAfter
	}
	delay := m.baseDelay * (1 << uint(attempt-1))
	if delay > m.maxDelay || delay <= 0 {
		delay = m.maxDelay
	}
	return delay
}
