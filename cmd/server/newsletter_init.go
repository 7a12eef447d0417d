// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package main

import (
	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/newsletter"
	"github.com/tomtom215/souq/internal/newsletter/delivery"
	"github.com/tomtom215/souq/internal/newsletter/scheduler"
)

// initNewsletter builds the newsletter service and, when enabled, the
// campaign scheduler. The service is always built: subscribe and confirm
// work even with scheduled delivery switched off.
//
// Without an SMTP host, mail is written to the log instead of sent.
func initNewsletter(cfg *config.Config, db *database.DB, languages *i18n.Registry) (*newsletter.Service, *scheduler.Scheduler) {
	logger := logging.Logger()

	var channel delivery.Channel
	if cfg.Newsletter.SMTP.Host != "" {
		channel = delivery.NewEmailChannel(cfg.Newsletter.SMTP)
		logging.Info().
			Str("host", cfg.Newsletter.SMTP.Host).
			Int("port", cfg.Newsletter.SMTP.Port).
			Msg("Newsletter mail goes out over SMTP")
	} else {
		channel = delivery.NewLogChannel()
		logging.Warn().Msg("SMTP_HOST not set, newsletter mail is logged instead of sent")
	}

	parallelism := cfg.Newsletter.MaxConcurrentDeliveries * 2
	manager := delivery.NewManager(channel, &logger, delivery.ManagerConfig{
		MaxRetries:    3,
		BaseDelay:     cfg.Newsletter.CheckInterval / 10,
		MaxDelay:      cfg.Newsletter.ExecutionTimeout / 3,
		Parallelism:   parallelism,
		RatePerSecond: cfg.Newsletter.SendRatePerSecond,
	})

	service := newsletter.NewService(db, languages, manager, newsletter.Config{
		StoreName: cfg.Store.Name,
		BaseURL:   cfg.Server.BaseURL,
	})

	if !cfg.Newsletter.Enabled {
		logging.Info().Msg("Newsletter scheduler disabled (NEWSLETTER_ENABLED=false)")
		return service, nil
	}

	logging.Info().
		Dur("check_interval", cfg.Newsletter.CheckInterval).
		Int("max_concurrent", cfg.Newsletter.MaxConcurrentDeliveries).
		Dur("execution_timeout", cfg.Newsletter.ExecutionTimeout).
		Msg("Initializing newsletter scheduler")

	sched := scheduler.NewScheduler(service, &logger, scheduler.Config{
		CheckInterval:           cfg.Newsletter.CheckInterval,
		MaxConcurrentDeliveries: cfg.Newsletter.MaxConcurrentDeliveries,
		ExecutionTimeout:        cfg.Newsletter.ExecutionTimeout,
		Enabled:                 true,
	})
	return service, sched
}
