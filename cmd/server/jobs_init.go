// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package main

import (
	"context"
	"time"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/supervisor/services"
)

// pendingExpirer, sessionCleaner and auditCleaner are the slices of the
// order, auth and audit services the maintenance jobs use.
type pendingExpirer interface {
	ExpirePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type sessionCleaner interface {
	CleanupSessions(ctx context.Context) (int, error)
}

type auditCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// maintenanceJobs returns the cron jobs for the data layer. A job with an
// empty spec is skipped by the jobs service.
func maintenanceJobs(cfg *config.Config, orders pendingExpirer, sessions sessionCleaner, audit auditCleaner) []services.Job {
	jobs := []services.Job{
		{
			Name: "expire-pending-orders",
			Spec: cfg.Jobs.ExpireOrdersSpec,
			Run: func(ctx context.Context) error {
				n, err := orders.ExpirePending(ctx, cfg.Store.PendingOrderTTL)
				if n > 0 {
					logging.Ctx(ctx).Info().Int("orders", n).Msg("Expired pending orders")
				}
				return err
			},
		},
		{
			Name: "session-cleanup",
			Spec: cfg.Jobs.SessionCleanupSpec,
			Run: func(ctx context.Context) error {
				n, err := sessions.CleanupSessions(ctx)
				if n > 0 {
					logging.Ctx(ctx).Debug().Int("sessions", n).Msg("Removed expired sessions")
				}
				return err
			},
		},
	}

	if cfg.Audit.Enabled && cfg.Audit.RetentionDays > 0 {
		jobs = append(jobs, services.Job{
			Name: "audit-retention",
			Spec: cfg.Jobs.AuditCleanupSpec,
			Run: func(ctx context.Context) error {
				n, err := audit.Cleanup(ctx)
				if n > 0 {
					logging.Ctx(ctx).Info().Int64("events", n).Msg("Pruned audit events past retention")
				}
				return err
			},
		})
	}
	return jobs
}
