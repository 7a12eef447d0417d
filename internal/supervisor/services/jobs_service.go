// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named maintenance task run on a cron schedule.
type Job struct {
	Name string
	// Spec is a standard five-field cron expression or a descriptor such
	// as "@every 5m". An empty spec disables the job.
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// JobsService runs maintenance jobs such as expiring unpaid orders,
// removing stale sessions and pruning the audit trail. A job that is
// still running when its next tick fires is skipped.
type JobsService struct {
	jobs   []Job
	logger zerolog.Logger
	loc    *time.Location
}

// NewJobsService creates the service. Specs are validated here so a bad
// schedule fails at startup rather than on every restart.
func NewJobsService(logger zerolog.Logger, jobs ...Job) (*JobsService, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	kept := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Spec == "" {
			continue
		}
		if _, err := parser.Parse(j.Spec); err != nil {
			return nil, fmt.Errorf("job %s: invalid schedule %q: %w", j.Name, j.Spec, err)
		}
		if j.Timeout <= 0 {
			j.Timeout = 5 * time.Minute
		}
		kept = append(kept, j)
	}
	return &JobsService{jobs: kept, logger: logger, loc: time.UTC}, nil
}

// Jobs returns the enabled jobs.
func (s *JobsService) Jobs() []Job {
	return s.jobs
}

// Serve implements suture.Service.
func (s *JobsService) Serve(ctx context.Context) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	for _, j := range s.jobs {
		job := j
		if _, err := c.AddFunc(job.Spec, func() { s.runJob(ctx, job) }); err != nil {
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
	}

	c.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Maintenance jobs scheduled")
	<-ctx.Done()

	// Stop returns a context that is done once running jobs finish.
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *JobsService) runJob(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	jobCtx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	start := time.Now()
	if err := j.Run(jobCtx); err != nil {
		s.logger.Error().Err(err).Str("job", j.Name).Msg("Maintenance job failed")
		return
	}
	s.logger.Debug().Str("job", j.Name).Dur("took", time.Since(start)).Msg("Maintenance job finished")
}

func (s *JobsService) String() string {
	return "maintenance-jobs"
}

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
