// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package newsletter

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseRecurrence parses a standard five-field cron expression or a
// descriptor such as "@weekly".
func ParseRecurrence(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty recurrence")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence %q: %w", expr, err)
	}
	return sched, nil
}

// NextRun returns the first activation of expr strictly after after, in UTC.
func NextRun(expr string, after time.Time) (time.Time, error) {
	sched, err := ParseRecurrence(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(after.UTC())
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("recurrence %q never fires", expr)
	}
	return next, nil
}
