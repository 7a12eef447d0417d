// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional update matched no row or
	// DuckDB aborted a transaction on a write-write conflict.
	ErrConflict = errors.New("conflict")

	// ErrDuplicate is returned when a unique value (slug, email, SKU) is taken.
	ErrDuplicate = errors.New("duplicate")

	// ErrInsufficientStock is returned when a stock reservation fails.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// mapConflict converts DuckDB conflict and constraint errors into sentinels.
func mapConflict(err error) error {
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrDuplicate) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "conflict on"), strings.Contains(msg, "transaction conflict"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// closeQuietly closes a resource on an error path where the close error is not actionable.
func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
