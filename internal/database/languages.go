// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/souq/internal/i18n"
)

// ErrDefaultLanguage is returned when an operation would leave the store
// without an active default language.
var ErrDefaultLanguage = errors.New("the default language cannot be removed or deactivated")

const languageColumns = `code, name, native_name, direction, is_default, active, sort_order`

func scanLanguage(row interface{ Scan(...interface{}) error }) (i18n.Language, error) {
	var l i18n.Language
	err := row.Scan(&l.Code, &l.Name, &l.NativeName, &l.Direction, &l.IsDefault, &l.Active, &l.SortOrder)
	return l, err
}

// ListLanguages returns languages ordered by sort order. It implements
// i18n.LanguageSource.
func (db *DB) ListLanguages(ctx context.Context, activeOnly bool) (_ []i18n.Language, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "languages", time.Now(), &err)

	query := `SELECT ` + languageColumns + ` FROM languages`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY is_default DESC, sort_order, code`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	defer rows.Close()

	var out []i18n.Language
	for rows.Next() {
		l, err := scanLanguage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLanguage returns one language by code.
func (db *DB) GetLanguage(ctx context.Context, code string) (*i18n.Language, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	l, err := scanLanguage(db.conn.QueryRowContext(ctx,
		`SELECT `+languageColumns+` FROM languages WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get language: %w", err)
	}
	return &l, nil
}

// SaveLanguage inserts or updates a language. Setting IsDefault clears the
// flag on every other language in the same transaction. The current
// default cannot be deactivated or un-defaulted directly.
func (db *DB) SaveLanguage(ctx context.Context, l *i18n.Language) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if l.Direction == "" {
		l.Direction = i18n.DirectionFor(l.Code)
	}
	if l.IsDefault && !l.Active {
		return ErrDefaultLanguage
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var wasDefault bool
		err := tx.QueryRowContext(ctx, `SELECT is_default FROM languages WHERE code = ?`, l.Code).Scan(&wasDefault)
		exists := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read language: %w", err)
		}
		if wasDefault && (!l.IsDefault || !l.Active) {
			return ErrDefaultLanguage
		}

		if l.IsDefault && !wasDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE languages SET is_default = FALSE WHERE is_default`); err != nil {
				return fmt.Errorf("failed to clear default language: %w", err)
			}
		}

		if exists {
			_, err = tx.ExecContext(ctx, `UPDATE languages SET name = ?, native_name = ?, direction = ?,
				is_default = ?, active = ?, sort_order = ? WHERE code = ?`,
				l.Name, l.NativeName, l.Direction, l.IsDefault, l.Active, l.SortOrder, l.Code)
		} else {
			_, err = tx.ExecContext(ctx, `INSERT INTO languages (`+languageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				l.Code, l.Name, l.NativeName, l.Direction, l.IsDefault, l.Active, l.SortOrder)
		}
		if err != nil {
			return fmt.Errorf("failed to save language: %w", err)
		}
		return nil
	})
}

// DeleteLanguage removes a non-default language. Content translations in
// that language are kept and simply stop being served.
func (db *DB) DeleteLanguage(ctx context.Context, code string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	l, err := db.GetLanguage(ctx, code)
	if err != nil {
		return err
	}
	if l.IsDefault {
		return ErrDefaultLanguage
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM languages WHERE code = ?`, code); err != nil {
		return fmt.Errorf("failed to delete language: %w", err)
	}
	return nil
}
