// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is a versioned schema change applied after the base schema.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR NOT NULL DEFAULT '',
	applied_at TIMESTAMP NOT NULL
)`

// migrations are append-only. Never edit or reorder an entry once released.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "seed_payment_gateways",
		Description: "Register the built-in payment gateways with default titles",
		SQL: `INSERT INTO payment_gateways (slug, enabled, sort_order, translations, updated_at)
			SELECT * FROM (VALUES
				('stripe', TRUE, 1, '{"en":{"title":"Credit or debit card"},"ar":{"title":"بطاقة ائتمان أو خصم"}}', TIMESTAMP '2026-01-01 00:00:00'),
				('paypal', TRUE, 2, '{"en":{"title":"PayPal"},"ar":{"title":"باي بال"}}', TIMESTAMP '2026-01-01 00:00:00'),
				('tap', TRUE, 3, '{"en":{"title":"KNET / Card (TAP)"},"ar":{"title":"كي نت / بطاقة (تاب)"}}', TIMESTAMP '2026-01-01 00:00:00'),
				('bank_transfer', TRUE, 4, '{"en":{"title":"Bank transfer","instructions":"Use your order number as the transfer reference."},"ar":{"title":"تحويل بنكي","instructions":"استخدم رقم الطلب كمرجع للتحويل."}}', TIMESTAMP '2026-01-01 00:00:00'),
				('cod', TRUE, 5, '{"en":{"title":"Cash on delivery"},"ar":{"title":"الدفع عند الاستلام"}}', TIMESTAMP '2026-01-01 00:00:00')
			) AS g(slug, enabled, sort_order, translations, updated_at)
			WHERE NOT EXISTS (SELECT 1 FROM payment_gateways)`,
	},
	{
		Version:     2,
		Name:        "seed_default_language",
		Description: "Ensure at least one default language exists",
		SQL: `INSERT INTO languages (code, name, native_name, direction, is_default, active, sort_order)
			SELECT 'en', 'English', 'English', 'ltr', TRUE, TRUE, 0
			WHERE NOT EXISTS (SELECT 1 FROM languages)`,
	},
}

// RunMigrations applies pending migrations and returns how many ran.
func (db *DB) RunMigrations(ctx context.Context) (int, error) {
	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("migration v%d (%s): %w", m.Version, m.Name, err)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
				m.Version, m.Name, m.Description, db.now())
			return err
		})
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var version int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// MigrationHistory returns applied migrations in order.
func (db *DB) MigrationHistory(ctx context.Context) ([]Migration, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer rows.Close()

	var history []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}
