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

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/models"
)

const paymentTxColumns = `id, order_id, gateway, external_id, status, amount, currency, message, raw, created_at, updated_at`

// RecordPaymentTransaction appends a gateway interaction to an order's
// payment history.
func (db *DB) RecordPaymentTransaction(ctx context.Context, t *models.PaymentTransaction) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "payment_transactions", time.Now(), &err)

	now := db.now()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = db.conn.ExecContext(ctx, `INSERT INTO payment_transactions (`+paymentTxColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrderID, t.Gateway, t.ExternalID, string(t.Status), t.Amount, t.Currency,
		t.Message, t.Raw, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to record payment transaction: %w", err)
	}
	return nil
}

// ListPaymentTransactions returns an order's payment history, oldest first.
func (db *DB) ListPaymentTransactions(ctx context.Context, orderID string) ([]models.PaymentTransaction, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+paymentTxColumns+` FROM payment_transactions
		WHERE order_id = ? ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentTransaction
	for rows.Next() {
		var t models.PaymentTransaction
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Gateway, &t.ExternalID, &t.Status, &t.Amount,
			&t.Currency, &t.Message, &t.Raw, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordPaymentEvent remembers a provider webhook event. It reports false
// when the event was already recorded, so redelivered webhooks are
// acknowledged without being processed twice.
func (db *DB) RecordPaymentEvent(ctx context.Context, gateway, eventID, eventType, orderID string) (inserted bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "payment_events", time.Now(), &err)

	res, err := db.conn.ExecContext(ctx, `INSERT INTO payment_events (gateway, event_id, event_type, order_id, received_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`, gateway, eventID, eventType, orderID, db.now())
	if err != nil {
		err = mapConflict(err)
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record payment event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ForgetPaymentEvent removes a recorded event so a webhook whose
// processing failed can be retried by the provider.
func (db *DB) ForgetPaymentEvent(ctx context.Context, gateway, eventID string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM payment_events WHERE gateway = ? AND event_id = ?`, gateway, eventID); err != nil {
		return fmt.Errorf("failed to forget payment event: %w", err)
	}
	return nil
}

const gatewayColumns = `slug, enabled, sort_order, translations, updated_at`

func scanGateway(row scanner) (*models.GatewaySetting, error) {
	var g models.GatewaySetting
	if err := row.Scan(&g.Slug, &g.Enabled, &g.SortOrder, &g.Translations, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGatewaySettings returns the stored gateway settings by sort order.
func (db *DB) ListGatewaySettings(ctx context.Context) ([]models.GatewaySetting, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+gatewayColumns+` FROM payment_gateways ORDER BY sort_order, slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateways: %w", err)
	}
	defer rows.Close()

	var out []models.GatewaySetting
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gateway: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// GetGatewaySetting returns the stored setting for a gateway slug.
func (db *DB) GetGatewaySetting(ctx context.Context, slug string) (*models.GatewaySetting, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	g, err := scanGateway(db.conn.QueryRowContext(ctx, `SELECT `+gatewayColumns+` FROM payment_gateways WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway: %w", err)
	}
	return g, nil
}

// SaveGatewaySetting inserts or replaces a gateway's storefront settings.
func (db *DB) SaveGatewaySetting(ctx context.Context, g *models.GatewaySetting) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	g.UpdatedAt = db.now()
	_, err := db.conn.ExecContext(ctx, `INSERT INTO payment_gateways (`+gatewayColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET enabled = excluded.enabled, sort_order = excluded.sort_order,
		translations = excluded.translations, updated_at = excluded.updated_at`,
		g.Slug, g.Enabled, g.SortOrder, g.Translations.JSON(), g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save gateway: %w", err)
	}
	return nil
}
