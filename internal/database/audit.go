// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/models"
)

// InsertAuditEvent appends e to the audit log.
func (db *DB) InsertAuditEvent(ctx context.Context, e *models.AuditEvent) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "audit_events", time.Now(), &err)

	details := []byte("{}")
	if len(e.Details) > 0 {
		if details, err = json.Marshal(e.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = db.now()
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO audit_events
		(id, actor_id, actor_email, action, entity_type, entity_id, details, ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorID, e.ActorEmail, e.Action, e.EntityType, e.EntityID, string(details), e.IP, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns matching events, newest first.
func (db *DB) ListAuditEvents(ctx context.Context, f models.AuditFilter) (_ []models.AuditEvent, total int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "audit_events", time.Now(), &err)

	limit, offset := clampPage(f.Limit, f.Offset)
	w := &whereBuilder{}
	if f.ActorID != "" {
		w.add("actor_id = ?", f.ActorID)
	}
	if f.EntityType != "" {
		w.add("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		w.add("entity_id = ?", f.EntityID)
	}
	if f.Action != "" {
		w.add("action = ?", f.Action)
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	args := append(append([]interface{}{}, w.args...), limit, offset)
	rows, err := db.conn.QueryContext(ctx, `SELECT id, actor_id, actor_email, action, entity_type, entity_id,
		details, ip, created_at FROM audit_events`+w.sql()+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var (
			e       models.AuditEvent
			details string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.EntityType, &e.EntityID,
			&details, &e.IP, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, 0, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// DeleteAuditEventsBefore removes events older than cutoff and returns how
// many were deleted.
func (db *DB) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("DELETE", "audit_events", time.Now(), &err)

	res, err := db.conn.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	return res.RowsAffected()
}
