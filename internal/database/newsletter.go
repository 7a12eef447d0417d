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

const subscriberColumns = `id, email, language, status, confirm_token, unsubscribe_token, confirmed_at, created_at, updated_at`

func scanSubscriber(row scanner) (*models.Subscriber, error) {
	var (
		s         models.Subscriber
		confirmed sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Email, &s.Language, &s.Status, &s.ConfirmToken, &s.UnsubscribeToken,
		&confirmed, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ConfirmedAt = nullTimePtr(confirmed)
	return &s, nil
}

// CreateSubscriber inserts s. The email must not be subscribed already.
func (db *DB) CreateSubscriber(ctx context.Context, s *models.Subscriber) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	s.Email = NormalizeEmail(s.Email)
	now := db.now()
	s.ID = uuid.New().String()
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := db.conn.ExecContext(ctx, `INSERT INTO newsletter_subscribers (`+subscriberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Email, s.Language, s.Status, s.ConfirmToken, s.UnsubscribeToken, timeArg(s.ConfirmedAt),
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", mapConflict(err))
	}
	return nil
}

// GetSubscriberByEmail returns a subscriber by address.
func (db *DB) GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	return db.getSubscriber(ctx, `email = ?`, NormalizeEmail(email))
}

// GetSubscriberByConfirmToken returns the subscriber holding a pending
// confirmation token.
func (db *DB) GetSubscriberByConfirmToken(ctx context.Context, token string) (*models.Subscriber, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return db.getSubscriber(ctx, `confirm_token = ?`, token)
}

// GetSubscriberByUnsubscribeToken returns the subscriber owning token.
func (db *DB) GetSubscriberByUnsubscribeToken(ctx context.Context, token string) (*models.Subscriber, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return db.getSubscriber(ctx, `unsubscribe_token = ?`, token)
}

func (db *DB) getSubscriber(ctx context.Context, where string, arg interface{}) (*models.Subscriber, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	s, err := scanSubscriber(db.conn.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return s, nil
}

// UpdateSubscriber saves status, language, tokens and confirmation time.
func (db *DB) UpdateSubscriber(ctx context.Context, s *models.Subscriber) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	s.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx, `UPDATE newsletter_subscribers SET language = ?, status = ?,
		confirm_token = ?, unsubscribe_token = ?, confirmed_at = ?, updated_at = ? WHERE id = ?`,
		s.Language, s.Status, s.ConfirmToken, s.UnsubscribeToken, timeArg(s.ConfirmedAt), s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update subscriber: %w", err)
	}
	return requireRow(res)
}

// DeleteSubscriber removes a subscriber.
func (db *DB) DeleteSubscriber(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM newsletter_subscribers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return requireRow(res)
}

// ListSubscribers returns one page of subscribers, optionally of one status.
func (db *DB) ListSubscribers(ctx context.Context, status string, limit, offset int) (_ []models.Subscriber, total int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "newsletter_subscribers", time.Now(), &err)

	limit, offset = clampPage(limit, offset)
	w := &whereBuilder{}
	if status != "" {
		w.add("status = ?", status)
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM newsletter_subscribers`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	args := append(append([]interface{}{}, w.args...), limit, offset)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM newsletter_subscribers`+w.sql()+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var out []models.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// ActiveSubscribers returns every confirmed subscriber.
func (db *DB) ActiveSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM newsletter_subscribers
		WHERE status = ? ORDER BY created_at, id`, models.SubscriberSubscribed)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscribers: %w", err)
	}
	defer rows.Close()

	var out []models.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountSubscribersByStatus returns subscriber totals keyed by status.
func (db *DB) CountSubscribersByStatus(ctx context.Context) (map[string]int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM newsletter_subscribers GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscribers: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

const campaignColumns = `id, translations, status, scheduled_at, recurrence, last_run_at, sent_count,
	failed_count, created_by, created_at, updated_at`

func scanCampaign(row scanner) (*models.Campaign, error) {
	var (
		c                  models.Campaign
		scheduled, lastRun sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Translations, &c.Status, &scheduled, &c.Recurrence, &lastRun,
		&c.SentCount, &c.FailedCount, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ScheduledAt = nullTimePtr(scheduled)
	c.LastRunAt = nullTimePtr(lastRun)
	return &c, nil
}

// CreateCampaign inserts c.
func (db *DB) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	now := db.now()
	c.ID = uuid.New().String()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := db.conn.ExecContext(ctx, `INSERT INTO newsletter_campaigns (`+campaignColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Translations.JSON(), c.Status, timeArg(c.ScheduledAt), c.Recurrence, timeArg(c.LastRunAt),
		c.SentCount, c.FailedCount, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// UpdateCampaign saves content and schedule. Campaigns that are sending
// cannot be edited and yield ErrConflict.
func (db *DB) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	c.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx, `UPDATE newsletter_campaigns SET translations = ?, status = ?,
		scheduled_at = ?, recurrence = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		c.Translations.JSON(), c.Status, timeArg(c.ScheduledAt), c.Recurrence, c.UpdatedAt, c.ID, models.CampaignSending)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	err = requireRow(res)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := db.GetCampaign(ctx, c.ID); getErr == nil {
			return fmt.Errorf("%w: campaign is sending", ErrConflict)
		}
	}
	return err
}

// GetCampaign returns a campaign by ID.
func (db *DB) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	c, err := scanCampaign(db.conn.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM newsletter_campaigns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns returns one page of campaigns, newest first.
func (db *DB) ListCampaigns(ctx context.Context, status string, limit, offset int) (_ []models.Campaign, total int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "newsletter_campaigns", time.Now(), &err)

	limit, offset = clampPage(limit, offset)
	w := &whereBuilder{}
	if status != "" {
		w.add("status = ?", status)
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM newsletter_campaigns`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}
	args := append(append([]interface{}{}, w.args...), limit, offset)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+campaignColumns+` FROM newsletter_campaigns`+w.sql()+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()
	return collectCampaigns(rows, total)
}

func collectCampaigns(rows *sql.Rows, total int) ([]models.Campaign, int, error) {
	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// DueCampaigns returns scheduled campaigns whose time has come.
func (db *DB) DueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+campaignColumns+` FROM newsletter_campaigns
		WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ? ORDER BY scheduled_at, id`,
		models.CampaignScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	defer rows.Close()
	out, _, err := collectCampaigns(rows, 0)
	return out, err
}

// ClaimCampaign moves a draft or scheduled campaign to sending. It returns
// ErrConflict when another run claimed it first.
func (db *DB) ClaimCampaign(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE newsletter_campaigns SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?, ?)`,
		models.CampaignSending, db.now(), id, models.CampaignDraft, models.CampaignScheduled, models.CampaignFailed)
	if err != nil {
		return fmt.Errorf("failed to claim campaign: %w", mapConflict(err))
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("%w: campaign %s is not sendable", ErrConflict, id)
	}
	return nil
}

// FinishCampaign records the outcome of a run. When next is set the
// campaign is rescheduled instead of closed.
func (db *DB) FinishCampaign(ctx context.Context, id, status string, sent, failed int, ranAt time.Time, next *time.Time) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if next != nil {
		status = models.CampaignScheduled
	}
	_, err := db.conn.ExecContext(ctx, `UPDATE newsletter_campaigns SET status = ?, sent_count = sent_count + ?,
		failed_count = failed_count + ?, last_run_at = ?, scheduled_at = COALESCE(CAST(? AS TIMESTAMP), scheduled_at), updated_at = ?
		WHERE id = ?`, status, sent, failed, ranAt, timeArg(next), db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to finish campaign: %w", err)
	}
	return nil
}

// DeleteCampaign removes a campaign and its delivery records.
func (db *DB) DeleteCampaign(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM newsletter_campaigns WHERE id = ? AND status <> ?`, id, models.CampaignSending)
		if err != nil {
			return fmt.Errorf("delete campaign: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM newsletter_deliveries WHERE campaign_id = ?`, id)
		return err
	})
}

// InsertDelivery records the outcome for one recipient.
func (db *DB) InsertDelivery(ctx context.Context, d *models.Delivery) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = db.now()
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO newsletter_deliveries
		(id, campaign_id, subscriber_id, email, language, status, error, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CampaignID, d.SubscriberID, d.Email, d.Language, d.Status, d.Error, d.Attempts, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns a campaign's delivery records, newest first.
func (db *DB) ListDeliveries(ctx context.Context, campaignID string, limit, offset int) ([]models.Delivery, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	limit, offset = clampPage(limit, offset)
	rows, err := db.conn.QueryContext(ctx, `SELECT id, campaign_id, subscriber_id, email, language, status,
		error, attempts, created_at FROM newsletter_deliveries WHERE campaign_id = ?
		ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, campaignID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var out []models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.SubscriberID, &d.Email, &d.Language, &d.Status,
			&d.Error, &d.Attempts, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeliveryStats holds per-campaign delivery totals.
type DeliveryStats struct {
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Attempts int `json:"attempts"`
}

// CampaignDeliveryStats aggregates a campaign's delivery records.
func (db *DB) CampaignDeliveryStats(ctx context.Context, campaignID string) (*DeliveryStats, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var s DeliveryStats
	err := db.conn.QueryRowContext(ctx, `SELECT
		COUNT(*) FILTER (WHERE status = ?),
		COUNT(*) FILTER (WHERE status = ?),
		CAST(COALESCE(SUM(attempts), 0) AS BIGINT)
		FROM newsletter_deliveries WHERE campaign_id = ?`,
		models.DeliverySent, models.DeliveryFailed, campaignID).Scan(&s.Sent, &s.Failed, &s.Attempts)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deliveries: %w", err)
	}
	return &s, nil
}
