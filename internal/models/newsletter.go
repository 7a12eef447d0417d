// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package models

import (
	"time"

	"github.com/tomtom215/souq/internal/i18n"
)

// Subscriber statuses.
const (
	SubscriberPending      = "pending"
	SubscriberSubscribed   = "subscribed"
	SubscriberUnsubscribed = "unsubscribed"
)

// Subscriber is a newsletter recipient with double opt-in.
type Subscriber struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Language         string     `json:"language"`
	Status           string     `json:"status"`
	ConfirmToken     string     `json:"-"`
	UnsubscribeToken string     `json:"-"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Campaign statuses.
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignFailed    = "failed"
)

// Campaign is a newsletter issue. Recurrence is an optional standard cron
// expression; recurring campaigns are rescheduled after every run.
type Campaign struct {
	ID           string            `json:"id"`
	Translations i18n.Translations `json:"translations"`
	Status       string            `json:"status"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
	Recurrence   string            `json:"recurrence,omitempty"`
	LastRunAt    *time.Time        `json:"last_run_at,omitempty"`
	SentCount    int               `json:"sent_count"`
	FailedCount  int               `json:"failed_count"`
	CreatedBy    string            `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Delivery statuses.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Delivery records one campaign send to one subscriber.
type Delivery struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	SubscriberID string    `json:"subscriber_id"`
	Email        string    `json:"email"`
	Language     string    `json:"language"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
}
