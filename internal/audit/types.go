// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package audit

import (
	"context"
	"time"

	"github.com/tomtom215/souq/internal/models"
)

// Actions.
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionPublish      = "publish"
	ActionUnpublish    = "unpublish"
	ActionStatusChange = "status_change"
	ActionMarkPaid     = "mark_paid"
	ActionRefund       = "refund"
	ActionSetDefault   = "set_default"
	ActionSend         = "send"
	ActionEnable       = "enable"
	ActionDisable      = "disable"
)

// Entity types.
const (
	EntityProduct    = "product"
	EntityCategory   = "category"
	EntityOrder      = "order"
	EntityPost       = "post"
	EntityLanguage   = "language"
	EntityGateway    = "gateway"
	EntitySubscriber = "subscriber"
	EntityCampaign   = "campaign"
	EntityUser       = "user"
	EntitySetting    = "setting"
)

// Store persists audit events. *database.DB implements it.
type Store interface {
	InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, f models.AuditFilter) ([]models.AuditEvent, int, error)
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Actor identifies who performed an action.
type Actor struct {
	ID    string
	Email string
}

// SystemActor is used for mutations made by jobs and the CLI.
var SystemActor = Actor{ID: "system", Email: "system"}
