// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package models

import (
	"time"

	"github.com/tomtom215/souq/internal/i18n"
)

// PaymentTransaction records one payment attempt against an order.
type PaymentTransaction struct {
	ID         string        `json:"id"`
	OrderID    string        `json:"order_id"`
	Gateway    string        `json:"gateway"`
	ExternalID string        `json:"external_id,omitempty"`
	Status     PaymentStatus `json:"status"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	Message    string        `json:"message,omitempty"`
	Raw        string        `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// GatewaySetting holds the admin-editable presentation of a gateway.
// Credentials are configuration-only and never stored here.
type GatewaySetting struct {
	Slug         string            `json:"slug"`
	Enabled      bool              `json:"enabled"`
	SortOrder    int               `json:"sort_order"`
	Translations i18n.Translations `json:"translations"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
