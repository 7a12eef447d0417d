// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package payment

import (
	"context"
	"net/http"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
)

// BankTransfer shows account details; an admin marks the order paid once
// the transfer arrives.
type BankTransfer struct {
	cfg config.BankTransferConfig
}

// NewBankTransfer creates the bank transfer gateway.
func NewBankTransfer(cfg config.BankTransferConfig) *BankTransfer {
	return &BankTransfer{cfg: cfg}
}

// Slug implements Gateway.
func (b *BankTransfer) Slug() string { return SlugBankTransfer }

// Offline implements Gateway.
func (b *BankTransfer) Offline() bool { return true }

// Purchase returns the transfer instructions. The order number is the
// payment reference the customer must quote.
func (b *BankTransfer) Purchase(_ context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	return &PurchaseResult{
		Status: models.PaymentPending,
		Instructions: map[string]string{
			"bank_name":    b.cfg.BankName,
			"account_name": b.cfg.AccountName,
			"iban":         b.cfg.IBAN,
			"swift":        b.cfg.SWIFT,
			"reference":    req.OrderNumber,
			"amount":       i18n.FormatMinor(req.Amount, req.Currency) + " " + req.Currency,
		},
	}, nil
}

// Complete implements Gateway.
func (b *BankTransfer) Complete(context.Context, CompleteRequest) (*Result, error) {
	return nil, ErrNotSupported
}

// ParseWebhook implements Gateway.
func (b *BankTransfer) ParseWebhook(context.Context, *http.Request, []byte) (*WebhookEvent, error) {
	return nil, ErrNotSupported
}

// COD is cash on delivery. Orders are released for fulfilment at once
// and paid on delivery.
type COD struct {
	cfg config.CODConfig
}

// NewCOD creates the cash-on-delivery gateway.
func NewCOD(cfg config.CODConfig) *COD {
	return &COD{cfg: cfg}
}

// Slug implements Gateway.
func (c *COD) Slug() string { return SlugCOD }

// Offline implements Gateway.
func (c *COD) Offline() bool { return true }

// Fee implements FeeCharger.
func (c *COD) Fee() int64 { return c.cfg.Fee }

// Purchase implements Gateway.
func (c *COD) Purchase(_ context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	return &PurchaseResult{
		Status: models.PaymentPending,
		Fulfil: true,
		Instructions: map[string]string{
			"amount_due": i18n.FormatMinor(req.Amount, req.Currency) + " " + req.Currency,
			"reference":  req.OrderNumber,
		},
	}, nil
}

// Complete implements Gateway.
func (c *COD) Complete(context.Context, CompleteRequest) (*Result, error) {
	return nil, ErrNotSupported
}

// ParseWebhook implements Gateway.
func (c *COD) ParseWebhook(context.Context, *http.Request, []byte) (*WebhookEvent, error) {
	return nil, ErrNotSupported
}
