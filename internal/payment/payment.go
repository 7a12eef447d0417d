// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package payment adapts payment providers to one Gateway interface and
// dispatches by gateway slug.
//
// Online gateways (PayPal, Stripe, TAP) talk to the providers' HTTP APIs
// through a per-gateway circuit breaker. Offline gateways (bank transfer,
// cash on delivery) return instructions and leave the payment pending
// until an admin marks the order paid.
//
// Credentials are read from configuration only. The database holds the
// admin-editable presentation (enabled flag, localized title and
// instructions, sort order).
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tomtom215/souq/internal/models"
)

// Gateway slugs.
const (
	SlugPayPal       = "paypal"
	SlugStripe       = "stripe"
	SlugTap          = "tap"
	SlugBankTransfer = "bank_transfer"
	SlugCOD          = "cod"
)

// Slugs lists every supported gateway in display order.
var Slugs = []string{SlugPayPal, SlugStripe, SlugTap, SlugBankTransfer, SlugCOD}

var (
	// ErrUnknownGateway is returned for slugs no implementation exists for.
	ErrUnknownGateway = errors.New("unknown payment gateway")

	// ErrGatewayDisabled is returned for gateways that are not configured
	// or were disabled by an admin.
	ErrGatewayDisabled = errors.New("payment gateway disabled")

	// ErrInvalidSignature is returned when a webhook fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrNotSupported is returned by offline gateways for provider flows.
	ErrNotSupported = errors.New("operation not supported by gateway")

	// ErrReferenceMismatch is returned when a provider return does not
	// belong to the order it was presented for.
	ErrReferenceMismatch = errors.New("payment reference does not match order")

	// ErrMissingParameter is returned when a provider return lacks its ID.
	ErrMissingParameter = errors.New("missing provider parameter")
)

// ProviderError is a non-2xx answer from a provider API.
type ProviderError struct {
	Gateway    string
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: provider returned HTTP %d: %s", e.Gateway, e.Operation, e.StatusCode, e.Body)
}

// Temporary reports whether the failure is on the provider side.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// PurchaseRequest starts a payment for an order. Amount is in minor units.
type PurchaseRequest struct {
	OrderID     string
	OrderNumber string
	Amount      int64
	Currency    string
	Email       string
	Name        string
	Phone       string
	Language    string
	Description string

	// ReturnURL receives the customer after approval; CancelURL after
	// abandonment. WebhookURL is given to providers that take it per call.
	ReturnURL  string
	CancelURL  string
	WebhookURL string
}

// PurchaseResult tells checkout what to do next.
type PurchaseResult struct {
	// RedirectURL is the provider page the customer must visit.
	RedirectURL string `json:"redirect_url,omitempty"`

	// Instructions are shown for offline payments.
	Instructions map[string]string `json:"instructions,omitempty"`

	// ExternalID is the provider's order, session or charge ID.
	ExternalID string `json:"-"`

	// Status is the payment status after purchase.
	Status models.PaymentStatus `json:"payment_status"`

	// Fulfil releases the order for fulfilment before payment (cash on delivery).
	Fulfil bool `json:"-"`
}

// CompleteRequest verifies a customer's return from the provider.
type CompleteRequest struct {
	OrderID    string
	ExternalID string // reference stored at purchase
	Amount     int64
	Currency   string
	Query      url.Values
}

// Result is a verified payment outcome.
type Result struct {
	Status     models.PaymentStatus
	ExternalID string
	Amount     int64
	Currency   string
	Message    string
	Raw        string
}

// Webhook event kinds.
const (
	EventPaid     = "paid"
	EventFailed   = "failed"
	EventRefunded = "refunded"
	EventIgnored  = "ignored"
)

// WebhookEvent is a verified, normalized provider notification.
type WebhookEvent struct {
	ID         string // provider event ID, unique per gateway
	Type       string // provider event type
	Kind       string
	OrderID    string // our order ID when the provider echoes it
	ExternalID string // provider payment reference
	Amount     int64
	Currency   string
	Reason     string
	Raw        string
}

// Gateway is one payment provider.
type Gateway interface {
	Slug() string
	Offline() bool
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	Complete(ctx context.Context, req CompleteRequest) (*Result, error)
	ParseWebhook(ctx context.Context, r *http.Request, body []byte) (*WebhookEvent, error)
}

// FeeCharger is implemented by gateways that add a fee to the order.
type FeeCharger interface {
	Fee() int64
}

// IsKnown reports whether slug names a supported gateway.
func IsKnown(slug string) bool {
	for _, s := range Slugs {
		if s == slug {
			return true
		}
	}
	return false
}
