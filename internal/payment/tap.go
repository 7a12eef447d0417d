// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
)

const tapAPIURL = "https://api.tap.company"

// Tap implements TAP Payments Charges v2.
type Tap struct {
	cfg    config.TapConfig
	client *apiClient
}

// NewTap creates the TAP gateway.
func NewTap(cfg config.TapConfig, timeout time.Duration, bs BreakerSettings) *Tap {
	base := cfg.BaseURL
	if base == "" {
		base = tapAPIURL
	}
	return &Tap{cfg: cfg, client: newAPIClient(SlugTap, base, timeout, bs)}
}

// Slug implements Gateway.
func (t *Tap) Slug() string { return SlugTap }

// Offline implements Gateway.
func (t *Tap) Offline() bool { return false }

type tapReference struct {
	Transaction string `json:"transaction,omitempty"`
	Order       string `json:"order,omitempty"`
	Gateway     string `json:"gateway,omitempty"`
	Payment     string `json:"payment,omitempty"`
}

type tapCharge struct {
	ID          string            `json:"id"`
	Object      string            `json:"object"`
	Status      string            `json:"status"`
	Amount      json.Number       `json:"amount"`
	Currency    string            `json:"currency"`
	ChargeID    string            `json:"charge_id"`
	Reference   tapReference      `json:"reference"`
	Metadata    map[string]string `json:"metadata"`
	Transaction struct {
		URL     string      `json:"url"`
		Created json.Number `json:"created"`
	} `json:"transaction"`
	Response struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"response"`
}

// Purchase creates a charge and returns the hosted payment page.
func (t *Tap) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	body := map[string]interface{}{
		"amount":               json.Number(i18n.FormatMinor(req.Amount, req.Currency)),
		"currency":             req.Currency,
		"threeDSecure":         true,
		"save_card":            false,
		"description":          req.Description,
		"statement_descriptor": req.OrderNumber,
		"reference":            tapReference{Transaction: req.OrderNumber, Order: req.OrderID},
		"metadata":             map[string]string{"order_id": req.OrderID},
		"receipt":              map[string]bool{"email": false, "sms": false},
		"customer": map[string]interface{}{
			"first_name": firstNonEmpty(req.Name, req.Email),
			"email":      req.Email,
		},
		"source":   map[string]string{"id": "src_all"},
		"post":     map[string]string{"url": req.WebhookURL},
		"redirect": map[string]string{"url": req.ReturnURL},
	}
	if lang := strings.ToLower(req.Language); lang == "ar" || lang == "en" {
		body["lang_code"] = lang
	}

	var charge tapCharge
	if err := t.client.call(ctx, "create_charge", http.MethodPost, "/v2/charges", body, bearer(t.cfg.SecretKey), &charge); err != nil {
		return nil, err
	}
	if charge.Transaction.URL == "" {
		return nil, fmt.Errorf("tap create_charge: no transaction URL for %s (status %s)", charge.ID, charge.Status)
	}
	return &PurchaseResult{RedirectURL: charge.Transaction.URL, ExternalID: charge.ID, Status: models.PaymentPending}, nil
}

// Complete retrieves the charge named by tap_id.
func (t *Tap) Complete(ctx context.Context, req CompleteRequest) (*Result, error) {
	id := req.Query.Get("tap_id")
	if id == "" {
		return nil, fmt.Errorf("%w: tap_id", ErrMissingParameter)
	}
	if req.ExternalID != "" && id != req.ExternalID {
		return nil, ErrReferenceMismatch
	}

	var charge tapCharge
	if err := t.client.call(ctx, "get_charge", http.MethodGet, "/v2/charges/"+url.PathEscape(id),
		nil, bearer(t.cfg.SecretKey), &charge); err != nil {
		return nil, err
	}
	if charge.Reference.Order != "" && charge.Reference.Order != req.OrderID {
		return nil, ErrReferenceMismatch
	}

	res := &Result{
		Status:     tapPaymentStatus(charge.Status),
		ExternalID: charge.ID,
		Currency:   charge.Currency,
		Message:    strings.TrimSpace(charge.Status + " " + charge.Response.Message),
	}
	if amount, err := i18n.ParseMajor(charge.Amount.String(), charge.Currency); err == nil {
		res.Amount = amount
	}
	if raw, err := json.Marshal(charge); err == nil {
		res.Raw = string(raw)
	}
	return res, nil
}

// tapPaymentStatus maps a charge status. AUTHORIZED holds funds without
// capturing them, so the order waits for a CAPTURED notification.
func tapPaymentStatus(status string) models.PaymentStatus {
	switch strings.ToUpper(status) {
	case "CAPTURED":
		return models.PaymentPaid
	case "AUTHORIZED", "INITIATED", "IN_PROGRESS", "PENDING":
		return models.PaymentPending
	default:
		return models.PaymentFailed
	}
}

// ParseWebhook verifies the hashstring header and maps charge and refund
// notifications.
func (t *Tap) ParseWebhook(_ context.Context, r *http.Request, body []byte) (*WebhookEvent, error) {
	var charge tapCharge
	if err := json.Unmarshal(body, &charge); err != nil {
		return nil, fmt.Errorf("%w: body is not a TAP object", ErrInvalidSignature)
	}

	expected := tapHashString(&charge, t.cfg.SecretKey)
	got := r.Header.Get("hashstring")
	if got == "" || !hmac.Equal([]byte(strings.ToLower(got)), []byte(expected)) {
		return nil, ErrInvalidSignature
	}

	ev := &WebhookEvent{
		ID:         charge.ID + ":" + strings.ToUpper(charge.Status),
		Type:       strings.ToLower(firstNonEmpty(charge.Object, "charge")) + "." + strings.ToLower(charge.Status),
		OrderID:    firstNonEmpty(charge.Metadata["order_id"], charge.Reference.Order),
		ExternalID: charge.ID,
		Currency:   charge.Currency,
		Reason:     charge.Response.Message,
		Raw:        string(body),
	}
	if amount, err := i18n.ParseMajor(charge.Amount.String(), charge.Currency); err == nil {
		ev.Amount = amount
	}

	if charge.Object == "refund" {
		ev.ExternalID = charge.ChargeID
		ev.Kind = EventIgnored
		if strings.EqualFold(charge.Status, "REFUNDED") {
			ev.Kind = EventRefunded
		}
		return ev, nil
	}
	switch tapPaymentStatus(charge.Status) {
	case models.PaymentPaid:
		ev.Kind = EventPaid
	case models.PaymentFailed:
		ev.Kind = EventFailed
	default:
		ev.Kind = EventIgnored
	}
	return ev, nil
}

// tapHashString computes the hex HMAC-SHA256 TAP sends in the hashstring
// header. The amount is normalized to the currency's decimal places.
func tapHashString(c *tapCharge, secret string) string {
	amount := c.Amount.String()
	if minor, err := i18n.ParseMajor(amount, c.Currency); err == nil {
		amount = i18n.FormatMinor(minor, c.Currency)
	}
	msg := "x_id" + c.ID +
		"x_amount" + amount +
		"x_currency" + c.Currency +
		"x_gateway_reference" + c.Reference.Gateway +
		"x_payment_reference" + c.Reference.Payment +
		"x_status" + c.Status +
		"x_created" + c.Transaction.Created.String()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
