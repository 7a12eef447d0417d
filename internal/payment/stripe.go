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
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/models"
)

const (
	stripeAPIURL = "https://api.stripe.com"

	// StripeSignatureTolerance is the maximum webhook timestamp age.
	StripeSignatureTolerance = 5 * time.Minute
)

// Stripe implements Checkout Sessions.
type Stripe struct {
	cfg    config.StripeConfig
	client *apiClient
	now    func() time.Time
}

// NewStripe creates the Stripe gateway.
func NewStripe(cfg config.StripeConfig, timeout time.Duration, bs BreakerSettings) *Stripe {
	base := cfg.BaseURL
	if base == "" {
		base = stripeAPIURL
	}
	return &Stripe{cfg: cfg, client: newAPIClient(SlugStripe, base, timeout, bs), now: time.Now}
}

// Slug implements Gateway.
func (s *Stripe) Slug() string { return SlugStripe }

// Offline implements Gateway.
func (s *Stripe) Offline() bool { return false }

type stripeSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	ClientReferenceID string `json:"client_reference_id"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	PaymentIntent     string `json:"payment_intent"`
}

// Purchase creates a Checkout Session for the order total.
func (s *Stripe) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", withQuery(req.ReturnURL, "session_id={CHECKOUT_SESSION_ID}"))
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.OrderID)
	if req.Email != "" {
		form.Set("customer_email", req.Email)
	}
	form.Set("locale", stripeLocale(req.Language))
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("metadata[order_number]", req.OrderNumber)
	form.Set("payment_intent_data[metadata][order_id]", req.OrderID)

	var sess stripeSession
	err := s.client.call(ctx, "create_session", http.MethodPost, "/v1/checkout/sessions",
		formBody(form.Encode()), s.auth("souq-"+req.OrderID), &sess)
	if err != nil {
		return nil, err
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("stripe create_session: no checkout URL for %s", sess.ID)
	}
	return &PurchaseResult{RedirectURL: sess.URL, ExternalID: sess.ID, Status: models.PaymentPending}, nil
}

func (s *Stripe) auth(idempotencyKey string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
		if idempotencyKey != "" {
			r.Header.Set("Idempotency-Key", idempotencyKey)
		}
	}
}

// Complete retrieves the session named by session_id.
func (s *Stripe) Complete(ctx context.Context, req CompleteRequest) (*Result, error) {
	id := req.Query.Get("session_id")
	if id == "" {
		return nil, fmt.Errorf("%w: session_id", ErrMissingParameter)
	}
	if req.ExternalID != "" && id != req.ExternalID {
		return nil, ErrReferenceMismatch
	}

	var sess stripeSession
	if err := s.client.call(ctx, "get_session", http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id),
		nil, s.auth(""), &sess); err != nil {
		return nil, err
	}
	if sess.ClientReferenceID != req.OrderID {
		return nil, ErrReferenceMismatch
	}
	return sessionResult(&sess), nil
}

func sessionResult(sess *stripeSession) *Result {
	res := &Result{
		Status:     models.PaymentPending,
		ExternalID: sess.ID,
		Amount:     sess.AmountTotal,
		Currency:   strings.ToUpper(sess.Currency),
		Message:    "session " + sess.Status + ", payment " + sess.PaymentStatus,
	}
	if sess.PaymentIntent != "" {
		res.ExternalID = sess.PaymentIntent
	}
	switch {
	case sess.PaymentStatus == "paid":
		res.Status = models.PaymentPaid
	case sess.Status == "expired":
		res.Status = models.PaymentFailed
	}
	if raw, err := json.Marshal(sess); err == nil {
		res.Raw = string(raw)
	}
	return res
}

// ParseWebhook verifies the Stripe-Signature header and maps checkout and
// refund events.
func (s *Stripe) ParseWebhook(_ context.Context, r *http.Request, body []byte) (*WebhookEvent, error) {
	if err := VerifyStripeSignature(body, r.Header.Get("Stripe-Signature"), s.cfg.WebhookSecret, s.now()); err != nil {
		return nil, err
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("stripe webhook: decode event: %w", err)
	}
	ev := &WebhookEvent{ID: event.ID, Type: event.Type, Kind: EventIgnored, Raw: string(body)}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
		var sess stripeSession
		if err := json.Unmarshal(event.Data.Object, &sess); err != nil {
			return nil, fmt.Errorf("stripe webhook: decode session: %w", err)
		}
		ev.OrderID = sess.ClientReferenceID
		ev.ExternalID = sess.PaymentIntent
		if ev.ExternalID == "" {
			ev.ExternalID = sess.ID
		}
		ev.Amount = sess.AmountTotal
		ev.Currency = strings.ToUpper(sess.Currency)
		switch {
		case event.Type == "checkout.session.async_payment_failed":
			ev.Kind = EventFailed
			ev.Reason = "async payment failed"
		case sess.PaymentStatus == "paid":
			ev.Kind = EventPaid
		}

	case "charge.refunded":
		var charge struct {
			ID             string            `json:"id"`
			PaymentIntent  string            `json:"payment_intent"`
			AmountRefunded int64             `json:"amount_refunded"`
			Currency       string            `json:"currency"`
			Metadata       map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return nil, fmt.Errorf("stripe webhook: decode charge: %w", err)
		}
		ev.Kind = EventRefunded
		ev.OrderID = charge.Metadata["order_id"]
		ev.ExternalID = charge.PaymentIntent
		ev.Amount = charge.AmountRefunded
		ev.Currency = strings.ToUpper(charge.Currency)
	}
	return ev, nil
}

// VerifyStripeSignature checks a "t=...,v1=..." header: HMAC-SHA256 of
// "t.payload" with the endpoint secret, and a timestamp within tolerance.
func VerifyStripeSignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" || secret == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	if age := now.Sub(time.Unix(ts, 0)); age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := StripeSignature(payload, secret, ts)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrInvalidSignature)
}

// StripeSignature computes the hex v1 signature for payload at ts.
func StripeSignature(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeLocale(lang string) string {
	switch l := strings.ToLower(lang); l {
	case "ar", "de", "es", "fr", "it", "ja", "nl", "pl", "pt", "sv", "tr", "he":
		return l
	default:
		return "auto"
	}
}

// withQuery appends a raw query fragment to u.
func withQuery(u, fragment string) string {
	if strings.Contains(u, "?") {
		return u + "&" + fragment
	}
	return u + "?" + fragment
}
