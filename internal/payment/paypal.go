// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
)

const (
	paypalLiveURL    = "https://api-m.paypal.com"
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
)

// PayPal implements the Orders v2 checkout flow.
type PayPal struct {
	cfg    config.PayPalConfig
	client *apiClient

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewPayPal creates the PayPal gateway.
func NewPayPal(cfg config.PayPalConfig, timeout time.Duration, bs BreakerSettings) *PayPal {
	base := cfg.BaseURL
	if base == "" {
		base = paypalLiveURL
		if cfg.Sandbox {
			base = paypalSandboxURL
		}
	}
	return &PayPal{cfg: cfg, client: newAPIClient(SlugPayPal, base, timeout, bs)}
}

// Slug implements Gateway.
func (p *PayPal) Slug() string { return SlugPayPal }

// Offline implements Gateway.
func (p *PayPal) Offline() bool { return false }

// accessToken returns a cached client-credentials token, renewing it a
// minute before expiry.
func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	err := p.client.call(ctx, "token", http.MethodPost, "/v1/oauth2/token",
		formBody("grant_type=client_credentials"),
		func(r *http.Request) { r.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret) }, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("paypal token: empty access token")
	}
	p.token = resp.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

func (p *PayPal) authed(ctx context.Context, extra func(*http.Request)) (func(*http.Request), error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
		if extra != nil {
			extra(r)
		}
	}, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalCapture struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Amount   paypalAmount `json:"amount"`
	CustomID string       `json:"custom_id"`
}

type paypalOrder struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []paypalCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Purchase creates a PayPal order and returns the approval link.
func (p *PayPal) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.OrderNumber,
			"custom_id":    req.OrderID,
			"invoice_id":   req.OrderNumber,
			"description":  truncate(req.Description, 120),
			"amount": paypalAmount{
				CurrencyCode: req.Currency,
				Value:        i18n.FormatMinor(req.Amount, req.Currency),
			},
		}},
		"application_context": map[string]interface{}{
			"return_url":          req.ReturnURL,
			"cancel_url":          req.CancelURL,
			"user_action":         "PAY_NOW",
			"shipping_preference": "NO_SHIPPING",
			"locale":              paypalLocale(req.Language),
		},
	}
	prepare, err := p.authed(ctx, func(r *http.Request) {
		r.Header.Set("PayPal-Request-Id", "souq-"+req.OrderID)
	})
	if err != nil {
		return nil, err
	}

	var order paypalOrder
	if err := p.client.call(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", body, prepare, &order); err != nil {
		return nil, err
	}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return &PurchaseResult{RedirectURL: l.Href, ExternalID: order.ID, Status: models.PaymentPending}, nil
		}
	}
	return nil, fmt.Errorf("paypal create_order: no approval link in response for %s", order.ID)
}

// Complete captures the approved order named by the token query parameter.
func (p *PayPal) Complete(ctx context.Context, req CompleteRequest) (*Result, error) {
	token := req.Query.Get("token")
	if token == "" {
		return nil, fmt.Errorf("%w: token", ErrMissingParameter)
	}
	if req.ExternalID != "" && token != req.ExternalID {
		return nil, ErrReferenceMismatch
	}

	prepare, err := p.authed(ctx, func(r *http.Request) {
		r.Header.Set("PayPal-Request-Id", "souq-capture-"+token)
	})
	if err != nil {
		return nil, err
	}
	orderPath := "/v2/checkout/orders/" + url.PathEscape(token)

	var order paypalOrder
	err = p.client.call(ctx, "capture", http.MethodPost, orderPath+"/capture", []byte("{}"), prepare, &order)
	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(perr.Body, "ORDER_ALREADY_CAPTURED") {
		err = p.client.call(ctx, "get_order", http.MethodGet, orderPath, nil, prepare, &order)
	}
	if err != nil {
		return nil, err
	}
	if len(order.PurchaseUnits) > 0 && order.PurchaseUnits[0].CustomID != "" && order.PurchaseUnits[0].CustomID != req.OrderID {
		return nil, ErrReferenceMismatch
	}

	res := &Result{Status: models.PaymentFailed, ExternalID: order.ID, Message: "order " + order.Status}
	if raw, err := json.Marshal(order); err == nil {
		res.Raw = string(raw)
	}
	if len(order.PurchaseUnits) == 0 || len(order.PurchaseUnits[0].Payments.Captures) == 0 {
		return res, nil
	}
	capture := order.PurchaseUnits[0].Payments.Captures[0]
	res.ExternalID = capture.ID
	res.Currency = capture.Amount.CurrencyCode
	if amount, err := i18n.ParseMajor(capture.Amount.Value, capture.Amount.CurrencyCode); err == nil {
		res.Amount = amount
	}
	switch capture.Status {
	case "COMPLETED":
		res.Status = models.PaymentPaid
	case "PENDING":
		res.Status = models.PaymentPending
	}
	res.Message = "capture " + capture.Status
	return res, nil
}

var paypalHeaders = []string{
	"PAYPAL-AUTH-ALGO",
	"PAYPAL-CERT-URL",
	"PAYPAL-TRANSMISSION-ID",
	"PAYPAL-TRANSMISSION-SIG",
	"PAYPAL-TRANSMISSION-TIME",
}

// ParseWebhook verifies the notification with PayPal's verification API
// and maps capture events.
func (p *PayPal) ParseWebhook(ctx context.Context, r *http.Request, body []byte) (*WebhookEvent, error) {
	for _, h := range paypalHeaders {
		if r.Header.Get(h) == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidSignature, h)
		}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrInvalidSignature)
	}

	verify := map[string]interface{}{
		"auth_algo":         r.Header.Get("PAYPAL-AUTH-ALGO"),
		"cert_url":          r.Header.Get("PAYPAL-CERT-URL"),
		"transmission_id":   r.Header.Get("PAYPAL-TRANSMISSION-ID"),
		"transmission_sig":  r.Header.Get("PAYPAL-TRANSMISSION-SIG"),
		"transmission_time": r.Header.Get("PAYPAL-TRANSMISSION-TIME"),
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}
	prepare, err := p.authed(ctx, nil)
	if err != nil {
		return nil, err
	}
	var verdict struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.client.call(ctx, "verify_webhook", http.MethodPost, "/v1/notifications/verify-webhook-signature",
		verify, prepare, &verdict); err != nil {
		return nil, err
	}
	if verdict.VerificationStatus != "SUCCESS" {
		return nil, fmt.Errorf("%w: verification status %q", ErrInvalidSignature, verdict.VerificationStatus)
	}

	var event struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
		Resource  struct {
			ID            string       `json:"id"`
			CustomID      string       `json:"custom_id"`
			Amount        paypalAmount `json:"amount"`
			StatusDetails struct {
				Reason string `json:"reason"`
			} `json:"status_details"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
			Links []paypalLink `json:"links"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("paypal webhook: decode event: %w", err)
	}

	ev := &WebhookEvent{
		ID:         event.ID,
		Type:       event.EventType,
		Kind:       EventIgnored,
		OrderID:    event.Resource.CustomID,
		ExternalID: event.Resource.ID,
		Currency:   event.Resource.Amount.CurrencyCode,
		Reason:     event.Resource.StatusDetails.Reason,
		Raw:        string(body),
	}
	if amount, err := i18n.ParseMajor(event.Resource.Amount.Value, event.Resource.Amount.CurrencyCode); err == nil {
		ev.Amount = amount
	}
	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		ev.Kind = EventPaid
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		ev.Kind = EventFailed
	case "PAYMENT.CAPTURE.REFUNDED", "PAYMENT.CAPTURE.REVERSED":
		ev.Kind = EventRefunded
		// A refund resource is the refund itself; its "up" link is the capture
		// the order was settled with.
		if id := paypalUpCaptureID(event.Resource.Links); id != "" {
			ev.ExternalID = id
		}
	}
	return ev, nil
}

// paypalUpCaptureID returns the capture ID from a ".../captures/{id}" link
// with rel "up", or "".
func paypalUpCaptureID(links []paypalLink) string {
	for _, l := range links {
		if l.Rel != "up" {
			continue
		}
		u, err := url.Parse(l.Href)
		if err != nil {
			continue
		}
		dir, id := path.Split(strings.TrimSuffix(u.Path, "/"))
		if id != "" && strings.HasSuffix(dir, "/captures/") {
			return id
		}
	}
	return ""
}

// paypalLocale maps a language to a PayPal locale; PayPal wants ll-CC.
func paypalLocale(lang string) string {
	switch strings.ToLower(lang) {
	case "ar":
		return "ar-SA"
	case "fr":
		return "fr-FR"
	case "de":
		return "de-DE"
	case "es":
		return "es-ES"
	case "he":
		return "he-IL"
	default:
		return "en-US"
	}
}
