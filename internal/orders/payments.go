// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/events"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/payment"
)

// Payment is a verified payment outcome to apply to an order.
type Payment struct {
	Reference string // provider payment reference; empty keeps the stored one
	Amount    int64  // 0 skips the amount check
	Currency  string
	Source    string // "return", "webhook" or "admin"
	Reason    string
}

// payable lists the payment states an order can become paid from.
var payable = []models.PaymentStatus{models.PaymentUnpaid, models.PaymentPending, models.PaymentFailed}

func paymentIn(s models.PaymentStatus, set ...models.PaymentStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// MarkPaid records a payment. It is idempotent: an order that is already
// paid (or refunded) is returned unchanged. A pending order moves to
// processing.
func (s *Service) MarkPaid(ctx context.Context, id string, p Payment) (*models.Order, error) {
	for attempt := 0; attempt < 3; attempt++ {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !paymentIn(o.PaymentStatus, payable...) {
			return o, nil
		}
		if p.Amount != 0 && (p.Amount != o.Total || (p.Currency != "" && !strings.EqualFold(p.Currency, o.Currency))) {
			logging.Ctx(ctx).Warn().Str("order", o.Number).Int64("expected", o.Total).Int64("reported", p.Amount).
				Str("currency", p.Currency).Msg("Payment amount mismatch")
			s.recordTransaction(ctx, o, &payment.Result{
				Status: models.PaymentFailed, ExternalID: p.Reference, Amount: p.Amount, Currency: p.Currency,
				Message: "amount mismatch, payment not applied",
			})
			return nil, fmt.Errorf("%w: expected %d %s, got %d %s", ErrAmountMismatch, o.Total, o.Currency, p.Amount, p.Currency)
		}

		t := models.OrderTransition{
			OrderID:     id,
			From:        o.Status,
			FromPayment: o.PaymentStatus,
			ToPayment:   models.PaymentPaid,
			Reference:   p.Reference,
		}
		if o.Status == models.OrderPending {
			t.To = models.OrderProcessing
		}
		updated, err := s.store.TransitionOrder(ctx, t)
		if errors.Is(err, database.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, mapNotFound(err)
		}

		log := logging.Ctx(ctx).Info()
		if o.Status == models.OrderCancelled {
			log = logging.Ctx(ctx).Warn()
		}
		log.Str("order", o.Number).Str("gateway", o.Gateway).Str("source", p.Source).
			Str("reference", p.Reference).Msg("Order paid")
		metrics.RecordPayment(o.Gateway, string(models.PaymentPaid))

		events.PublishBestEffort(ctx, s.events, events.PaymentCompleted{
			OrderID: updated.ID, Number: updated.Number, Gateway: updated.Gateway,
			AmountMinor: updated.Total, Currency: updated.Currency, At: updated.UpdatedAt,
		})
		s.statusChanged(ctx, updated, o.Status)
		return updated, nil
	}
	return nil, fmt.Errorf("%w: order %s kept changing", database.ErrConflict, id)
}

// MarkFailed records a failed payment attempt. Paid orders are untouched.
func (s *Service) MarkFailed(ctx context.Context, id string, p Payment) (*models.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !paymentIn(o.PaymentStatus, models.PaymentUnpaid, models.PaymentPending) {
		return o, nil
	}
	updated, err := s.store.TransitionOrder(ctx, models.OrderTransition{
		OrderID:     id,
		FromPayment: o.PaymentStatus,
		ToPayment:   models.PaymentFailed,
	})
	if errors.Is(err, database.ErrConflict) {
		return s.Get(ctx, id)
	}
	if err != nil {
		return nil, mapNotFound(err)
	}
	logging.Ctx(ctx).Info().Str("order", o.Number).Str("gateway", o.Gateway).Str("reason", p.Reason).
		Msg("Payment failed")
	metrics.RecordPayment(o.Gateway, string(models.PaymentFailed))
	events.PublishBestEffort(ctx, s.events, events.PaymentFailed{
		OrderID: o.ID, Number: o.Number, Gateway: o.Gateway, Reason: p.Reason, At: updated.UpdatedAt,
	})
	return updated, nil
}

// MarkRefunded records a refund. Orders that have not shipped are
// cancelled and restocked.
func (s *Service) MarkRefunded(ctx context.Context, id string, p Payment) (*models.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == models.PaymentRefunded {
		return o, nil
	}
	if o.PaymentStatus != models.PaymentPaid {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, o.PaymentStatus)
	}

	t := models.OrderTransition{
		OrderID:     id,
		From:        o.Status,
		FromPayment: models.PaymentPaid,
		ToPayment:   models.PaymentRefunded,
	}
	if CanTransition(o.Status, models.OrderCancelled) {
		t.To = models.OrderCancelled
		t.Restock = true
	}
	updated, err := s.store.TransitionOrder(ctx, t)
	if errors.Is(err, database.ErrConflict) {
		return s.MarkRefunded(ctx, id, p)
	}
	if err != nil {
		return nil, mapNotFound(err)
	}
	logging.Ctx(ctx).Info().Str("order", o.Number).Str("gateway", o.Gateway).Str("source", p.Source).
		Msg("Order refunded")
	metrics.RecordPayment(o.Gateway, string(models.PaymentRefunded))
	s.statusChanged(ctx, updated, o.Status)
	return updated, nil
}

// CompleteReturn verifies a customer's return from a provider page.
// Paid orders are returned as they are, so reloading the return page is
// harmless.
func (s *Service) CompleteReturn(ctx context.Context, slug string, query url.Values) (*models.Order, error) {
	o, err := s.Lookup(ctx, query.Get("order"), query.Get("token"))
	if err != nil {
		return nil, err
	}
	if o.Gateway != slug {
		return nil, ErrNotFound
	}
	if !paymentIn(o.PaymentStatus, models.PaymentUnpaid, models.PaymentPending) {
		return o, nil
	}

	gw, err := s.gateways.Lookup(slug)
	if err != nil {
		return nil, err
	}
	res, err := gw.Complete(ctx, payment.CompleteRequest{
		OrderID:    o.ID,
		ExternalID: o.PaymentReference,
		Amount:     o.Total,
		Currency:   o.Currency,
		Query:      query,
	})
	if err != nil {
		s.recordTransaction(ctx, o, &payment.Result{Status: models.PaymentFailed, Message: "return: " + err.Error()})
		return nil, err
	}
	s.recordTransaction(ctx, o, res)

	pay := Payment{Reference: res.ExternalID, Amount: res.Amount, Currency: res.Currency, Source: "return", Reason: res.Message}
	switch res.Status {
	case models.PaymentPaid:
		return s.MarkPaid(ctx, o.ID, pay)
	case models.PaymentFailed:
		return s.MarkFailed(ctx, o.ID, pay)
	default:
		return o, nil
	}
}

// CancelReturn handles a customer abandoning the provider page. The
// payment is marked failed; the expiry job cancels the order and returns
// its stock.
func (s *Service) CancelReturn(ctx context.Context, slug string, query url.Values) (*models.Order, error) {
	o, err := s.Lookup(ctx, query.Get("order"), query.Get("token"))
	if err != nil {
		return nil, err
	}
	if o.Gateway != slug {
		return nil, ErrNotFound
	}
	return s.MarkFailed(ctx, o.ID, Payment{Source: "return", Reason: "cancelled by customer"})
}

// Webhook results recorded in metrics.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookUnmatched = "unmatched"
	WebhookInvalid   = "invalid"
	WebhookFailed    = "failed"
)

// HandleWebhook verifies and applies a provider notification. Each
// (gateway, event ID) is applied at most once; redeliveries are
// acknowledged without processing. When applying fails the event is
// forgotten again so the provider's retry can succeed.
func (s *Service) HandleWebhook(ctx context.Context, slug string, r *http.Request, body []byte) (result string, err error) {
	defer func() { metrics.RecordWebhook(slug, result) }()
	log := logging.Ctx(ctx).With().Str("gateway", slug).Logger()

	gw, err := s.gateways.Lookup(slug)
	if err != nil {
		return WebhookInvalid, err
	}
	ev, err := gw.ParseWebhook(ctx, r, body)
	if err != nil {
		log.Warn().Err(err).Msg("Rejected payment webhook")
		return WebhookInvalid, err
	}
	log = log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()

	inserted, err := s.store.RecordPaymentEvent(ctx, slug, ev.ID, ev.Type, ev.OrderID)
	if err != nil {
		return WebhookFailed, err
	}
	if !inserted {
		log.Debug().Msg("Duplicate payment webhook")
		return WebhookDuplicate, nil
	}
	if ev.Kind == payment.EventIgnored {
		return WebhookIgnored, nil
	}

	o, err := s.webhookOrder(ctx, slug, ev)
	if errors.Is(err, ErrNotFound) {
		log.Warn().Str("order_id", ev.OrderID).Str("reference", ev.ExternalID).Msg("Payment webhook matches no order")
		return WebhookUnmatched, nil
	}
	if err != nil {
		s.forget(ctx, slug, ev.ID)
		return WebhookFailed, err
	}

	pay := Payment{Reference: ev.ExternalID, Amount: ev.Amount, Currency: ev.Currency, Source: "webhook", Reason: ev.Reason}
	s.recordTransaction(ctx, o, &payment.Result{
		Status: webhookStatus(ev.Kind), ExternalID: ev.ExternalID, Amount: ev.Amount, Currency: ev.Currency,
		Message: "webhook " + ev.Type, Raw: ev.Raw,
	})
	switch ev.Kind {
	case payment.EventPaid:
		_, err = s.MarkPaid(ctx, o.ID, pay)
	case payment.EventFailed:
		_, err = s.MarkFailed(ctx, o.ID, pay)
	case payment.EventRefunded:
		pay.Amount = 0
		_, err = s.MarkRefunded(ctx, o.ID, pay)
	}
	switch {
	case err == nil:
		return WebhookProcessed, nil
	case errors.Is(err, ErrAmountMismatch), errors.Is(err, ErrInvalidTransition):
		// Retrying cannot change the outcome.
		log.Warn().Err(err).Str("order", o.Number).Msg("Payment webhook not applied")
		return WebhookIgnored, nil
	default:
		s.forget(ctx, slug, ev.ID)
		return WebhookFailed, err
	}
}

func (s *Service) webhookOrder(ctx context.Context, slug string, ev *payment.WebhookEvent) (*models.Order, error) {
	if ev.OrderID != "" {
		o, err := s.store.GetOrder(ctx, ev.OrderID)
		if err == nil {
			if o.Gateway != slug {
				return nil, ErrNotFound
			}
			return o, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}
	if ev.ExternalID == "" {
		return nil, ErrNotFound
	}
	o, err := s.store.GetOrderByPaymentReference(ctx, slug, ev.ExternalID)
	return o, mapNotFound(err)
}

func (s *Service) forget(ctx context.Context, slug, eventID string) {
	if err := s.store.ForgetPaymentEvent(ctx, slug, eventID); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("gateway", slug).Str("event_id", eventID).
			Msg("Failed to release payment event for retry")
	}
}

func webhookStatus(kind string) models.PaymentStatus {
	switch kind {
	case payment.EventPaid:
		return models.PaymentPaid
	case payment.EventRefunded:
		return models.PaymentRefunded
	default:
		return models.PaymentFailed
	}
}
