// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/orders"
	"github.com/tomtom215/souq/internal/payment"
)

// maxWebhookBytes bounds provider notification bodies.
const maxWebhookBytes = 256 << 10

// gatewayOption is a checkout gateway with its fee formatted for display.
type gatewayOption struct {
	payment.Option
	FeeDisplay string `json:"fee_display,omitempty"`
}

// CheckoutGateways lists the enabled gateways localized to the request.
//
// @Summary List payment methods
// @Description Enabled gateways with localized titles, instructions and fees.
// @Tags Checkout
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Success 200 {object} APIResponse
// @Router /api/v1/checkout/gateways [get]
func (h *Handler) CheckoutGateways(w http.ResponseWriter, r *http.Request) {
	l := lang(r)
	opts, err := h.payments.Enabled(r.Context(), l, h.languages.Default())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]gatewayOption, len(opts))
	for i, o := range opts {
		out[i] = gatewayOption{Option: o}
		if o.Fee > 0 {
			out[i].FeeDisplay = i18n.Display(l, o.Fee, h.catalog.Currency())
		}
	}
	WriteSuccess(w, r, out)
}

// Checkout places an order from the visitor's cart. Online gateways
// answer with a redirect URL; offline gateways with instructions.
//
// @Summary Place an order
// @Description Reserves stock, creates the order and starts payment. Online gateways return a redirect URL.
// @Tags Checkout
// @Accept json
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Param request body orders.CheckoutRequest true "Request body"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/v1/checkout [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req orders.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	cartID := cart.ExistingCartID(r)
	if cartID == "" {
		respondError(w, r, errNoCart)
		return
	}
	req.Language = lang(r)
	if p := principal(r); p != nil {
		req.UserID = p.UserID
	}

	co, err := h.orders.PlaceOrder(r.Context(), cartID, req)
	if err != nil {
		// The order exists but the provider refused to start a payment; the
		// customer can retry from the order page until it expires.
		if co != nil && co.Order != nil && errors.Is(err, orders.ErrPaymentUnavailable) {
			logging.Ctx(r.Context()).Warn().Err(err).Str("order", co.Order.Number).Msg("Payment could not be started")
			NewResponseWriter(w, r).ErrorWithDetails(http.StatusBadGateway, ErrCodeExternalService,
				"The payment provider is unavailable, please try again",
				map[string]string{"order_number": co.Order.Number, "access_token": co.AccessToken})
			return
		}
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(co)
}

// CheckoutReturn verifies the customer's return from a provider page and
// returns the updated order.
//
// @Summary Payment return
// @Description Completes payment after the provider redirects the shopper back.
// @Tags Checkout
// @Produce json
// @Param gateway path string true "Gateway slug"
// @Param token query string true "Order access token"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/checkout/return/{gateway} [get]
func (h *Handler) CheckoutReturn(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CompleteReturn(r.Context(), chi.URLParam(r, "gateway"), r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, o)
}

// CheckoutCancel records that the customer abandoned the provider page.
//
// @Summary Payment cancelled
// @Description Marks the payment failed. The order is released by expiry.
// @Tags Checkout
// @Produce json
// @Param gateway path string true "Gateway slug"
// @Param token query string true "Order access token"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/checkout/cancel/{gateway} [get]
func (h *Handler) CheckoutCancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CancelReturn(r.Context(), chi.URLParam(r, "gateway"), r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, o)
}

// OrderLookup returns a guest order by number and access token.
//
// @Summary Look up an order
// @Description Guest order lookup by number and access token.
// @Tags Checkout
// @Produce json
// @Param number path string true "Order number"
// @Param token query string true "Order access token"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/orders/{number} [get]
func (h *Handler) OrderLookup(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, r, orders.ErrNotFound)
		return
	}
	o, err := h.orders.Lookup(r.Context(), chi.URLParam(r, "number"), token)
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, o)
}

// PaymentWebhook applies a signed provider notification. Redeliveries are
// acknowledged with 200; verification failures get 400 and processing
// failures 500, which makes the provider retry.
//
// @Summary Payment provider webhook
// @Description Verifies the provider signature and applies the payment state. Unknown and duplicate events return 200.
// @Tags Webhooks
// @Produce json
// @Param gateway path string true "Gateway slug"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /webhooks/payments/{gateway} [post]
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "gateway")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondError(w, r, errBodyTooLarge)
		return
	}

	result, err := h.orders.HandleWebhook(r.Context(), slug, r, body)
	if err != nil {
		status, code := statusFor(err)
		if result == orders.WebhookFailed {
			status, code = http.StatusInternalServerError, ErrCodeInternalError
			logging.Ctx(r.Context()).Error().Err(err).Str("gateway", sanitizeLogValue(slug)).Msg("Webhook processing failed")
		}
		WriteError(w, r, status, code, "webhook "+result)
		return
	}
	WriteSuccess(w, r, map[string]string{"result": result})
}
