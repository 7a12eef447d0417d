// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/orders"
)

type statusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=pending processing shipped completed cancelled"`
}

type paymentRequest struct {
	Reference string `json:"reference" validate:"omitempty,max=200"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
}

// parseDateParam accepts RFC 3339 or a plain YYYY-MM-DD date.
func parseDateParam(r *http.Request, key string) *time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

// AdminOrders lists orders with optional filters.
//
// @Summary List orders
// @Tags Admin
// @Produce json
// @Param status query string false "Order status"
// @Param payment_status query string false "Payment status"
// @Param gateway query string false "Gateway slug"
// @Param user_id query string false "Customer ID"
// @Param q query string false "Order number or email"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/orders [get]
func (h *Handler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := page(r)
	f := models.OrderFilter{
		Status:        models.OrderStatus(q.Get("status")),
		PaymentStatus: models.PaymentStatus(q.Get("payment_status")),
		Gateway:       q.Get("gateway"),
		UserID:        q.Get("user_id"),
		Search:        q.Get("q"),
		From:          parseDateParam(r, "from"),
		To:            parseDateParam(r, "to"),
		Limit:         limit,
		Offset:        offset,
	}
	list, total, err := h.orders.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, NewPagination(total, len(list), limit, offset))
}

// AdminOrder returns an order with its items and payment transactions.
//
// @Summary Get an order
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/orders/{id} [get]
func (h *Handler) AdminOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.GetDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, d)
}

// AdminOrderStatus moves an order along the fulfilment workflow.
//
// @Summary Change order status
// @Description Only allowed transitions are accepted.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body statusRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/orders/{id}/status [put]
func (h *Handler) AdminOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionStatusChange, audit.EntityOrder, o.ID, map[string]interface{}{
		"number": o.Number, "status": string(o.Status),
	})
	WriteSuccess(w, r, o)
}

// AdminCancelOrder cancels an order and returns its stock.
//
// @Summary Cancel an order
// @Description Returns reserved stock.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body paymentRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/orders/{id}/cancel [post]
func (h *Handler) AdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionStatusChange, audit.EntityOrder, o.ID, map[string]interface{}{
		"number": o.Number, "status": string(o.Status),
	})
	WriteSuccess(w, r, o)
}

func (h *Handler) readPayment(w http.ResponseWriter, r *http.Request) (orders.Payment, bool) {
	var req paymentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return orders.Payment{}, false
		}
		if err := validateRequest(&req); err != nil {
			respondError(w, r, err)
			return orders.Payment{}, false
		}
	}
	return orders.Payment{Reference: req.Reference, Reason: req.Reason, Source: "admin"}, true
}

// AdminMarkPaid records an offline payment such as a received bank
// transfer or collected cash.
//
// @Summary Mark an order paid
// @Description Used for bank transfer and cash on delivery.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body paymentRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/orders/{id}/mark-paid [post]
func (h *Handler) AdminMarkPaid(w http.ResponseWriter, r *http.Request) {
	pay, ok := h.readPayment(w, r)
	if !ok {
		return
	}
	o, err := h.orders.MarkPaid(r.Context(), chi.URLParam(r, "id"), pay)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionMarkPaid, audit.EntityOrder, o.ID, map[string]interface{}{
		"number": o.Number, "reference": pay.Reference,
	})
	WriteSuccess(w, r, o)
}

// AdminRefundOrder records a refund made outside the store.
//
// @Summary Record a refund
// @Description Records the refund; no provider API is called.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body paymentRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/orders/{id}/refund [post]
func (h *Handler) AdminRefundOrder(w http.ResponseWriter, r *http.Request) {
	pay, ok := h.readPayment(w, r)
	if !ok {
		return
	}
	o, err := h.orders.MarkRefunded(r.Context(), chi.URLParam(r, "id"), pay)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionRefund, audit.EntityOrder, o.ID, map[string]interface{}{
		"number": o.Number, "reason": pay.Reason,
	})
	WriteSuccess(w, r, o)
}
