// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/orders"
)

// cartResponse is a cart with its price breakdown. Totals exclude any
// gateway fee, which is only known at checkout.
type cartResponse struct {
	*cart.View
	Totals  orders.Totals     `json:"totals"`
	Display map[string]string `json:"display"`
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=999"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, id string) {
	var view *cart.View
	if id == "" {
		view = &cart.View{Lines: []cart.Line{}, Currency: h.catalog.Currency()}
	} else {
		v, err := h.carts.View(r.Context(), id, lang(r))
		if err != nil {
			respondError(w, r, err)
			return
		}
		view = v
	}

	totals := h.orders.Totals(view.Lines, "")
	l := lang(r)
	WriteSuccess(w, r, cartResponse{
		View:   view,
		Totals: totals,
		Display: map[string]string{
			"subtotal": i18n.Display(l, totals.Subtotal, view.Currency),
			"shipping": i18n.Display(l, totals.Shipping, view.Currency),
			"tax":      i18n.Display(l, totals.Tax, view.Currency),
			"total":    i18n.Display(l, totals.Total, view.Currency),
		},
	})
}

// GetCart returns the visitor's cart. A visitor without a cart cookie gets
// an empty cart and no cookie.
//
// @Summary Get the cart
// @Description The cart named by the cart cookie. Without a cookie an empty cart is returned.
// @Tags Cart
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Success 200 {object} APIResponse
// @Router /api/v1/cart [get]
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, cart.ExistingCartID(r))
}

// ClearCart empties the cart.
//
// @Summary Empty the cart
// @Tags Cart
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api/v1/cart [delete]
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id := cart.ExistingCartID(r)
	if id != "" {
		if err := h.carts.Clear(r.Context(), id); err != nil {
			respondError(w, r, err)
			return
		}
	}
	h.writeCart(w, r, id)
}

// AddCartItem adds a product, merging with an existing line. The cart
// cookie is created on first use.
//
// @Summary Add a product to the cart
// @Description Adds quantity to an existing line. Stock is checked but not reserved.
// @Tags Cart
// @Accept json
// @Produce json
// @Param request body addItemRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /api/v1/cart/items [post]
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}

	id := cart.CartID(w, r, h.carts.TTL(), h.cfg.Security.CookieSecure)
	if _, err := h.carts.AddItem(r.Context(), id, req.ProductID, req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, r, id)
}

// UpdateCartItem sets a line quantity; zero removes the line.
//
// @Summary Change a line quantity
// @Description A quantity of 0 removes the line.
// @Tags Cart
// @Accept json
// @Produce json
// @Param productID path string true "Product ID"
// @Param request body updateItemRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /api/v1/cart/items/{productID} [put]
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	id := cart.ExistingCartID(r)
	if id == "" {
		respondError(w, r, cart.ErrItemNotInCart)
		return
	}

	if _, err := h.carts.UpdateItem(r.Context(), id, chi.URLParam(r, "productID"), req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, r, id)
}

// RemoveCartItem deletes a line.
//
// @Summary Remove a line
// @Tags Cart
// @Produce json
// @Param productID path string true "Product ID"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/cart/items/{productID} [delete]
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id := cart.ExistingCartID(r)
	if id == "" {
		respondError(w, r, cart.ErrItemNotInCart)
		return
	}
	if _, err := h.carts.RemoveItem(r.Context(), id, chi.URLParam(r, "productID")); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, r, id)
}
