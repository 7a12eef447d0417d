// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/souq/internal/newsletter"
)

// BlogPosts lists published posts localized to the request language.
//
// @Summary List published posts
// @Tags Blog
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Router /api/v1/blog/posts [get]
func (h *Handler) BlogPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	listing, err := h.blog.Published(r.Context(), lang(r), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(listing.Posts,
		NewPagination(listing.Total, len(listing.Posts), listing.Limit, listing.Offset))
}

// BlogPost returns one published post.
//
// @Summary Get a published post
// @Tags Blog
// @Produce json
// @Param slug path string true "Post slug"
// @Param lang query string false "Content language; also sets the language cookie"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/blog/posts/{slug} [get]
func (h *Handler) BlogPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.blog.Post(r.Context(), chi.URLParam(r, "slug"), lang(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// Subscribe starts double opt-in. The response is the same whether the
// address was new, pending or already confirmed.
//
// @Summary Subscribe to the newsletter
// @Description Sends a confirmation mail. Subscribing twice is not an error.
// @Tags Newsletter
// @Accept json
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Param request body subscribeRequest true "Request body"
// @Success 202 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/v1/newsletter/subscribe [post]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.newsletter.Subscribe(r.Context(), req.Email, lang(r)); err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Accepted(map[string]string{"status": "confirmation_sent"})
}

// ConfirmSubscription completes double opt-in from the emailed link.
//
// @Summary Confirm a subscription
// @Tags Newsletter
// @Produce json
// @Param token query string true "Confirmation token"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /api/v1/newsletter/confirm [get]
func (h *Handler) ConfirmSubscription(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, r, newsletter.ErrInvalidToken)
		return
	}
	sub, err := h.newsletter.Confirm(r.Context(), token)
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, map[string]string{"status": sub.Status, "email": sub.Email})
}

// Unsubscribe accepts the token from the query string, which one-click
// List-Unsubscribe-Post clients use, or from a JSON body.
//
// @Summary Unsubscribe
// @Description The token may be sent as a query parameter or in the body.
// @Tags Newsletter
// @Accept json
// @Produce json
// @Param token query string false "Unsubscribe token"
// @Param request body tokenRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /api/v1/newsletter/unsubscribe [post]
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" && !isForm(r) && r.ContentLength != 0 {
		var req tokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		token = req.Token
	}
	if token == "" {
		respondError(w, r, newsletter.ErrInvalidToken)
		return
	}
	if err := h.newsletter.Unsubscribe(r.Context(), token); err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, map[string]string{"status": "unsubscribed"})
}
