// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=256"`
	NewPassword     string `json:"new_password" validate:"required,max=256"`
}

// sessionResponse is returned by register and login.
type sessionResponse struct {
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
	CSRFToken string       `json:"csrf_token,omitempty"`
}

// tokenResponse is returned by the bearer token endpoint.
type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) string {
	if h.csrf == nil {
		return ""
	}
	return h.csrf.Token(w, r)
}

// startSession opens a cookie session for a verified email/password pair.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, email, password string) {
	u, session, err := h.auth.Login(r.Context(), email, password, audit.IPFromContext(r.Context()), r.UserAgent())
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.authMW.SetSessionCookie(w, session)
	WriteSuccess(w, r, sessionResponse{User: u, ExpiresAt: session.ExpiresAt, CSRFToken: h.csrfToken(w, r)})
}

// Register creates a customer account and signs it in. The preferred
// language defaults to the one the request resolved to.
//
// @Summary Create a customer account
// @Description Creates the account and starts a session.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body auth.Registration true "Request body"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		respondError(w, r, err)
		return
	}
	if reg.Language == "" {
		reg.Language = lang(r)
	}
	if err := validateRequest(&reg); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.auth.Register(r.Context(), reg); err != nil {
		respondError(w, r, err)
		return
	}
	h.startSession(w, r, reg.Email, reg.Password)
}

// Login opens a cookie session.
//
// @Summary Log in
// @Description Starts a cookie session. Repeated failures lock the account for a while.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	h.startSession(w, r, req.Email, req.Password)
}

// Logout ends the cookie session. Bearer tokens simply expire.
//
// @Summary Log out
// @Tags Auth
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if p := principal(r); p != nil && p.Method == auth.MethodSession {
		if err := h.auth.Logout(r.Context(), p.SessionID); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to delete session")
		}
	}
	h.authMW.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Token issues a bearer token for API clients.
//
// @Summary Issue a bearer token
// @Description Returns a signed JWT for API clients.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/v1/auth/token [post]
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	token, expires, u, err := h.auth.IssueToken(r.Context(), req.Email, req.Password, audit.IPFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, tokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires, User: u})
}

// Me returns the caller and, for staff, the admin permissions of their role.
//
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	data := map[string]interface{}{"user": p}
	if p.IsStaff() {
		perms, err := h.authz.Enforcer().Permissions(p.Role)
		if err != nil {
			respondError(w, r, err)
			return
		}
		data["permissions"] = perms
	}
	WriteSuccess(w, r, data)
}

// CSRFToken returns the double-submit token, setting its cookie if needed.
//
// @Summary Get a CSRF token
// @Description Sets the CSRF cookie and returns the token to echo in X-CSRF-Token.
// @Tags Auth
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api/v1/auth/csrf [get]
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	if h.csrf == nil {
		WriteSuccess(w, r, map[string]interface{}{"enabled": false})
		return
	}
	WriteSuccess(w, r, map[string]interface{}{
		"enabled": true,
		"token":   h.csrf.Token(w, r),
		"header":  h.csrf.HeaderName(),
	})
}

// AccountOrders lists the caller's own orders.
//
// @Summary List my orders
// @Tags Account
// @Produce json
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/account/orders [get]
func (h *Handler) AccountOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	list, total, err := h.orders.ListForUser(r.Context(), principal(r).UserID, limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, NewPagination(total, len(list), limit, offset))
}

// UpdateProfile saves the caller's name and preferred language.
//
// @Summary Update my profile
// @Tags Account
// @Accept json
// @Produce json
// @Param request body auth.Registration true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/account/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req auth.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Language != "" && !h.languages.IsSupported(req.Language) {
		respondError(w, r, errUnsupportedLanguage)
		return
	}
	u, err := h.auth.UpdateProfile(r.Context(), principal(r).UserID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, u)
}

// ChangePassword replaces the caller's password and signs out their other
// sessions.
//
// @Summary Change my password
// @Description Other sessions of the user are ended.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body passwordRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/account/password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	p := principal(r)
	if err := h.auth.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword, p.SessionID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
