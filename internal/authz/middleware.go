// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package authz

import (
	"net/http"

	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
)

// Middleware enforces admin permissions on routes.
type Middleware struct {
	enforcer *Enforcer
	onError  auth.ErrorWriter
}

// NewMiddleware creates the authorization middleware. onError renders
// 401/403/500 responses.
func NewMiddleware(enforcer *Enforcer, onError auth.ErrorWriter) *Middleware {
	return &Middleware{enforcer: enforcer, onError: onError}
}

// Enforcer returns the underlying enforcer.
func (m *Middleware) Enforcer() *Enforcer {
	return m.enforcer
}

// Authorize guards a route group for object; the action comes from the
// HTTP method.
func (m *Middleware) Authorize(object string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFromContext(r.Context())
			if p == nil {
				m.onError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			action := methodToAction(r.Method)
			allowed, err := m.enforcer.Enforce(p.Role, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				m.onError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "authorization failed")
				return
			}
			metrics.RecordAuthzDecision(object, allowed)

			if !allowed {
				logging.Ctx(r.Context()).Warn().
					Str("user_id", p.UserID).
					Str("role", p.Role).
					Str("object", object).
					Str("action", action).
					Msg("Access denied")
				m.onError(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// methodToAction maps HTTP methods to Casbin actions.
func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}
