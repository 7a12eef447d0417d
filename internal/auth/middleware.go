// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/logging"
)

// SessionCookieName is the browser session cookie.
const SessionCookieName = "souq_session"

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

func writeJSONError(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // error response
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

// MiddlewareConfig configures session cookies and error rendering.
type MiddlewareConfig struct {
	CookieSecure   bool
	SlidingSession bool
	ErrorWriter    ErrorWriter
}

// Middleware resolves the request principal.
type Middleware struct {
	service *Service
	config  MiddlewareConfig
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(service *Service, config MiddlewareConfig) *Middleware {
	if config.ErrorWriter == nil {
		config.ErrorWriter = writeJSONError
	}
	return &Middleware{service: service, config: config}
}

// Authenticate loads the principal from a bearer token, or else from the
// session cookie. A present but invalid bearer token is rejected; a stale
// session cookie is cleared and the request continues anonymously.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			p, err := m.fromBearer(r, token)
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("Bearer authentication failed")
				m.config.ErrorWriter(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		p, err := m.fromSession(r, cookie.Value)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) && !errors.Is(err, ErrAccountDisabled) {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Session lookup error")
			}
			m.ClearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	return strings.TrimSpace(header[7:]), true
}

func (m *Middleware) fromBearer(r *http.Request, token string) (*Principal, error) {
	if m.service.tokens == nil {
		return nil, errors.New("bearer tokens are not configured")
	}
	claims, err := m.service.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	u, err := m.service.users.GetUser(r.Context(), claims.Subject)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}
	return PrincipalFromUser(u, MethodBearer), nil
}

func (m *Middleware) fromSession(r *http.Request, id string) (*Principal, error) {
	ctx := r.Context()
	session, err := m.service.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u, err := m.service.users.GetUser(ctx, session.UserID)
	if errors.Is(err, database.ErrNotFound) {
		_ = m.service.sessions.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		_ = m.service.sessions.Delete(ctx, id)
		return nil, ErrAccountDisabled
	}

	if m.config.SlidingSession {
		if err := m.service.sessions.Touch(ctx, id, time.Now().Add(m.service.cfg.SessionTTL)); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to touch session")
		}
	}

	p := PrincipalFromUser(u, MethodSession)
	p.SessionID = session.ID
	return p, nil
}

// RequireAuth rejects anonymous requests with 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			m.config.ErrorWriter(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff rejects anonymous requests with 401 and customers with 403.
func (m *Middleware) RequireStaff(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFromContext(r.Context()).IsStaff() {
			m.config.ErrorWriter(w, r, http.StatusForbidden, "FORBIDDEN", "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// SetSessionCookie writes the session cookie for session.
func (m *Middleware) SetSessionCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		Secure:   m.config.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (m *Middleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   m.config.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
