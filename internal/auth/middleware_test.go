// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/souq/internal/models"
)

func principalEcho(t *testing.T, got **Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_Authenticate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "mw@example.com", "s3cret-pass")
	_, session, err := env.service.Login(ctx, "mw@example.com", "s3cret-pass", "", "")
	if err != nil {
		t.Fatal(err)
	}
	token, _, _ := env.tokens.Issue(u)

	mw := NewMiddleware(env.service, MiddlewareConfig{SlidingSession: true})

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantMethod string
	}{
		{"anonymous", func(*http.Request) {}, http.StatusNoContent, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent, MethodBearer},
		{"session cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.ID})
		}, http.StatusNoContent, MethodSession},
		{"bearer wins over cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "bearer "+token)
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.ID})
		}, http.StatusNoContent, MethodBearer},
		{"invalid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") }, http.StatusUnauthorized, ""},
		{"stale cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "no-such-session"})
		}, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *Principal
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			mw.Authenticate(principalEcho(t, &got)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantMethod == "" {
				if got != nil {
					t.Errorf("principal = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.UserID != u.ID || got.Method != tt.wantMethod {
				t.Errorf("principal = %+v, want user %s via %s", got, u.ID, tt.wantMethod)
			}
		})
	}
}

func TestMiddleware_RequireAuthAndStaff(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	mw := NewMiddleware(env.service, MiddlewareConfig{})
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name      string
		principal *Principal
		handler   func(http.Handler) http.Handler
		want      int
	}{
		{"auth anonymous", nil, mw.RequireAuth, http.StatusUnauthorized},
		{"auth customer", &Principal{UserID: "u", Role: models.RoleCustomer}, mw.RequireAuth, http.StatusOK},
		{"staff customer", &Principal{UserID: "u", Role: models.RoleCustomer}, mw.RequireStaff, http.StatusForbidden},
		{"staff editor", &Principal{UserID: "u", Role: models.RoleEditor}, mw.RequireStaff, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.principal != nil {
			req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
		}
		rec := httptest.NewRecorder()
		tt.handler(ok).ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestMiddleware_SessionCookieFlags(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	mw := NewMiddleware(env.service, MiddlewareConfig{CookieSecure: true})
	rec := httptest.NewRecorder()

	mw.SetSessionCookie(rec, testSession("u", env.service.SessionTTL()))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", c)
	}
}
