// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/souq/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestDefaultChiMiddlewareConfig(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()

	assert.Empty(t, cfg.CORSAllowedOrigins, "no origin is trusted until configured")
	assert.Contains(t, cfg.CORSAllowedHeaders, "Accept-Language")
	assert.Contains(t, cfg.CORSAllowedHeaders, "X-CSRF-Token")
	assert.Contains(t, cfg.CORSExposedHeaders, "Content-Language")
	assert.True(t, cfg.CORSAllowCredentials)
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.RateLimitDisabled)
}

func TestNewChiMiddleware_NilConfigUsesDefaults(t *testing.T) {
	m := NewChiMiddleware(nil)
	require.NotNil(t, m.config)
	assert.Equal(t, DefaultChiMiddlewareConfig(), m.config)
}

func TestNewChiMiddlewareFromConfig(t *testing.T) {
	m := NewChiMiddlewareFromConfig(config.SecurityConfig{
		CORSOrigins:     []string{"https://shop.example", "https://admin.example"},
		RateLimitReqs:   200,
		RateLimitWindow: 2 * time.Minute,
		AuthRateLimit:   3,
	})

	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, m.config.CORSAllowedOrigins)
	assert.Equal(t, 200, m.config.RateLimitRequests)
	assert.Equal(t, 2*time.Minute, m.config.RateLimitWindow)
	assert.Equal(t, 3, m.config.AuthRateLimit)
	assert.False(t, m.config.RateLimitDisabled)
}

func TestNewChiMiddlewareFromConfig_ZeroDisablesRateLimit(t *testing.T) {
	m := NewChiMiddlewareFromConfig(config.SecurityConfig{})
	assert.True(t, m.config.RateLimitDisabled)
}

func TestChiMiddleware_CORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantAllowed string
		wantHandler bool
	}{
		{"wildcard", []string{"*"}, http.MethodGet, "https://anywhere.example", "*", true},
		{"listed origin", []string{"https://shop.example"}, http.MethodGet, "https://shop.example", "https://shop.example", true},
		{"unlisted origin still served", []string{"https://shop.example"}, http.MethodGet, "https://evil.example", "", true},
		{"same-origin request", []string{"https://shop.example"}, http.MethodGet, "", "", true},
		{"preflight listed", []string{"https://shop.example"}, http.MethodOptions, "https://shop.example", "https://shop.example", false},
		{"preflight unlisted", []string{"https://shop.example"}, http.MethodOptions, "https://evil.example", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChiMiddlewareConfig()
			cfg.CORSAllowedOrigins = tt.origins
			m := NewChiMiddleware(cfg)

			called := false
			h := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/v1/products", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-CSRF-Token")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantHandler, called)
			assert.Equal(t, tt.wantAllowed, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestChiMiddleware_CORS_PreflightAllowsCSRFHeader(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"https://admin.example"}
	h := NewChiMiddleware(cfg).CORS()(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/products", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "X-CSRF-Token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

// hammer sends n requests from ip and returns the status codes.
func hammer(h http.Handler, ip string, n int) []int {
	codes := make([]int, n)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	return codes
}

func TestChiMiddleware_RateLimitDisabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true})
	for _, code := range hammer(m.RateLimit()(okHandler), "10.0.0.1", 5) {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestChiMiddleware_EndpointLimits(t *testing.T) {
	m := NewChiMiddleware(nil)
	tests := []struct {
		name  string
		mw    func(http.Handler) http.Handler
		limit int
	}{
		{"auth", m.RateLimitAuth(), RateLimitAuth.Requests},
		{"checkout", m.RateLimitCheckout(), RateLimitCheckout.Requests},
		{"subscribe", m.RateLimitSubscribe(), RateLimitSubscribe.Requests},
		{"websocket", m.RateLimitWebSocket(), RateLimitWebSocket.Requests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := hammer(tt.mw(okHandler), "10.0.1.1", tt.limit+1)
			for i, code := range codes[:tt.limit] {
				assert.Equal(t, http.StatusOK, code, "request %d", i+1)
			}
			assert.Equal(t, http.StatusTooManyRequests, codes[tt.limit])
		})
	}
}

func TestChiMiddleware_WebhookLimitIsLooserThanCheckout(t *testing.T) {
	assert.Greater(t, RateLimitWebhook.Requests, RateLimitCheckout.Requests)
	assert.Greater(t, RateLimitHealth.Requests, RateLimitWebhook.Requests)
}

func TestChiMiddleware_RateLimitPerIP(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	h := m.RateLimit()(okHandler)

	assert.Equal(t, []int{200, 200, 429}, hammer(h, "192.0.2.1", 3))
	assert.Equal(t, []int{200, 200}, hammer(h, "192.0.2.2", 2), "second shopper has its own budget")
}

func TestChiMiddleware_RateLimitAuth_Override(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{AuthRateLimit: 2})
	assert.Equal(t, []int{200, 200, 429}, hammer(m.RateLimitAuth()(okHandler), "198.51.100.7", 3))
}

func TestChiMiddleware_RateLimit_Envelope(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute})
	h := m.RateLimit()(okHandler)
	hammer(h, "203.0.113.9", 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTooManyRequests, resp.Error.Code)
}

func TestAPISecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*http.Request)
		wantHSTS bool
	}{
		{"plain http", func(*http.Request) {}, false},
		{"tls", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, true},
		{"behind proxy", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			APISecurityHeaders()(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
			assert.Equal(t, tt.wantHSTS, rec.Header().Get("Strict-Transport-Security") != "")
		})
	}
}
