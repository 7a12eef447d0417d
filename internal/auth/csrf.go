// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/souq/internal/logging"
)

// CSRF protection errors
var (
	// ErrCSRFTokenMissing indicates no CSRF token was provided.
	ErrCSRFTokenMissing = errors.New("CSRF token missing")

	// ErrCSRFTokenInvalid indicates the CSRF token is forged or doesn't match.
	ErrCSRFTokenInvalid = errors.New("CSRF token invalid")
)

// CSRFConfig holds configuration for CSRF protection.
type CSRFConfig struct {
	CookieName   string
	HeaderName   string
	CookieSecure bool
	TokenTTL     time.Duration

	// ExemptPaths are path prefixes that never need a token, such as
	// provider webhooks.
	ExemptPaths []string

	// ErrorWriter renders failures. Defaults to a JSON error body.
	ErrorWriter ErrorWriter
}

// DefaultCSRFConfig returns sensible defaults.
func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		CookieName:   "souq_csrf",
		HeaderName:   "X-CSRF-Token",
		CookieSecure: true,
		TokenTTL:     24 * time.Hour,
		ExemptPaths:  []string{"/webhooks/"},
	}
}

// CSRF implements the double-submit cookie pattern. The cookie carries a
// random nonce plus its HMAC so that only tokens minted by this server are
// accepted; unsafe requests must echo the cookie value in a header.
type CSRF struct {
	config CSRFConfig
	secret []byte
}

// NewCSRF creates CSRF protection keyed by secret.
func NewCSRF(secret string, config CSRFConfig) *CSRF {
	defaults := DefaultCSRFConfig()
	if config.CookieName == "" {
		config.CookieName = defaults.CookieName
	}
	if config.HeaderName == "" {
		config.HeaderName = defaults.HeaderName
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = defaults.TokenTTL
	}
	if config.ErrorWriter == nil {
		config.ErrorWriter = writeJSONError
	}
	return &CSRF{config: config, secret: []byte(secret)}
}

// HeaderName returns the header clients echo the token in.
func (c *CSRF) HeaderName() string {
	return c.config.HeaderName
}

func (c *CSRF) sign(nonce string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *CSRF) generate() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(b)
	return nonce + "." + c.sign(nonce), nil
}

func (c *CSRF) wellFormed(token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(c.sign(nonce)))
}

// Token returns the request's valid token, minting and setting a new cookie
// when there is none.
func (c *CSRF) Token(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(c.config.CookieName); err == nil && c.wellFormed(cookie.Value) {
		return cookie.Value
	}
	token, err := c.generate()
	if err != nil {
		logging.Error().Err(err).Msg("CSRF: failed to generate token")
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.config.TokenTTL.Seconds()),
		Secure:   c.config.CookieSecure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

// Validate checks the double-submitted token on r.
func (c *CSRF) Validate(r *http.Request) error {
	cookie, err := r.Cookie(c.config.CookieName)
	if err != nil || cookie.Value == "" {
		return ErrCSRFTokenMissing
	}
	header := r.Header.Get(c.config.HeaderName)
	if header == "" {
		return ErrCSRFTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return ErrCSRFTokenInvalid
	}
	if !c.wellFormed(cookie.Value) {
		return ErrCSRFTokenInvalid
	}
	return nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// Protect enforces the token on unsafe requests made with a session cookie.
// It must run after Middleware.Authenticate.
func (c *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || c.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		p := PrincipalFromContext(r.Context())
		if p == nil || p.Method != MethodSession {
			next.ServeHTTP(w, r)
			return
		}
		if err := c.Validate(r); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("CSRF validation failed")
			c.config.ErrorWriter(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *CSRF) exempt(path string) bool {
	for _, prefix := range c.config.ExemptPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
