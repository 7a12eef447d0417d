// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package i18n

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/text/language"
)

const (
	// LangQueryParam switches language for one request and persists it in the cookie.
	LangQueryParam = "lang"

	// LangCookieName holds the visitor's explicit language choice.
	LangCookieName = "souq_lang"

	langCookieMaxAge = 365 * 24 * time.Hour
)

type (
	ctxKey struct{}
	dirKey struct{}
)

// WithLanguage stores the resolved language code on ctx.
func WithLanguage(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, ctxKey{}, code)
}

// FromContext returns the language stored by Middleware, or "".
func FromContext(ctx context.Context) string {
	code, _ := ctx.Value(ctxKey{}).(string)
	return code
}

// DirectionFromContext returns the text direction stored by Middleware, or
// "" outside a localized request.
func DirectionFromContext(ctx context.Context) string {
	dir, _ := ctx.Value(dirKey{}).(string)
	return dir
}

// Resolver determines the language of a request.
type Resolver struct {
	registry     *Registry
	cookieSecure bool
}

// NewResolver returns a resolver backed by registry.
func NewResolver(registry *Registry, cookieSecure bool) *Resolver {
	return &Resolver{registry: registry, cookieSecure: cookieSecure}
}

// Registry returns the underlying registry.
func (rv *Resolver) Registry() *Registry {
	return rv.registry
}

// Resolve picks the language from, in order: the lang query parameter, the
// language cookie, the Accept-Language header, then the default language.
// Unsupported explicit choices are skipped.
func (rv *Resolver) Resolve(r *http.Request) string {
	if l, ok := rv.registry.Lookup(r.URL.Query().Get(LangQueryParam)); ok {
		return l.Code
	}
	if c, err := r.Cookie(LangCookieName); err == nil {
		if l, ok := rv.registry.Lookup(c.Value); ok {
			return l.Code
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		tags, _, err := language.ParseAcceptLanguage(header)
		if err == nil && len(tags) > 0 {
			return rv.registry.Match(tags...)
		}
	}
	return rv.registry.Default()
}

// SetLanguageCookie remembers an explicit language choice for a year.
func (rv *Resolver) SetLanguageCookie(w http.ResponseWriter, code string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    code,
		Path:     "/",
		MaxAge:   int(langCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   rv.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware resolves the request language, stores it on the context and
// sets Content-Language. An explicit supported ?lang= also refreshes the
// cookie.
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := rv.Resolve(r)
		if q := r.URL.Query().Get(LangQueryParam); q != "" && rv.registry.IsSupported(q) {
			rv.SetLanguageCookie(w, code)
		}
		w.Header().Set("Content-Language", code)
		w.Header().Add("Vary", "Accept-Language")
		ctx := WithLanguage(r.Context(), code)
		ctx = context.WithValue(ctx, dirKey{}, rv.registry.Direction(code))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
