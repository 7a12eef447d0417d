// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"errors"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/authz"
	"github.com/tomtom215/souq/internal/blog"
	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/middleware"
	"github.com/tomtom215/souq/internal/newsletter"
	"github.com/tomtom215/souq/internal/orders"
	"github.com/tomtom215/souq/internal/payment"
	"github.com/tomtom215/souq/internal/websocket"
)

// Deps are the services the API serves. Hub and Perf are optional.
type Deps struct {
	Config     *config.Config
	DB         *database.DB
	Languages  *i18n.Registry
	Catalog    *catalog.Service
	Carts      *cart.Service
	Orders     *orders.Service
	Payments   *payment.Registry
	Blog       *blog.Service
	Newsletter *newsletter.Service
	Auth       *auth.Service
	Authz      *authz.Enforcer
	Audit      *audit.Logger
	Hub        *websocket.Hub
	Perf       *middleware.PerformanceMonitor
}

// Handler holds the dependencies of every endpoint.
type Handler struct {
	cfg        *config.Config
	db         *database.DB
	languages  *i18n.Registry
	resolver   *i18n.Resolver
	catalog    *catalog.Service
	carts      *cart.Service
	orders     *orders.Service
	payments   *payment.Registry
	blog       *blog.Service
	newsletter *newsletter.Service
	auth       *auth.Service
	authMW     *auth.Middleware
	authz      *authz.Middleware
	csrf       *auth.CSRF
	audit      *audit.Logger
	hub        *websocket.Hub
	upgrader   *gorillaws.Upgrader
	perf       *middleware.PerformanceMonitor
	startTime  time.Time
}

// NewHandler validates deps and builds the handler.
func NewHandler(d Deps) (*Handler, error) {
	switch {
	case d.Config == nil:
		return nil, errors.New("api: config is required")
	case d.DB == nil, d.Languages == nil:
		return nil, errors.New("api: database and language registry are required")
	case d.Catalog == nil, d.Carts == nil, d.Orders == nil, d.Payments == nil:
		return nil, errors.New("api: catalog, cart, order and payment services are required")
	case d.Blog == nil, d.Newsletter == nil:
		return nil, errors.New("api: blog and newsletter services are required")
	case d.Auth == nil, d.Authz == nil, d.Audit == nil:
		return nil, errors.New("api: auth, authz and audit are required")
	}

	sec := d.Config.Security
	h := &Handler{
		cfg:        d.Config,
		db:         d.DB,
		languages:  d.Languages,
		resolver:   i18n.NewResolver(d.Languages, sec.CookieSecure),
		catalog:    d.Catalog,
		carts:      d.Carts,
		orders:     d.Orders,
		payments:   d.Payments,
		blog:       d.Blog,
		newsletter: d.Newsletter,
		auth:       d.Auth,
		authMW: auth.NewMiddleware(d.Auth, auth.MiddlewareConfig{
			CookieSecure:   sec.CookieSecure,
			SlidingSession: true,
			ErrorWriter:    WriteError,
		}),
		authz:     authz.NewMiddleware(d.Authz, WriteError),
		audit:     d.Audit,
		hub:       d.Hub,
		upgrader:  websocket.NewUpgrader(sec.CORSOrigins),
		perf:      d.Perf,
		startTime: time.Now(),
	}
	if sec.CSRFEnabled {
		csrfCfg := auth.DefaultCSRFConfig()
		csrfCfg.CookieSecure = sec.CookieSecure
		csrfCfg.ErrorWriter = WriteError
		h.csrf = auth.NewCSRF(sec.JWTSecret, csrfCfg)
	}
	return h, nil
}
