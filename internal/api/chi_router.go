// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/authz"
	"github.com/tomtom215/souq/internal/middleware"
)

// Router binds the handler to its routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware set uses the defaults.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(audit.Middleware)
	r.Use(middleware.PrometheusMetrics)
	if h.perf != nil {
		r.Use(h.perf.Middleware)
	}
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(middleware.Compression)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	// API documentation; the spec itself is registered by the docs package.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// Provider notifications carry their own signatures; no session, CSRF
	// or language resolution applies.
	r.Route("/webhooks/payments", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitWebhook())
		r.Use(APISecurityHeaders())
		r.Post("/{gateway}", h.PaymentWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(h.resolver.Middleware)
		r.Use(h.authMW.Authenticate)
		if h.csrf != nil {
			r.Use(h.csrf.Protect)
		}

		router.registerStorefrontRoutes(r)
		router.registerAuthRoutes(r)
		r.Route("/admin", router.registerAdminRoutes)
	})

	return r
}

// registerStorefrontRoutes adds the public catalog, cart, checkout, blog
// and newsletter routes.
func (router *Router) registerStorefrontRoutes(r chi.Router) {
	h := router.handler

	r.Get("/languages", h.Languages)
	r.Get("/settings", h.Settings)

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/categories", h.Categories)
		r.Get("/categories/{slug}/products", h.CategoryProducts)
		r.Get("/products", h.Products)
		r.Get("/products/{slug}", h.Product)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddCartItem)
		r.Put("/items/{productID}", h.UpdateCartItem)
		r.Delete("/items/{productID}", h.RemoveCartItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/gateways", h.CheckoutGateways)
		r.With(router.chiMiddleware.RateLimitCheckout()).Post("/", h.Checkout)
		r.Get("/return/{gateway}", h.CheckoutReturn)
		r.Get("/cancel/{gateway}", h.CheckoutCancel)
	})
	r.Get("/orders/{number}", h.OrderLookup)

	r.Get("/blog/posts", h.BlogPosts)
	r.Get("/blog/posts/{slug}", h.BlogPost)

	r.Route("/newsletter", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitSubscribe()).Post("/subscribe", h.Subscribe)
		r.Get("/confirm", h.ConfirmSubscription)
		r.Post("/unsubscribe", h.Unsubscribe)
	})
}

// registerAuthRoutes adds sign-in and self-service account routes.
func (router *Router) registerAuthRoutes(r chi.Router) {
	h := router.handler

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitAuth())
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/token", h.Token)
		})
		r.Post("/logout", h.Logout)
		r.Get("/csrf", h.CSRFToken)
		r.With(h.authMW.RequireAuth).Get("/me", h.Me)
	})

	r.Route("/account", func(r chi.Router) {
		r.Use(h.authMW.RequireAuth)
		r.Get("/orders", h.AccountOrders)
		r.Put("/profile", h.UpdateProfile)
		r.Put("/password", h.ChangePassword)
	})
}

// registerAdminRoutes adds the staff routes. Every group is guarded by the
// casbin object it manages; reads need "read", everything else "write".
func (router *Router) registerAdminRoutes(r chi.Router) {
	h := router.handler
	r.Use(h.authMW.RequireStaff)
	can := h.authz.Authorize

	r.Group(func(r chi.Router) {
		r.Use(can(authz.ObjectDashboard))
		r.Get("/dashboard", h.AdminDashboard)
		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", h.AdminWebSocket)
	})

	r.Group(func(r chi.Router) {
		r.Use(can(authz.ObjectCatalog))
		r.Get("/products", h.AdminProducts)
		r.Post("/products", h.AdminCreateProduct)
		r.Get("/products/low-stock", h.AdminLowStock)
		r.Get("/products/{id}", h.AdminProduct)
		r.Put("/products/{id}", h.AdminUpdateProduct)
		r.Delete("/products/{id}", h.AdminDeleteProduct)
		r.Post("/products/{id}/stock", h.AdminAdjustStock)

		r.Get("/categories", h.AdminCategories)
		r.Post("/categories", h.AdminCreateCategory)
		r.Put("/categories/{id}", h.AdminUpdateCategory)
		r.Delete("/categories/{id}", h.AdminDeleteCategory)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(can(authz.ObjectOrders))
		r.Get("/", h.AdminOrders)
		r.Get("/{id}", h.AdminOrder)
		r.Put("/{id}/status", h.AdminOrderStatus)
		r.Post("/{id}/cancel", h.AdminCancelOrder)
		r.Post("/{id}/mark-paid", h.AdminMarkPaid)
		r.Post("/{id}/refund", h.AdminRefundOrder)
	})

	r.Route("/gateways", func(r chi.Router) {
		r.Use(can(authz.ObjectGateways))
		r.Get("/", h.AdminGateways)
		r.Put("/{slug}", h.AdminUpdateGateway)
	})

	r.Route("/posts", func(r chi.Router) {
		r.Use(can(authz.ObjectBlog))
		r.Get("/", h.AdminPosts)
		r.Post("/", h.AdminCreatePost)
		r.Get("/{id}", h.AdminPost)
		r.Put("/{id}", h.AdminUpdatePost)
		r.Delete("/{id}", h.AdminDeletePost)
		r.Post("/{id}/publish", h.AdminPublishPost)
		r.Post("/{id}/unpublish", h.AdminUnpublishPost)
	})

	r.Group(func(r chi.Router) {
		r.Use(can(authz.ObjectNewsletter))
		r.Get("/subscribers", h.AdminSubscribers)
		r.Delete("/subscribers/{id}", h.AdminDeleteSubscriber)

		r.Get("/campaigns", h.AdminCampaigns)
		r.Post("/campaigns", h.AdminCreateCampaign)
		r.Get("/campaigns/{id}", h.AdminCampaign)
		r.Put("/campaigns/{id}", h.AdminUpdateCampaign)
		r.Delete("/campaigns/{id}", h.AdminDeleteCampaign)
		r.Post("/campaigns/{id}/send", h.AdminSendCampaign)
		r.Get("/campaigns/{id}/deliveries", h.AdminCampaignDeliveries)
	})

	r.Route("/languages", func(r chi.Router) {
		r.Use(can(authz.ObjectLanguages))
		r.Get("/", h.AdminLanguages)
		r.Put("/{code}", h.AdminSaveLanguage)
		r.Delete("/{code}", h.AdminDeleteLanguage)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(can(authz.ObjectUsers))
		r.Get("/", h.AdminUsers)
		r.Post("/", h.AdminCreateUser)
		r.Put("/{id}", h.AdminUpdateUser)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Use(can(authz.ObjectSettings))
		r.Get("/", h.AdminSettings)
		r.Put("/", h.AdminSaveSettings)
	})

	r.Group(func(r chi.Router) {
		r.Use(can(authz.ObjectAudit))
		r.Get("/audit", h.AdminAudit)
		r.Get("/performance", h.AdminPerformance)
	})
}

// Routes returns h routed with middleware built from the security
// configuration.
func (h *Handler) Routes() http.Handler {
	return NewRouter(h, NewChiMiddlewareFromConfig(h.cfg.Security)).SetupChi()
}
