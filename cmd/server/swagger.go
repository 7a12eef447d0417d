// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// General API information for swag. Regenerate the docs package with:
//
//	swag init -g cmd/server/swagger.go -o docs --parseDependency --parseInternal
//
// @title Souq API
// @version 1.0
// @description Multilingual storefront and admin backend.
// @description
// @description ## Languages
// @description
// @description Content follows ?lang=, then the souq_lang cookie, then Accept-Language.
// @description Responses carry the resolved language and its text direction in meta.
// @description
// @description ## Authentication
// @description
// @description Browsers log in with POST /api/v1/auth/login and get the souq_session cookie.
// @description Unsafe cookie-authenticated requests must echo the CSRF token in X-CSRF-Token.
// @description API clients use POST /api/v1/auth/token and send "Authorization: Bearer <token>".
// @description
// @description ## Money
// @description
// @description Prices and totals are integers in the minor unit of the store currency.
// @description
// @description ## Error Responses
// @description
// @description ```json
// @description {
// @description   "success": false,
// @description   "error": {"code": "VALIDATION_ERROR", "message": "...", "details": {}}
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/souq/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT from POST /api/v1/auth/token, sent as "Bearer <token>".
//
// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name souq_session
// @description Session cookie set by POST /api/v1/auth/login. Unsafe methods also need X-CSRF-Token.
//
// @tag.name Health
// @tag.description Liveness and readiness checks
//
// @tag.name Storefront
// @tag.description Languages, settings and the localized catalog
//
// @tag.name Cart
// @tag.description Shopping cart held in the cart cookie
//
// @tag.name Checkout
// @tag.description Payment methods, order placement and guest order lookup
//
// @tag.name Blog
// @tag.description Published blog posts
//
// @tag.name Newsletter
// @tag.description Double opt-in subscription management
//
// @tag.name Auth
// @tag.description Sessions, bearer tokens and CSRF
//
// @tag.name Account
// @tag.description Signed-in customer account
//
// @tag.name Webhooks
// @tag.description Payment provider callbacks
//
// @tag.name Admin
// @tag.description Store administration; role checked per route

package main
