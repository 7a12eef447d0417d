// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

/*
Package main is the entry point for the Souq server.

Souq is a multilingual storefront and admin backend: a product catalog with
per-language content, carts and checkout across PayPal, Stripe, Tap, bank
transfer and cash on delivery, a blog, a newsletter and a role-based admin
API. Arabic and other right-to-left languages are first class.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("souq")
	├── DataSupervisor ("data-layer")
	│   ├── kv-gc (Badger value log GC)
	│   └── maintenance-jobs (cron: order expiry, sessions, audit retention)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket-hub (admin dashboard)
	│   ├── nats-server (only with NATS_EMBEDDED=true)
	│   ├── event-router (watermill: websocket bridge, order metrics)
	│   └── newsletter-scheduler (only with NEWSLETTER_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: .env (godotenv), then Koanf v2 defaults, config file, environment
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB, schema and migrations applied on open
 4. Key-value store: BadgerDB for carts, sessions and lockouts
 5. Languages: registry loaded from the languages table
 6. Catalog, carts, payment gateways, event bus and orders
 7. Authentication (administrator bootstrap), casbin authorization, audit
 8. Blog and newsletter
 9. HTTP handler and Chi router
 10. Supervisor tree

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	HTTP_PORT=8080
	BASE_URL=https://shop.example.com    # used in payment return and mail links
	LOG_LEVEL=info                       # trace, debug, info, warn, error
	LOG_FORMAT=json                      # json or console

	DUCKDB_PATH=/data/souq.duckdb
	KV_PATH=/data/kv

	JWT_SECRET=<32+ chars>
	ADMIN_EMAIL=admin@example.com        # created on first start
	ADMIN_PASSWORD=<password>

	STORE_CURRENCY=USD
	STORE_DEFAULT_LANGUAGE=en

	STRIPE_ENABLED=true STRIPE_SECRET_KEY=... STRIPE_WEBHOOK_SECRET=...
	PAYPAL_ENABLED=true PAYPAL_CLIENT_ID=... PAYPAL_CLIENT_SECRET=...
	TAP_ENABLED=true TAP_SECRET_KEY=...

	NATS_URL=nats://localhost:4222       # empty keeps events in process
	SMTP_HOST=smtp.example.com           # empty logs newsletter mail instead

A .env file in the working directory is read first; variables already set
in the process environment win.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections and drains in-flight requests
 2. Closes admin websocket connections
 3. Stops the event router, newsletter scheduler and cron jobs
 4. Flushes the audit buffer, closes the event bus, Badger and DuckDB
 5. Reports any services that failed to stop

# Usage Examples

Development:

	export ENVIRONMENT=development LOG_FORMAT=console COOKIE_SECURE=false
	export DUCKDB_PATH=./souq.duckdb KV_PATH=./kv
	go run ./cmd/server

Maintenance tasks (migrations, seeding, admin accounts) live in souqctl:

	go run ./cmd/souqctl --help
*/
package main
