// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

/*
Package supervisor runs Souq's long-lived services under a suture v4
supervision tree.

# Layout

	souq
	├── data-layer
	│   ├── kv-gc              Badger value log GC (carts, sessions, lockouts)
	│   └── maintenance-jobs   cron: expire orders, clean sessions, prune audit
	├── messaging-layer
	│   ├── websocket-hub      admin dashboard fan-out
	│   ├── nats-server        embedded NATS, only with events.embedded_nats
	│   ├── event-router       watermill handlers (metrics, dashboard bridge)
	│   └── newsletter-scheduler
	└── api-layer
	    └── http-server

Each layer has its own failure counter, so a newsletter scheduler stuck in
backoff never takes checkout down with it.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

Supervisor events (starts, failures, backoff) are logged through
sutureslog, whose slog handler forwards to zerolog.
*/
package supervisor
