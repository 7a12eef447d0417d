// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/events"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/supervisor"
	"github.com/tomtom215/souq/internal/supervisor/services"
	ws "github.com/tomtom215/souq/internal/websocket"
)

// initEvents selects the event transport:
//   - NATS_EMBEDDED starts a NATS server in process and connects to it
//   - NATS_URL connects to an external NATS server
//   - otherwise events stay in process on a gochannel bus
//
// The embedded server is returned so the supervisor can watch it.
func initEvents(cfg *config.Config) (*events.Bus, *events.EmbeddedServer, error) {
	adapter := logging.NewWatermillAdapter()

	var embedded *events.EmbeddedServer
	url := cfg.Events.NATSURL
	if cfg.Events.EmbeddedNATS {
		srv, err := startEmbeddedNATS(cfg.Events)
		if err != nil {
			return nil, nil, err
		}
		embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if url == "" {
		logging.Info().Msg("Using in-process event bus")
		return events.NewInProcessBus(adapter), nil, nil
	}

	bus, err := events.NewNATSBus(events.NATSConfig{URL: url}, adapter)
	if err != nil {
		if embedded != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = embedded.Shutdown(ctx)
			cancel()
		}
		return nil, nil, fmt.Errorf("connect NATS bus: %w", err)
	}
	logging.Info().Str("url", url).Msg("Connected NATS event bus")
	return bus, embedded, nil
}

func startEmbeddedNATS(cfg config.EventsConfig) (*events.EmbeddedServer, error) {
	srv, err := events.NewEmbeddedServer(events.ServerConfig{Host: cfg.NATSHost, Port: cfg.NATSPort})
	if err != nil {
		return nil, fmt.Errorf("start embedded NATS: %w", err)
	}
	return srv, nil
}

// addEventServices puts the NATS server (when embedded) and the event
// router on the messaging layer. The router forwards every topic to the
// admin dashboard hub and feeds order transitions into Prometheus.
func addEventServices(tree *supervisor.SupervisorTree, cfg *config.Config, bus *events.Bus, embedded *events.EmbeddedServer, hub *ws.Hub) {
	if embedded != nil {
		tree.AddMessagingService(services.NewNATSServerService(embedded, func() (services.NATSServer, error) {
			srv, err := startEmbeddedNATS(cfg.Events)
			if err != nil {
				return nil, err
			}
			return srv, nil
		}))
		logging.Info().Msg("Embedded NATS server added to supervisor tree")
	}

	tree.AddMessagingService(services.NewEventRouterService(func() (services.EventRouter, error) {
		return buildEventRouter(bus, hub)
	}))
	logging.Info().Str("transport", bus.Kind()).Msg("Event router added to supervisor tree")
}

func buildEventRouter(bus *events.Bus, hub *ws.Hub) (*events.Router, error) {
	router, err := events.NewRouter(bus, events.DefaultRouterConfig(), nil)
	if err != nil {
		return nil, err
	}
	router.Handle("order-metrics", events.TopicOrderStatusChanged, events.MetricsHandler)
	ws.NewBridge(hub).Register(router)
	return router, nil
}
