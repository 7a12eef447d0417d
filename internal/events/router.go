// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
)

// RouterConfig configures the handler router.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         15 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 200 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
	}
}

// HandlerFunc handles one message. Returning an error retries it.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// Router dispatches bus messages to named handlers with panic recovery
// and retry.
type Router struct {
	router *message.Router
	bus    *Bus
}

// NewRouter creates a router reading from bus.
func NewRouter(bus *Bus, cfg RouterConfig, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outer to inner: recover panics, then retry with backoff.
	wmRouter.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	return &Router{router: wmRouter, bus: bus}, nil
}

// Handle registers fn for topic under name. Handler results are counted
// per handler.
func (r *Router) Handle(name, topic string, fn HandlerFunc) {
	r.router.AddConsumerHandler(name, topic, r.bus.Subscriber(), func(msg *message.Message) error {
		ctx := msg.Context()
		if id := msg.Metadata.Get("request_id"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		err := fn(ctx, msg)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.EventsHandled.WithLabelValues(name, result).Inc()
		return err
	})
}

// Run processes messages until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once all handlers subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

// MetricsHandler feeds order status transitions into Prometheus. It is
// registered for TopicOrderStatusChanged.
func MetricsHandler(_ context.Context, msg *message.Message) error {
	ev, err := Decode[OrderStatusChanged](msg.Payload)
	if err != nil {
		// Malformed payloads are dropped rather than retried.
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable event")
		return nil
	}
	metrics.OrderStatusTransitions.WithLabelValues(ev.From, ev.To).Inc()
	return nil
}
