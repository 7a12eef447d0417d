// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventRouter is satisfied by *events.Router.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// EventRouterService runs the domain event router. A watermill router
// cannot be restarted once closed, so every start builds a fresh one
// with its handlers registered.
type EventRouterService struct {
	build func() (EventRouter, error)
}

// NewEventRouterService creates the service. build is called on every
// (re)start.
func NewEventRouterService(build func() (EventRouter, error)) *EventRouterService {
	return &EventRouterService{build: build}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	router, err := s.build()
	if err != nil {
		return fmt.Errorf("event router build failed: %w", err)
	}
	defer router.Close()

	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("event router stopped: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("event router stopped unexpectedly")
}

func (s *EventRouterService) String() string {
	return "event-router"
}

// NATSServer is satisfied by *events.EmbeddedServer.
type NATSServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// NATSServerService supervises the embedded NATS server. The server is
// started before the bus connects to it, so the first instance is passed
// in; restarts go through start. Clients reconnect on their own.
type NATSServerService struct {
	current         NATSServer
	start           func() (NATSServer, error)
	checkInterval   time.Duration
	shutdownTimeout time.Duration
}

// NewNATSServerService wraps a running server.
func NewNATSServerService(running NATSServer, start func() (NATSServer, error)) *NATSServerService {
	return &NATSServerService{
		current:         running,
		start:           start,
		checkInterval:   5 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
}

// Serve implements suture.Service. It returns an error when the server
// stops on its own so the supervisor restarts it.
func (s *NATSServerService) Serve(ctx context.Context) error {
	if s.current == nil || !s.current.IsRunning() {
		srv, err := s.start()
		if err != nil {
			return fmt.Errorf("nats server start failed: %w", err)
		}
		s.current = srv
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.current.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("nats server shutdown failed: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.current.IsRunning() {
				return errors.New("nats server is no longer running")
			}
		}
	}
}

func (s *NATSServerService) String() string {
	return "nats-server"
}
