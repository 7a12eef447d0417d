// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/events"
)

func TestBridge_ForwardsEvents(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(t, hub, client)

	bus := events.NewInProcessBus(nil)
	t.Cleanup(func() { _ = bus.Close() })
	router, err := events.NewRouter(bus, events.DefaultRouterConfig(), nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	NewBridge(hub).Register(router)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = router.Run(ctx) }()
	select {
	case <-router.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("router not running")
	}

	if err := bus.Publish(ctx, events.OrderPlaced{OrderID: "o1", Number: "SQ-1001", TotalMinor: 2500, Currency: "USD"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := receive(t, client)
	if msg.Type != events.TopicOrderPlaced {
		t.Fatalf("type = %q", msg.Type)
	}
	raw, ok := msg.Data.(json.RawMessage)
	if !ok {
		t.Fatalf("data is %T", msg.Data)
	}
	ev, err := events.Decode[events.OrderPlaced](raw)
	if err != nil || ev.Number != "SQ-1001" {
		t.Errorf("payload = %s (%v)", raw, err)
	}

	refresh := receive(t, client)
	if data, _ := refresh.Data.(DashboardRefreshData); refresh.Type != MessageTypeDashboard || data.OrderID != "o1" {
		t.Errorf("refresh = %+v", refresh)
	}
}

func TestBridge_HandlerDropsGarbage(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(t, hub, client)

	h := NewBridge(hub).Handler(events.TopicPaymentFailed)
	if err := h(context.Background(), message.NewMessage("m1", []byte("{broken"))); err != nil {
		t.Errorf("handler returned %v, want nil", err)
	}
	if err := h(context.Background(), message.NewMessage("m2", []byte(`{"order_id":"o2"}`))); err != nil {
		t.Fatal(err)
	}
	if msg := receive(t, client); msg.Type != events.TopicPaymentFailed {
		t.Errorf("type = %q", msg.Type)
	}
	select {
	case extra := <-client.send:
		t.Errorf("unexpected message %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
