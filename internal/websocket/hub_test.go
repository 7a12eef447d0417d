// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package websocket

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/souq/internal/logging"
)

//nolint:gochecknoinits // quiet logs for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// setupHub starts a hub that stops with the test.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func createTestClient(hub *Hub) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, sendBuffer)}
}

// registerClient registers client and consumes its hello message.
func registerClient(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.Register <- client
	msg := receive(t, client)
	if msg.Type != MessageTypeHello {
		t.Fatalf("first message = %q, want hello", msg.Type)
	}
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.GetClientCount(), want)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.clients == nil || hub.broadcast == nil || hub.Register == nil || hub.Unregister == nil {
		t.Fatal("NewHub left fields nil")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount = %d, want 0", hub.GetClientCount())
	}
}

func TestHub_RegisterSendsHello(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	hub.Register <- client

	msg := receive(t, client)
	hello, ok := msg.Data.(HelloData)
	if msg.Type != MessageTypeHello || !ok {
		t.Fatalf("message = %+v", msg)
	}
	if hello.ClientID != client.id || hello.Clients != 1 {
		t.Errorf("hello = %+v", hello)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := setupHub(t)
	clients := []*Client{createTestClient(hub), createTestClient(hub), createTestClient(hub)}
	for _, c := range clients {
		registerClient(t, hub, c)
	}

	if !hub.BroadcastJSON("orders.placed", map[string]string{"number": "SQ-1001"}) {
		t.Fatal("BroadcastJSON dropped the message")
	}
	for i, c := range clients {
		msg := receive(t, c)
		if msg.Type != "orders.placed" {
			t.Errorf("client %d got %q", i, msg.Type)
		}
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(t, hub, client)

	hub.Unregister <- client
	waitForCount(t, hub, 0)
	if _, ok := <-client.send; ok {
		t.Error("send channel still open after unregister")
	}

	// A second unregister is harmless.
	hub.Unregister <- client
	waitForCount(t, hub, 0)
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := setupHub(t)
	slow := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 1)}
	fast := createTestClient(hub)
	hub.Register <- slow // hello fills the single slot
	registerClient(t, hub, fast)
	waitForCount(t, hub, 2)

	hub.BroadcastJSON("orders.placed", nil)
	receive(t, fast)
	waitForCount(t, hub, 1)
}

func TestHub_DashboardRefresh(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(t, hub, client)

	hub.BroadcastDashboardRefresh("orders.placed", "o1")
	msg := receive(t, client)
	data, ok := msg.Data.(DashboardRefreshData)
	if msg.Type != MessageTypeDashboard || !ok || data.OrderID != "o1" || data.Timestamp == "" {
		t.Errorf("message = %+v", msg)
	}
}

func TestHub_BroadcastQueueFull(t *testing.T) {
	hub := NewHub() // not running, nothing drains the queue
	for i := 0; i < cap(hub.broadcast); i++ {
		if !hub.BroadcastJSON("x", i) {
			t.Fatalf("message %d dropped early", i)
		}
	}
	if hub.BroadcastJSON("x", "overflow") {
		t.Error("BroadcastJSON accepted a message on a full queue")
	}
}

func TestHub_RunWithContextClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.RunWithContext(ctx) }()

	client := createTestClient(hub)
	registerClient(t, hub, client)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("clients left after shutdown: %d", hub.GetClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("client channel not closed on shutdown")
	}
}

func TestGetShutdownReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled = %s", got)
	}
	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline = %s", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	b, err := MarshalMessage(Message{Type: MessageTypePong})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(b); got != `{"type":"pong"}` {
		t.Errorf("MarshalMessage = %s", got)
	}
	b, _ = MarshalMessage(Message{Type: "orders.placed", Data: map[string]int{"total_minor": 1500}})
	if !strings.Contains(string(b), `"total_minor":1500`) {
		t.Errorf("MarshalMessage = %s", b)
	}
}
