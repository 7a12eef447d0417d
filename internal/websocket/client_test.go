// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// startFeedServer serves the hub on an httptest server.
func startFeedServer(t *testing.T, hub *Hub, origins []string) *httptest.Server {
	t.Helper()
	upgrader := NewUpgrader(origins)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(hub, upgrader, w, r, "admin-1")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestServe_HelloBroadcastAndPing(t *testing.T) {
	hub := setupHub(t)
	srv := startFeedServer(t, hub, nil)

	conn, _, err := dial(t, srv, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if msg := readMessage(t, conn); msg["type"] != MessageTypeHello {
		t.Fatalf("first message = %v", msg)
	}
	waitForCount(t, hub, 1)

	hub.BroadcastJSON("payments.completed", map[string]string{"order_id": "o9"})
	msg := readMessage(t, conn)
	data, _ := msg["data"].(map[string]any)
	if msg["type"] != "payments.completed" || data["order_id"] != "o9" {
		t.Errorf("broadcast = %v", msg)
	}

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readMessage(t, conn); msg["type"] != MessageTypePong {
		t.Errorf("reply = %v, want pong", msg)
	}

	_ = conn.Close()
	waitForCount(t, hub, 0)
}

func TestServe_RejectsForeignOrigin(t *testing.T) {
	hub := setupHub(t)
	srv := startFeedServer(t, hub, []string{"https://admin.souq.test"})

	_, resp, err := dial(t, srv, http.Header{"Origin": {"https://evil.test"}})
	if err == nil {
		t.Fatal("dial succeeded for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	conn, _, err := dial(t, srv, http.Header{"Origin": {"https://admin.souq.test"}})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	readMessage(t, conn)
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"no origin header", "", nil, true},
		{"same host", "http://shop.test", nil, true},
		{"listed", "https://admin.test", []string{"https://admin.test/"}, true},
		{"wildcard", "https://any.test", []string{"*"}, true},
		{"foreign", "https://evil.test", []string{"https://admin.test"}, false},
		{"malformed", "://bad", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://shop.test/api/v1/admin/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originAllowed(r, tt.allowed); got != tt.want {
				t.Errorf("originAllowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientConstants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
	c := NewClient(NewHub(), nil, "u1")
	if c.UserID() != "u1" || c.ID() == 0 || cap(c.send) != sendBuffer {
		t.Errorf("NewClient = %+v", c)
	}
}
