// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package testinfra

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// Capture is one request received by a ProviderServer.
type Capture struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
}

// ProviderServer is an httptest server that routes requests to handlers
// registered with Go 1.22 patterns ("POST /v1/checkout/sessions") and
// records every request. Unrouted requests get 404.
type ProviderServer struct {
	Server *httptest.Server

	mux      *http.ServeMux
	mu       sync.Mutex
	captures []Capture
}

// NewProviderServer starts a server that is closed when the test ends.
func NewProviderServer(t *testing.T) *ProviderServer {
	t.Helper()

	ps := &ProviderServer{mux: http.NewServeMux()}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body) //nolint:errcheck // test capture
			_ = r.Body.Close()
		}

		ps.mu.Lock()
		ps.captures = append(ps.captures, Capture{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		ps.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))
		ps.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ps.Server.Close)
	return ps
}

// Handle registers a handler for pattern.
func (ps *ProviderServer) Handle(pattern string, fn http.HandlerFunc) {
	ps.mux.HandleFunc(pattern, fn)
}

// URL returns the server base URL.
func (ps *ProviderServer) URL() string {
	return ps.Server.URL
}

// Captures returns a copy of the recorded requests.
func (ps *ProviderServer) Captures() []Capture {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Capture, len(ps.captures))
	copy(out, ps.captures)
	return out
}

// CapturesFor returns the recorded requests for one method and path.
func (ps *ProviderServer) CapturesFor(method, path string) []Capture {
	var out []Capture
	for _, c := range ps.Captures() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// WaitForCaptures waits until at least n requests are recorded.
func (ps *ProviderServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ps.mu.Lock()
		count := len(ps.captures)
		ps.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test response
}
