// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveCompressed(t *testing.T, contentType, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = io.WriteString(w, body)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompression_JSON(t *testing.T) {
	body := `{"data":[` + strings.Repeat(`{"name":"تمر"},`, 100) + `{}]}`
	rec := serveCompressed(t, "application/json", body, map[string]string{"Accept-Encoding": "gzip, br"})

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q", rec.Header().Get("Content-Encoding"))
	}
	if rec.Header().Get("Vary") != "Accept-Encoding" {
		t.Errorf("Vary = %q", rec.Header().Get("Vary"))
	}
	gr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	got, _ := io.ReadAll(gr)
	if string(got) != body {
		t.Error("decompressed body differs")
	}
}

func TestCompression_PassThrough(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		headers     map[string]string
	}{
		{"no accept-encoding", "application/json", nil},
		{"websocket upgrade", "application/json", map[string]string{"Accept-Encoding": "gzip", "Upgrade": "websocket"}},
		{"binary content", "image/png", map[string]string{"Accept-Encoding": "gzip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveCompressed(t, tt.contentType, "payload", tt.headers)
			if rec.Header().Get("Content-Encoding") != "" {
				t.Errorf("response was encoded")
			}
			if rec.Body.String() != "payload" {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestCompression_SniffsContentType(t *testing.T) {
	rec := serveCompressed(t, "", "<html><body>hi</body></html>", map[string]string{"Accept-Encoding": "gzip"})
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("sniffed text/html was not compressed")
	}
}
