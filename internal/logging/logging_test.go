// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// captureGlobal swaps the global logger for one writing into a buffer.
func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	Init(Config{Level: "debug", Format: "json", Output: &buf})
	Info().Str("order", "SQ-1001").Msg("placed")

	out := buf.String()
	if !strings.Contains(out, `"order":"SQ-1001"`) || !strings.Contains(out, `"message":"placed"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestCtxAddsIDs(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id: %s", out)
	}
	if !strings.Contains(out, `"correlation_id":"corr-1"`) {
		t.Errorf("missing correlation_id: %s", out)
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context should have no request id")
	}
}

func TestGeneratedIDs(t *testing.T) {
	t.Parallel()

	if len(GenerateRequestID()) != 36 {
		t.Error("request id should be a full uuid")
	}
	if len(GenerateCorrelationID()) != 8 {
		t.Error("correlation id should be 8 chars")
	}
	ctx := ContextWithNewCorrelationID(context.Background())
	if CorrelationIDFromContext(ctx) == "" {
		t.Error("expected generated correlation id")
	}
}

func TestSlogHandler(t *testing.T) {
	buf := captureGlobal(t)

	logger := NewSlogLogger().With("service", "http").WithGroup("req")
	logger.Warn("slow", "ms", 1200, slog.Group("peer", "ip", "10.0.0.1"))

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"service":"http"`, `"req.ms":1200`, `"req.peer.ip":"10.0.0.1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestWatermillAdapter(t *testing.T) {
	buf := captureGlobal(t)

	a := NewWatermillAdapter().With(watermill.LogFields{"topic": "orders.placed"})
	a.Error("publish failed", errors.New("boom"), watermill.LogFields{"attempt": 2})

	out := buf.String()
	for _, want := range []string{`"component":"events"`, `"topic":"orders.placed"`, `"attempt":2`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}
