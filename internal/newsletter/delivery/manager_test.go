// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedChannel returns queued results per recipient, then success.
type scriptedChannel struct {
	mu      sync.Mutex
	script  map[string][]*Result
	calls   map[string]int
	active  int32
	maxSeen int32
	delay   time.Duration
}

func newScriptedChannel() *scriptedChannel {
	return &scriptedChannel{script: map[string][]*Result{}, calls: map[string]int{}}
}

func (c *scriptedChannel) Name() string { return "scripted" }

func (c *scriptedChannel) Send(_ context.Context, msg *Message) (*Result, error) {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	for {
		seen := atomic.LoadInt32(&c.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&c.maxSeen, seen, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[msg.To]++
	if queue := c.script[msg.To]; len(queue) > 0 {
		c.script[msg.To] = queue[1:]
		if queue[0] == nil {
			return nil, errors.New("channel exploded")
		}
		r := *queue[0]
		r.Recipient = msg.To
		return &r, nil
	}
	return &Result{Success: true, Recipient: msg.To}, nil
}

func (c *scriptedChannel) callsFor(to string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[to]
}

func testManager(ch Channel, cfg ManagerConfig) *Manager {
	logger := zerolog.Nop()
	return NewManager(ch, &logger, cfg)
}

func fastConfig() ManagerConfig {
	return ManagerConfig{
		MaxRetries:  2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Parallelism: 4,
	}
}

func TestManager_DeliverOrderAndCounts(t *testing.T) {
	ch := newScriptedChannel()
	ch.script["bad@example.com"] = []*Result{{ErrorCode: ErrorCodeRecipientNotFound, ErrorMessage: "550"}}
	m := testManager(ch, fastConfig())

	msgs := []*Message{
		{To: "a@example.com"},
		{To: "bad@example.com"},
		{To: "c@example.com"},
	}
	report := m.Deliver(context.Background(), msgs)

	if report.Successful != 2 || report.Failed != 1 {
		t.Fatalf("Successful=%d Failed=%d, want 2/1", report.Successful, report.Failed)
	}
	for i, msg := range msgs {
		if report.Results[i].Recipient != msg.To {
			t.Errorf("Results[%d].Recipient = %s, want %s", i, report.Results[i].Recipient, msg.To)
		}
	}
	if report.Results[1].Attempts != 1 {
		t.Errorf("permanent failure attempts = %d, want 1", report.Results[1].Attempts)
	}
	if ch.callsFor("bad@example.com") != 1 {
		t.Errorf("permanent failure retried %d times", ch.callsFor("bad@example.com"))
	}
	if report.CompletedAt.Before(report.StartedAt) {
		t.Error("CompletedAt before StartedAt")
	}
}

func TestManager_RetriesTransient(t *testing.T) {
	ch := newScriptedChannel()
	transient := &Result{ErrorCode: ErrorCodeServerError, IsTransient: true, ErrorMessage: "451"}
	ch.script["flaky@example.com"] = []*Result{transient, transient}
	ch.script["down@example.com"] = []*Result{transient, transient, transient, transient}
	m := testManager(ch, fastConfig())

	report := m.Deliver(context.Background(), []*Message{{To: "flaky@example.com"}, {To: "down@example.com"}})

	if !report.Results[0].Success || report.Results[0].Attempts != 3 {
		t.Errorf("flaky result = %+v, want success on attempt 3", report.Results[0])
	}
	if report.Results[1].Success || report.Results[1].Attempts != 3 {
		t.Errorf("down result = %+v, want failure after 3 attempts", report.Results[1])
	}
	if ch.callsFor("down@example.com") != 3 {
		t.Errorf("down calls = %d, want 3", ch.callsFor("down@example.com"))
	}
}

func TestManager_ChannelError(t *testing.T) {
	ch := newScriptedChannel()
	ch.script["x@example.com"] = []*Result{nil}
	m := testManager(ch, fastConfig())

	report := m.Deliver(context.Background(), []*Message{{To: "x@example.com"}})
	r := report.Results[0]
	if r.Success || r.ErrorCode != ErrorCodeUnknown || r.ErrorMessage != "channel exploded" {
		t.Errorf("result = %+v", r)
	}
}

func TestManager_Parallelism(t *testing.T) {
	ch := newScriptedChannel()
	ch.delay = 10 * time.Millisecond
	cfg := fastConfig()
	cfg.Parallelism = 3
	m := testManager(ch, cfg)

	msgs := make([]*Message, 12)
	for i := range msgs {
		msgs[i] = &Message{To: string(rune('a'+i)) + "@example.com"}
	}
	report := m.Deliver(context.Background(), msgs)
	if report.Successful != 12 {
		t.Fatalf("Successful = %d, want 12", report.Successful)
	}
	if got := atomic.LoadInt32(&ch.maxSeen); got > 3 {
		t.Errorf("max concurrent sends = %d, want <= 3", got)
	}
}

func TestManager_RateLimit(t *testing.T) {
	ch := newScriptedChannel()
	cfg := fastConfig()
	cfg.RatePerSecond = 20
	m := testManager(ch, cfg)

	msgs := make([]*Message, 30)
	for i := range msgs {
		msgs[i] = &Message{To: "r" + string(rune('a'+i)) + "@example.com"}
	}
	start := time.Now()
	m.Deliver(context.Background(), msgs)
	// burst of 20, then 10 more at 20/s
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("30 sends at 20/s took %v, want >= 400ms", elapsed)
	}
}

func TestManager_Canceled(t *testing.T) {
	ch := newScriptedChannel()
	m := testManager(ch, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := m.Deliver(ctx, []*Message{{To: "a@example.com"}, {To: "b@example.com"}})
	if report.Failed != 2 {
		t.Fatalf("Failed = %d, want 2", report.Failed)
	}
	if report.Results[0].ErrorCode != ErrorCodeCanceled {
		t.Errorf("ErrorCode = %s, want %s", report.Results[0].ErrorCode, ErrorCodeCanceled)
	}
}

func TestManager_EmptyBatch(t *testing.T) {
	m := testManager(newScriptedChannel(), fastConfig())
	report := m.Deliver(context.Background(), nil)
	if report.Successful != 0 || report.Failed != 0 || len(report.Results) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestCalculateBackoff(t *testing.T) {
	m := testManager(newScriptedChannel(), ManagerConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{40, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := m.calculateBackoff(tt.attempt, nil); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	after := 7 * time.Second
	if got := m.calculateBackoff(1, &Result{RetryAfter: &after}); got != after {
		t.Errorf("RetryAfter ignored: got %v", got)
	}
}
