// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/souq/internal/logging"
)

func TestDecode(t *testing.T) {
	ev, err := Decode[PaymentCompleted]([]byte(`{"order_id":"o1","gateway":"stripe","amount_minor":500}`))
	require.NoError(t, err)
	assert.Equal(t, "o1", ev.OrderID)
	assert.Equal(t, int64(500), ev.AmountMinor)

	_, err = Decode[OrderPlaced]([]byte(`not json`))
	assert.ErrorContains(t, err, TopicOrderPlaced)
}

func TestInProcessBus_PublishSubscribe(t *testing.T) {
	bus := NewInProcessBus(nil)
	t.Cleanup(func() { _ = bus.Close() })
	assert.Equal(t, "gochannel", bus.Kind())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := bus.Subscribe(ctx, TopicOrderPlaced)
	require.NoError(t, err)

	reqCtx := logging.ContextWithRequestID(ctx, "req-42")
	require.NoError(t, bus.Publish(reqCtx, OrderPlaced{OrderID: "o1", Number: "SQ-1001", TotalMinor: 1500, Currency: "USD"}))

	select {
	case msg := <-msgs:
		ev, err := Decode[OrderPlaced](msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, "SQ-1001", ev.Number)
		assert.Equal(t, "req-42", msg.Metadata.Get("request_id"))
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(ctx, OrderPlaced{}), ErrBusClosed)
	assert.NoError(t, bus.Close())
}

func TestRouter_RetriesAndRecovers(t *testing.T) {
	bus := NewInProcessBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	cfg := DefaultRouterConfig()
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	router, err := NewRouter(bus, cfg, nil)
	require.NoError(t, err)

	var attempts, handled, panicked atomic.Int32
	router.Handle("flaky", TopicPaymentFailed, func(ctx context.Context, msg *message.Message) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		handled.Add(1)
		return nil
	})
	router.Handle("panicky", TopicPaymentCompleted, func(ctx context.Context, msg *message.Message) error {
		if panicked.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})
	router.Handle("metrics", TopicOrderStatusChanged, MetricsHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	require.NoError(t, bus.Publish(ctx, PaymentCompleted{OrderID: "o1"}))
	require.NoError(t, bus.Publish(ctx, PaymentFailed{OrderID: "o1", Reason: "declined"}))
	require.NoError(t, bus.Publish(ctx, OrderStatusChanged{OrderID: "o1", From: "pending", To: "processing"}))

	assert.Eventually(t, func() bool { return handled.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return panicked.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
	require.NoError(t, router.Close())
}

func TestNATSBus_EmbeddedServer(t *testing.T) {
	srv, err := NewEmbeddedServer(ServerConfig{Port: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	assert.True(t, srv.IsRunning())

	bus, err := NewNATSBus(NATSConfig{URL: srv.ClientURL()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	assert.Equal(t, "nats", bus.Kind())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := bus.Subscribe(ctx, TopicOrderStatusChanged)
	require.NoError(t, err)

	// Core NATS drops messages published before the subscription is
	// registered on the server, so publish until one arrives.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case msg := <-msgs:
			ev, err := Decode[OrderStatusChanged](msg.Payload)
			require.NoError(t, err)
			assert.Equal(t, "shipped", ev.To)
			msg.Ack()
			return
		case <-tick.C:
			require.NoError(t, bus.Publish(ctx, OrderStatusChanged{OrderID: "o1", From: "processing", To: "shipped"}))
		case <-deadline:
			t.Fatal("message not delivered over NATS")
		}
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	PublishBestEffort(context.Background(), &r, OrderPlaced{OrderID: "o1"})
	PublishBestEffort(context.Background(), &r, PaymentFailed{OrderID: "o1"})
	assert.Equal(t, []string{TopicOrderPlaced, TopicPaymentFailed}, r.Topics())
	r.Reset()
	assert.Empty(t, r.Events())
	PublishBestEffort(context.Background(), nil, OrderPlaced{})
}
