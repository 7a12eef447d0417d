// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus closed")

// Publisher is what producers depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus pairs a watermill publisher and subscriber.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
	kind       string
	shared     bool // publisher and subscriber are one gochannel

	mu     sync.RWMutex
	closed bool
}

// NewInProcessBus creates a gochannel bus. Messages are delivered to every
// subscriber of a topic within this process.
func NewInProcessBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Bus{publisher: ch, subscriber: ch, logger: logger, kind: "gochannel", shared: true}
}

// NATSConfig configures the NATS bus.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// NewNATSBus connects a core NATS publisher and subscriber. JetStream is
// not used: events are notifications and the database stays the record.
func NewNATSBus(cfg NATSConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("souq"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
	jetStream := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   jetStream,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        jetStream,
	}, logger)
	if err != nil {
		_ = pub.Close() //nolint:errcheck // best effort on failed start
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub, logger: logger, kind: "nats"}, nil
}

// Kind names the transport ("gochannel" or "nats").
func (b *Bus) Kind() string { return b.kind }

// Publish encodes ev as JSON and publishes it to its topic. The request ID
// on ctx travels as message metadata.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Topic(), err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("topic", ev.Topic())
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	if err := b.publisher.Publish(ev.Topic(), msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Topic(), err)
	}
	metrics.EventsPublished.WithLabelValues(ev.Topic()).Inc()
	return nil
}

// Subscribe returns the raw message stream of a topic.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, topic)
}

// Subscriber exposes the watermill subscriber for the router.
func (b *Bus) Subscriber() message.Subscriber { return b.subscriber }

// Close stops publishing and closes both sides.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	errPub := b.publisher.Close()
	var errSub error
	if !b.shared {
		errSub = b.subscriber.Close()
	}
	return errors.Join(errPub, errSub)
}

// PublishBestEffort publishes ev and logs failures. Producers use it after
// their own transaction committed, when a lost notification must not fail
// the request.
func PublishBestEffort(ctx context.Context, pub Publisher, ev Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", ev.Topic()).Msg("Failed to publish event")
	}
}
