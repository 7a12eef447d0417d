// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package websocket

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/events"
	"github.com/tomtom215/souq/internal/logging"
)

// Bridge forwards domain events from the event router to the hub.
type Bridge struct {
	hub *Hub
}

// NewBridge creates a bridge feeding hub.
func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

// Register adds one handler per event topic to router.
func (b *Bridge) Register(router *events.Router) {
	for _, topic := range events.Topics {
		router.Handle("websocket-"+topic, topic, b.Handler(topic))
	}
}

// Handler returns the router handler for topic. Events are forwarded with
// the topic as message type and the event payload as data. Payment and
// placement events also trigger a dashboard refresh.
func (b *Bridge) Handler(topic string) events.HandlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		if !json.Valid(msg.Payload) {
			logging.Ctx(ctx).Warn().Str("topic", topic).Str("message_uuid", msg.UUID).
				Msg("Dropping undecodable event")
			return nil
		}
		if b.hub.GetClientCount() == 0 {
			return nil
		}
		b.hub.BroadcastJSON(topic, json.RawMessage(msg.Payload))

		switch topic {
		case events.TopicOrderPlaced, events.TopicPaymentCompleted:
			var ref struct {
				OrderID string `json:"order_id"`
			}
			_ = json.Unmarshal(msg.Payload, &ref)
			b.hub.BroadcastDashboardRefresh(topic, ref.OrderID)
		}
		return nil
	}
}
