// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package events carries domain events between components over a watermill
// bus. The bus is an in-process gochannel by default and core NATS when a
// server URL is configured, so several storefront instances can share
// order and payment notifications.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Topics.
const (
	TopicOrderPlaced        = "orders.placed"
	TopicOrderStatusChanged = "orders.status_changed"
	TopicPaymentCompleted   = "payments.completed"
	TopicPaymentFailed      = "payments.failed"
)

// Topics lists every topic, for subscribers that want all of them.
var Topics = []string{TopicOrderPlaced, TopicOrderStatusChanged, TopicPaymentCompleted, TopicPaymentFailed}

// Event is a typed domain event.
type Event interface {
	Topic() string
}

// OrderPlaced is published after an order is committed.
type OrderPlaced struct {
	OrderID    string    `json:"order_id"`
	Number     string    `json:"number"`
	TotalMinor int64     `json:"total_minor"`
	Currency   string    `json:"currency"`
	Gateway    string    `json:"gateway"`
	At         time.Time `json:"at"`
}

// Topic implements Event.
func (OrderPlaced) Topic() string { return TopicOrderPlaced }

// OrderStatusChanged is published on every fulfilment status change.
type OrderStatusChanged struct {
	OrderID string    `json:"order_id"`
	Number  string    `json:"number"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

// Topic implements Event.
func (OrderStatusChanged) Topic() string { return TopicOrderStatusChanged }

// PaymentCompleted is published when an order becomes paid.
type PaymentCompleted struct {
	OrderID     string    `json:"order_id"`
	Number      string    `json:"number"`
	Gateway     string    `json:"gateway"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	At          time.Time `json:"at"`
}

// Topic implements Event.
func (PaymentCompleted) Topic() string { return TopicPaymentCompleted }

// PaymentFailed is published when a provider reports a failed payment.
type PaymentFailed struct {
	OrderID string    `json:"order_id"`
	Number  string    `json:"number"`
	Gateway string    `json:"gateway"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// Topic implements Event.
func (PaymentFailed) Topic() string { return TopicPaymentFailed }

// Decode unmarshals a message payload into the event type of T.
func Decode[T Event](payload []byte) (T, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decode %s: %w", ev.Topic(), err)
	}
	return ev, nil
}
