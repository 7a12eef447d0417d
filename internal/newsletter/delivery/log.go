// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/souq/internal/logging"
)

// LogChannel records messages instead of sending them. It is used when no
// SMTP host is configured.
type LogChannel struct {
	mu   sync.Mutex
	sent []Message
}

// NewLogChannel creates a log channel.
func NewLogChannel() *LogChannel {
	return &LogChannel{}
}

// Name returns "log".
func (c *LogChannel) Name() string {
	return "log"
}

// Send logs msg and keeps a copy.
func (c *LogChannel) Send(_ context.Context, msg *Message) (*Result, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil message")
	}
	if err := ValidateEmail(msg.To); err != nil {
		return &Result{Recipient: msg.To, ErrorMessage: err.Error(), ErrorCode: ErrorCodeInvalidRecipient}, nil
	}
	logging.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("language", msg.Language).
		Msg("Newsletter message (log channel, not sent)")

	c.mu.Lock()
	c.sent = append(c.sent, *msg)
	c.mu.Unlock()

	now := time.Now()
	return &Result{Success: true, Recipient: msg.To, DeliveredAt: &now}, nil
}

// Sent returns the messages logged so far.
func (c *LogChannel) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}
