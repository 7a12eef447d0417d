// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package delivery sends newsletter mail.
//
// A Channel delivers one message to one recipient. The Manager fans a
// campaign out over a bounded worker pool, throttles sends with a token
// bucket, and retries transient failures with exponential backoff.
//
// Channels:
//   - Email: SMTP with multipart HTML and plaintext bodies
//   - Log: writes messages to the log instead of sending (development)
//
// Credentials are never logged.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Channel delivers newsletter messages.
type Channel interface {
	// Name returns the channel identifier used in metrics.
	Name() string

	// Send delivers msg. Delivery failures are reported in the Result;
	// the error is reserved for misuse such as a nil message.
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// Message is one rendered newsletter for one recipient.
type Message struct {
	// ID is the delivery identifier, sent as X-Newsletter-ID.
	ID string

	To       string
	Subject  string
	HTML     string
	Text     string
	Language string

	// UnsubscribeURL populates the List-Unsubscribe headers.
	UnsubscribeURL string
}

// Result is the outcome of a delivery attempt.
type Result struct {
	Success      bool
	Recipient    string
	DeliveredAt  *time.Time
	ErrorMessage string
	ErrorCode    string

	// IsTransient reports whether retrying may succeed.
	IsTransient bool

	// RetryAfter overrides the backoff for the next attempt.
	RetryAfter *time.Duration

	// Attempts counts send attempts, including the first.
	Attempts int
}

// Error codes for delivery failures.
const (
	ErrorCodeInvalidConfig     = "INVALID_CONFIG"
	ErrorCodeInvalidRecipient  = "INVALID_RECIPIENT"
	ErrorCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrorCodeAuthFailed        = "AUTH_FAILED"
	ErrorCodeRateLimited       = "RATE_LIMITED"
	ErrorCodeContentTooLarge   = "CONTENT_TOO_LARGE"
	ErrorCodeRecipientNotFound = "RECIPIENT_NOT_FOUND"
	ErrorCodeServerError       = "SERVER_ERROR"
	ErrorCodeTimeout           = "TIMEOUT"
	ErrorCodeCanceled          = "CANCELED"
	ErrorCodeUnknown           = "UNKNOWN"
)

// ValidateEmail performs a cheap syntax check of an address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email address is required")
	}
	if strings.ContainsAny(email, "\r\n<>") {
		return fmt.Errorf("invalid email address format: %q", email)
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid email address format: %s", email)
	}
	if !strings.Contains(parts[1], ".") {
		return fmt.Errorf("invalid email domain: %s", parts[1])
	}
	return nil
}

// HTMLToPlaintext strips tags for the plaintext alternative. Block-level
// closing tags and <br> become line breaks.
func HTMLToPlaintext(html string) string {
	replacer := strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</p>", "\n", "</div>", "\n", "</li>", "\n", "</h1>", "\n", "</h2>", "\n", "</h3>", "\n",
	)
	html = replacer.Replace(html)

	var result strings.Builder
	inTag := false
	for _, r := range html {
		switch r {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				result.WriteRune(r)
			}
		}
	}

	text := strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
	).Replace(result.String())

	lines := strings.Split(text, "\n")
	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}
