// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/config"
)

// EmailChannel delivers mail over SMTP, one connection per message.
type EmailChannel struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	now     func() time.Time
}

// NewEmailChannel creates an SMTP channel.
func NewEmailChannel(cfg config.SMTPConfig) *EmailChannel {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailChannel{cfg: cfg, timeout: 30 * time.Second, now: time.Now}
}

// Name returns "email".
func (c *EmailChannel) Name() string {
	return "email"
}

// Validate checks the SMTP settings.
func (c *EmailChannel) Validate() error {
	if c.cfg.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.cfg.Port <= 0 || c.cfg.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", c.cfg.Port)
	}
	if err := ValidateEmail(c.cfg.From); err != nil {
		return fmt.Errorf("invalid SMTP from address: %w", err)
	}
	return nil
}

// Send delivers msg.
func (c *EmailChannel) Send(ctx context.Context, msg *Message) (*Result, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil message")
	}
	result := &Result{Recipient: msg.To}

	if err := ValidateEmail(msg.To); err != nil {
		result.ErrorMessage = err.Error()
		result.ErrorCode = ErrorCodeInvalidRecipient
		return result, nil
	}
	if err := c.Validate(); err != nil {
		result.ErrorMessage = err.Error()
		result.ErrorCode = ErrorCodeInvalidConfig
		return result, nil
	}

	body, err := c.buildMessage(msg)
	if err != nil {
		result.ErrorMessage = err.Error()
		result.ErrorCode = ErrorCodeUnknown
		return result, nil
	}
	if err := c.sendSMTP(ctx, msg.To, body); err != nil {
		result.ErrorMessage = err.Error()
		result.ErrorCode = classifyEmailError(err)
		result.IsTransient = isTransientEmailError(result.ErrorCode)
		return result, nil
	}

	now := c.now()
	result.Success = true
	result.DeliveredAt = &now
	return result, nil
}

// buildMessage renders the RFC 5322 message. Subjects and display names
// are Q-encoded so Arabic and other non-ASCII text survives transport.
func (c *EmailChannel) buildMessage(msg *Message) ([]byte, error) {
	var b bytes.Buffer

	fromName := c.cfg.FromName
	if fromName == "" {
		fromName = "Newsletter"
	}
	from := mail.Address{Name: fromName, Address: c.cfg.From}
	domain := c.cfg.From[strings.LastIndex(c.cfg.From, "@")+1:]

	header := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }
	header("From", from.String())
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", c.now().Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.New().String()+"@"+domain+">")
	header("MIME-Version", "1.0")
	if msg.Language != "" {
		header("Content-Language", msg.Language)
	}
	if msg.ID != "" {
		header("X-Newsletter-ID", msg.ID)
	}
	if msg.UnsubscribeURL != "" {
		header("List-Unsubscribe", "<"+msg.UnsubscribeURL+">")
		header("List-Unsubscribe-Post", "List-Unsubscribe=One-Click")
	}

	text := msg.Text
	if text == "" && msg.HTML != "" {
		text = HTMLToPlaintext(msg.HTML)
	}

	if msg.HTML == "" {
		header("Content-Type", "text/plain; charset=UTF-8")
		header("Content-Transfer-Encoding", "quoted-printable")
		b.WriteString("\r\n")
		if err := writeQP(&b, text); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}

	boundary := "souq_" + strconv.FormatInt(c.now().UnixNano(), 36)
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	b.WriteString("\r\n")
	for _, part := range []struct{ ctype, content string }{
		{"text/plain", text},
		{"text/html", msg.HTML},
	} {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: " + part.ctype + "; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		if err := writeQP(&b, part.content); err != nil {
			return nil, err
		}
		b.WriteString("\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return b.Bytes(), nil
}

func writeQP(b *bytes.Buffer, s string) error {
	w := quotedprintable.NewWriter(b)
	if _, err := w.Write([]byte(s)); err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	return w.Close()
}

func (c *EmailChannel) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // best effort cleanup
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // deadline is advisory
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // best effort cleanup

	if c.cfg.UseTLS {
		tlsConfig := &tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if c.cfg.Username != "" && c.cfg.Password != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(c.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}
	// The message is accepted once DATA completes.
	_ = client.Quit() //nolint:errcheck // message already accepted
	return nil
}

func classifyEmailError(err error) string {
	var reply *textproto.Error
	if errors.As(err, &reply) {
		switch {
		case reply.Code == 421, reply.Code == 450, reply.Code == 451, reply.Code == 452:
			return ErrorCodeServerError
		case reply.Code == 535:
			return ErrorCodeAuthFailed
		case reply.Code == 550, reply.Code == 551, reply.Code == 553:
			return ErrorCodeRecipientNotFound
		case reply.Code == 552:
			return ErrorCodeContentTooLarge
		}
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "auth"):
		return ErrorCodeAuthFailed
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline"):
		return ErrorCodeTimeout
	case strings.Contains(s, "connect"), strings.Contains(s, "connection"):
		return ErrorCodeConnectionFailed
	case strings.Contains(s, "recipient"), strings.Contains(s, "mailbox"):
		return ErrorCodeRecipientNotFound
	case strings.Contains(s, "rate"), strings.Contains(s, "limit"):
		return ErrorCodeRateLimited
	case strings.Contains(s, "too large"), strings.Contains(s, "size"):
		return ErrorCodeContentTooLarge
	}
	return ErrorCodeUnknown
}

func isTransientEmailError(code string) bool {
	switch code {
	case ErrorCodeConnectionFailed, ErrorCodeTimeout, ErrorCodeRateLimited, ErrorCodeServerError:
		return true
	}
	return false
}
