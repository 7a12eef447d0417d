// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/souq/internal/config"
)

// fakeSMTP is a minimal SMTP server that accepts every message, or
// rejects RCPT with rcptReply when set.
type fakeSMTP struct {
	ln        net.Listener
	rcptReply string

	mu       sync.Mutex
	messages []string
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSMTP{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) config() config.SMTPConfig {
	host, port, _ := net.SplitHostPort(s.ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return config.SMTPConfig{Host: host, Port: p, From: "news@souq.test", FromName: "Souq"}
}

func (s *fakeSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	reply := func(line string) { _ = tp.PrintfLine("%s", line) }

	reply("220 fake ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch cmd {
		case "EHLO", "HELO":
			reply("250 fake")
		case "MAIL":
			reply("250 OK")
		case "RCPT":
			if s.rcptReply != "" {
				reply(s.rcptReply)
				continue
			}
			reply("250 OK")
		case "DATA":
			reply("354 go ahead")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.messages = append(s.messages, string(data))
			s.mu.Unlock()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func (s *fakeSMTP) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func TestEmailChannel_SendMultipart(t *testing.T) {
	srv := newFakeSMTP(t)
	ch := NewEmailChannel(srv.config())

	res, err := ch.Send(context.Background(), &Message{
		ID:             "dlv-1",
		To:             "reader@example.com",
		Subject:        "عروض الأسبوع",
		HTML:           `<div dir="rtl"><p>مرحبا</p><p>Visit us</p></div>`,
		Language:       "ar",
		UnsubscribeURL: "https://shop.test/api/v1/newsletter/unsubscribe?token=abc",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success {
		t.Fatalf("Send failed: %s (%s)", res.ErrorMessage, res.ErrorCode)
	}
	if res.DeliveredAt == nil {
		t.Error("DeliveredAt not set")
	}

	got := srv.received()
	if len(got) != 1 {
		t.Fatalf("received %d messages, want 1", len(got))
	}
	m, err := mail.ReadMessage(strings.NewReader(got[0]))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if err != nil || subject != "عروض الأسبوع" {
		t.Errorf("Subject = %q (%v)", subject, err)
	}
	if h := m.Header.Get("List-Unsubscribe"); h != "<https://shop.test/api/v1/newsletter/unsubscribe?token=abc>" {
		t.Errorf("List-Unsubscribe = %q", h)
	}
	if h := m.Header.Get("List-Unsubscribe-Post"); h != "List-Unsubscribe=One-Click" {
		t.Errorf("List-Unsubscribe-Post = %q", h)
	}
	if h := m.Header.Get("X-Newsletter-ID"); h != "dlv-1" {
		t.Errorf("X-Newsletter-ID = %q", h)
	}
	if h := m.Header.Get("Content-Language"); h != "ar" {
		t.Errorf("Content-Language = %q", h)
	}

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("Content-Type = %q (%v)", mediaType, err)
	}
	mr := multipart.NewReader(m.Body, params["boundary"])
	parts := map[string]string{}
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		body, _ := io.ReadAll(p) // multipart.Reader decodes quoted-printable
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		parts[ct] = strings.ReplaceAll(string(body), "\r\n", "\n")
	}
	if !strings.Contains(parts["text/html"], `<p>مرحبا</p>`) {
		t.Errorf("html part = %q", parts["text/html"])
	}
	if parts["text/plain"] != "مرحبا\nVisit us" {
		t.Errorf("text part = %q", parts["text/plain"])
	}
}

func TestEmailChannel_PlainText(t *testing.T) {
	srv := newFakeSMTP(t)
	ch := NewEmailChannel(srv.config())

	res, err := ch.Send(context.Background(), &Message{To: "a@example.com", Subject: "Hi", Text: "Plain body"})
	if err != nil || !res.Success {
		t.Fatalf("Send = %+v, %v", res, err)
	}
	got := srv.received()
	if len(got) != 1 || !strings.Contains(got[0], "Content-Type: text/plain; charset=UTF-8") ||
		!strings.Contains(got[0], "Plain body") {
		t.Errorf("message = %q", got)
	}
}

func TestEmailChannel_Failures(t *testing.T) {
	tests := []struct {
		name          string
		cfg           func(srv *fakeSMTP) config.SMTPConfig
		rcptReply     string
		to            string
		wantCode      string
		wantTransient bool
	}{
		{
			name:     "invalid recipient",
			cfg:      (*fakeSMTP).config,
			to:       "not-an-address",
			wantCode: ErrorCodeInvalidRecipient,
		},
		{
			name: "missing host",
			cfg: func(*fakeSMTP) config.SMTPConfig {
				return config.SMTPConfig{From: "news@souq.test"}
			},
			to:       "a@example.com",
			wantCode: ErrorCodeInvalidConfig,
		},
		{
			name:      "mailbox unavailable",
			cfg:       (*fakeSMTP).config,
			rcptReply: "550 no such user",
			to:        "gone@example.com",
			wantCode:  ErrorCodeRecipientNotFound,
		},
		{
			name:          "greylisted",
			cfg:           (*fakeSMTP).config,
			rcptReply:     "451 try again later",
			to:            "busy@example.com",
			wantCode:      ErrorCodeServerError,
			wantTransient: true,
		},
		{
			name: "connection refused",
			cfg: func(*fakeSMTP) config.SMTPConfig {
				ln, _ := net.Listen("tcp", "127.0.0.1:0")
				addr := ln.Addr().(*net.TCPAddr)
				_ = ln.Close()
				return config.SMTPConfig{Host: "127.0.0.1", Port: addr.Port, From: "news@souq.test"}
			},
			to:            "a@example.com",
			wantCode:      ErrorCodeConnectionFailed,
			wantTransient: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeSMTP(t)
			srv.rcptReply = tt.rcptReply
			ch := NewEmailChannel(tt.cfg(srv))
			ch.timeout = 2 * time.Second

			res, err := ch.Send(context.Background(), &Message{To: tt.to, Subject: "x", Text: "y"})
			if err != nil {
				t.Fatalf("Send error: %v", err)
			}
			if res.Success {
				t.Fatal("Send succeeded, want failure")
			}
			if res.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %s, want %s (%s)", res.ErrorCode, tt.wantCode, res.ErrorMessage)
			}
			if res.IsTransient != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v", res.IsTransient, tt.wantTransient)
			}
		})
	}
}

func TestClassifyEmailError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("failed to set recipient: %w", &textproto.Error{Code: 550, Msg: "no"}), ErrorCodeRecipientNotFound},
		{fmt.Errorf("x: %w", &textproto.Error{Code: 421, Msg: "closing"}), ErrorCodeServerError},
		{fmt.Errorf("x: %w", &textproto.Error{Code: 552, Msg: "too big"}), ErrorCodeContentTooLarge},
		{errors.New("SMTP authentication failed: 535"), ErrorCodeAuthFailed},
		{errors.New("i/o timeout"), ErrorCodeTimeout},
		{errors.New("something odd"), ErrorCodeUnknown},
	}
	for _, tt := range tests {
		if got := classifyEmailError(tt.err); got != tt.want {
			t.Errorf("classifyEmailError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestEmailChannel_Validate(t *testing.T) {
	ch := NewEmailChannel(config.SMTPConfig{Host: "smtp.example.com", From: "bad"})
	if err := ch.Validate(); err == nil {
		t.Error("Validate accepted an invalid from address")
	}
	if ch.cfg.Port != 587 {
		t.Errorf("default port = %d, want 587", ch.cfg.Port)
	}
}
