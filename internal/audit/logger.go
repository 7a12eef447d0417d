// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package audit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
)

// Logger is the audit logging service.
type Logger struct {
	config    config.AuditConfig
	store     Store
	eventChan chan *models.AuditEvent
	mu        sync.RWMutex
	enabled   bool
	closed    bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	now       func() time.Time
}

// NewLogger creates an audit logger and starts its writer.
func NewLogger(store Store, cfg config.AuditConfig) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	l := &Logger{
		config:    cfg,
		store:     store,
		enabled:   cfg.Enabled,
		eventChan: make(chan *models.AuditEvent, cfg.BufferSize),
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}

	l.wg.Add(1)
	go l.asyncWriter()
	return l
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *models.AuditEvent) {
	if l.config.LogToStdout {
		data, err := json.Marshal(event)
		if err == nil {
			logging.Info().RawJSON("event", data).Msg("Audit event")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.InsertAuditEvent(ctx, event); err != nil {
		logging.Error().Err(err).Str("action", event.Action).Str("entity", event.EntityType).
			Msg("Failed to save audit event")
	}
}

// Record queues an event for the actor and client IP found in ctx.
func (l *Logger) Record(ctx context.Context, action, entityType, entityID string, details map[string]interface{}) {
	actor := SystemActor
	if p := auth.PrincipalFromContext(ctx); p != nil {
		actor = Actor{ID: p.UserID, Email: p.Email}
	}
	l.Log(&models.AuditEvent{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IP:         IPFromContext(ctx),
	})
}

// Log queues event. It never blocks; a full buffer drops the event.
func (l *Logger) Log(event *models.AuditEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.enabled || l.closed {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.now().UTC()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Str("action", event.Action).
			Msg("Audit event buffer full, dropping event")
	}
}

// List returns matching events, newest first.
func (l *Logger) List(ctx context.Context, f models.AuditFilter) ([]models.AuditEvent, int, error) {
	return l.store.ListAuditEvents(ctx, f)
}

// Cleanup deletes events older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().UTC().AddDate(0, 0, -l.config.RetentionDays)
	count, err := l.store.DeleteAuditEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logging.Ctx(ctx).Info().Int64("count", count).Msg("Cleaned up old audit events")
	}
	return count, nil
}

// SetEnabled enables or disables audit logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Enabled returns whether audit logging is enabled.
func (l *Logger) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// Close stops accepting events, flushes the buffer and returns. It is
// safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.stopChan)
	l.wg.Wait()
	return nil
}

type ipKey struct{}

// WithIP returns a copy of ctx carrying the client IP.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// IPFromContext returns the client IP stored by Middleware.
func IPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}

// Middleware stores the client IP in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(WithIP(r.Context(), ip)))
	})
}
