// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package newsletter manages double opt-in subscribers and multilingual
// campaigns.
//
// Subscribers sign up in a language, confirm through a mailed token, and
// can unsubscribe with the token carried in every campaign. Campaigns hold
// a subject and HTML body per language; each subscriber receives their own
// language, falling back to the store default. Delivery goes through the
// delivery package and the scheduler sub-package runs due campaigns.
package newsletter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/newsletter/delivery"
	"github.com/tomtom215/souq/internal/validation"
)

var (
	// ErrNotFound is returned for unknown subscribers and campaigns.
	ErrNotFound = errors.New("newsletter: not found")

	// ErrInvalidToken is returned for unknown confirm or unsubscribe tokens.
	ErrInvalidToken = errors.New("newsletter: invalid or expired token")

	// ErrCampaignBusy is returned when a campaign is sending or cannot be
	// claimed for another run.
	ErrCampaignBusy = errors.New("newsletter: campaign is sending or already sent")
)

// Store is the newsletter persistence. *database.DB implements it.
type Store interface {
	CreateSubscriber(ctx context.Context, s *models.Subscriber) error
	GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	GetSubscriberByConfirmToken(ctx context.Context, token string) (*models.Subscriber, error)
	GetSubscriberByUnsubscribeToken(ctx context.Context, token string) (*models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, s *models.Subscriber) error
	DeleteSubscriber(ctx context.Context, id string) error
	ListSubscribers(ctx context.Context, status string, limit, offset int) ([]models.Subscriber, int, error)
	ActiveSubscribers(ctx context.Context) ([]models.Subscriber, error)
	CountSubscribersByStatus(ctx context.Context) (map[string]int, error)

	CreateCampaign(ctx context.Context, c *models.Campaign) error
	UpdateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, status string, limit, offset int) ([]models.Campaign, int, error)
	DueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error)
	ClaimCampaign(ctx context.Context, id string) error
	FinishCampaign(ctx context.Context, id, status string, sent, failed int, ranAt time.Time, next *time.Time) error
	DeleteCampaign(ctx context.Context, id string) error

	InsertDelivery(ctx context.Context, d *models.Delivery) error
	ListDeliveries(ctx context.Context, campaignID string, limit, offset int) ([]models.Delivery, error)
	CampaignDeliveryStats(ctx context.Context, campaignID string) (*database.DeliveryStats, error)
}

// Sender delivers a batch of rendered messages. *delivery.Manager
// implements it.
type Sender interface {
	Deliver(ctx context.Context, msgs []*delivery.Message) *delivery.Report
}

// Config holds the values campaign templates and links are built from.
type Config struct {
	StoreName string
	// BaseURL is the public origin used for confirm and unsubscribe links.
	BaseURL string
}

// Service implements subscriber and campaign operations.
type Service struct {
	store    Store
	registry *i18n.Registry
	sender   Sender
	engine   *TemplateEngine
	cfg      Config
	now      func() time.Time
}

// NewService creates a newsletter service.
func NewService(store Store, registry *i18n.Registry, sender Sender, cfg Config) *Service {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		store:    store,
		registry: registry,
		sender:   sender,
		engine:   NewTemplateEngine(),
		cfg:      cfg,
		now:      time.Now,
	}
}

type subscribeInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// Subscribe starts or restarts double opt-in for email. Confirmed
// subscribers are returned unchanged. Pending subscribers get the
// confirmation resent and unsubscribed addresses return to pending with a
// fresh token. An unsupported language falls back to the default.
func (s *Service) Subscribe(ctx context.Context, email, lang string) (*models.Subscriber, error) {
	email = database.NormalizeEmail(email)
	if verr := validation.ValidateStruct(subscribeInput{Email: email}); verr != nil {
		return nil, verr
	}
	if !s.registry.IsSupported(lang) {
		lang = s.registry.Default()
	}

	sub, err := s.store.GetSubscriberByEmail(ctx, email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		sub, err = s.createPending(ctx, email, lang)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case sub.Status == models.SubscriberSubscribed:
		return sub, nil
	case sub.Status == models.SubscriberUnsubscribed:
		sub.Status = models.SubscriberPending
		sub.ConfirmToken = newToken()
		sub.ConfirmedAt = nil
		sub.Language = lang
		if err := s.store.UpdateSubscriber(ctx, sub); err != nil {
			return nil, err
		}
	default:
		if sub.ConfirmToken == "" {
			sub.ConfirmToken = newToken()
		}
		sub.Language = lang
		if err := s.store.UpdateSubscriber(ctx, sub); err != nil {
			return nil, err
		}
	}

	s.sendConfirmation(ctx, sub)
	return sub, nil
}

func (s *Service) createPending(ctx context.Context, email, lang string) (*models.Subscriber, error) {
	sub := &models.Subscriber{
		Email:            email,
		Language:         lang,
		Status:           models.SubscriberPending,
		ConfirmToken:     newToken(),
		UnsubscribeToken: newToken(),
	}
	err := s.store.CreateSubscriber(ctx, sub)
	if errors.Is(err, database.ErrDuplicate) {
		// A concurrent request created it first.
		return s.store.GetSubscriberByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("subscriber", sub.ID).Str("language", lang).Msg("Newsletter subscriber created")
	return sub, nil
}

// sendConfirmation mails the opt-in link. Failures are logged; the
// subscriber can request another mail by subscribing again.
func (s *Service) sendConfirmation(ctx context.Context, sub *models.Subscriber) {
	if sub.ConfirmToken == "" || s.sender == nil {
		return
	}
	msg, err := s.confirmationMessage(sub)
	if err == nil {
		report := s.sender.Deliver(ctx, []*delivery.Message{msg})
		if report.Failed > 0 {
			err = errors.New(report.Results[0].ErrorMessage)
		}
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("subscriber", sub.ID).Msg("Failed to send newsletter confirmation")
	}
}

func (s *Service) confirmationMessage(sub *models.Subscriber) (*delivery.Message, error) {
	data := s.templateData(sub)
	data.ConfirmURL = s.cfg.BaseURL + "/api/v1/newsletter/confirm?token=" + url.QueryEscape(sub.ConfirmToken)

	texts := builtinFor(sub.Language)
	subject, err := s.engine.RenderSubject(texts.ConfirmSubject, data)
	if err != nil {
		return nil, err
	}
	body, err := s.engine.RenderHTML(texts.ConfirmHTML, data)
	if err != nil {
		return nil, err
	}
	html, err := s.engine.Wrap(subject, body, data)
	if err != nil {
		return nil, err
	}
	return &delivery.Message{
		ID:             "confirm-" + sub.ID,
		To:             sub.Email,
		Subject:        subject,
		HTML:           html,
		Language:       sub.Language,
		UnsubscribeURL: data.UnsubscribeURL,
	}, nil
}

// Confirm completes double opt-in.
func (s *Service) Confirm(ctx context.Context, token string) (*models.Subscriber, error) {
	sub, err := s.store.GetSubscriberByConfirmToken(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sub.Status = models.SubscriberSubscribed
	sub.ConfirmToken = ""
	sub.ConfirmedAt = &now
	if err := s.store.UpdateSubscriber(ctx, sub); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("subscriber", sub.ID).Msg("Newsletter subscription confirmed")
	return sub, nil
}

// Unsubscribe opts the token's owner out. Repeating it is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	sub, err := s.store.GetSubscriberByUnsubscribeToken(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if sub.Status == models.SubscriberUnsubscribed {
		return nil
	}
	sub.Status = models.SubscriberUnsubscribed
	sub.ConfirmToken = ""
	if err := s.store.UpdateSubscriber(ctx, sub); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("subscriber", sub.ID).Msg("Newsletter subscriber unsubscribed")
	return nil
}

// ListSubscribers returns one page of subscribers.
func (s *Service) ListSubscribers(ctx context.Context, status string, limit, offset int) ([]models.Subscriber, int, error) {
	return s.store.ListSubscribers(ctx, status, limit, offset)
}

// DeleteSubscriber removes a subscriber permanently.
func (s *Service) DeleteSubscriber(ctx context.Context, id string) error {
	return mapNotFound(s.store.DeleteSubscriber(ctx, id))
}

// SubscriberCounts returns subscriber totals by status.
func (s *Service) SubscriberCounts(ctx context.Context) (map[string]int, error) {
	return s.store.CountSubscribersByStatus(ctx)
}

func (s *Service) templateData(sub *models.Subscriber) *TemplateData {
	return &TemplateData{
		StoreName:      s.cfg.StoreName,
		BaseURL:        s.cfg.BaseURL,
		Email:          sub.Email,
		Language:       sub.Language,
		Direction:      s.registry.Direction(sub.Language),
		UnsubscribeURL: s.cfg.BaseURL + "/api/v1/newsletter/unsubscribe?token=" + url.QueryEscape(sub.UnsubscribeToken),
		Date:           s.now().UTC(),
	}
}

func newToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("newsletter: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
