// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/newsletter/delivery"
	"github.com/tomtom215/souq/internal/validation"
)

// RunResult summarizes one campaign run.
type RunResult struct {
	CampaignID string     `json:"campaign_id"`
	Status     string     `json:"status"`
	Recipients int        `json:"recipients"`
	Sent       int        `json:"sent"`
	Failed     int        `json:"failed"`
	NextRun    *time.Time `json:"next_run,omitempty"`
}

// CampaignStats pairs a campaign with its delivery totals.
type CampaignStats struct {
	Campaign   *models.Campaign        `json:"campaign"`
	Deliveries *database.DeliveryStats `json:"deliveries"`
}

// ListCampaigns returns one page of campaigns.
func (s *Service) ListCampaigns(ctx context.Context, status string, limit, offset int) ([]models.Campaign, int, error) {
	return s.store.ListCampaigns(ctx, status, limit, offset)
}

// GetCampaign returns a campaign by ID.
func (s *Service) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	return c, mapNotFound(err)
}

// CreateCampaign validates and stores a campaign. It is scheduled when it
// has a send time or a recurrence, and a draft otherwise.
func (s *Service) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if err := s.prepareCampaign(c); err != nil {
		return err
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("campaign", c.ID).Str("status", c.Status).Msg("Newsletter campaign created")
	return nil
}

// UpdateCampaign saves content and schedule. Campaigns that are sending
// cannot be edited.
func (s *Service) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	existing, err := s.GetCampaign(ctx, c.ID)
	if err != nil {
		return err
	}
	if existing.Status == models.CampaignSending {
		return ErrCampaignBusy
	}
	if err := s.prepareCampaign(c); err != nil {
		return err
	}
	err = s.store.UpdateCampaign(ctx, c)
	if errors.Is(err, database.ErrConflict) {
		return ErrCampaignBusy
	}
	return mapNotFound(err)
}

// DeleteCampaign removes a campaign and its delivery records.
func (s *Service) DeleteCampaign(ctx context.Context, id string) error {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == models.CampaignSending {
		return ErrCampaignBusy
	}
	return mapNotFound(s.store.DeleteCampaign(ctx, id))
}

func (s *Service) prepareCampaign(c *models.Campaign) error {
	def := s.registry.Default()
	if c.Translations == nil {
		c.Translations = i18n.Translations{}
	}
	c.Translations.Prune(s.registry.Codes(), models.CampaignFields)
	if err := c.Translations.RequireDefault(def, models.CampaignFields...); err != nil {
		return validation.NewFieldError("translations", "required", err.Error())
	}
	for _, lang := range c.Translations.Languages() {
		for _, field := range models.CampaignFields {
			if err := s.engine.Validate(c.Translations.Get(lang, field, "")); err != nil {
				return validation.NewFieldError(i18n.FormKey(lang, field), "template", err.Error())
			}
		}
	}

	c.Status = models.CampaignDraft
	if c.Recurrence != "" {
		if _, err := ParseRecurrence(c.Recurrence); err != nil {
			return validation.NewFieldError("recurrence", "cron", err.Error())
		}
		if c.ScheduledAt == nil {
			next, err := NextRun(c.Recurrence, s.now())
			if err != nil {
				return validation.NewFieldError("recurrence", "cron", err.Error())
			}
			c.ScheduledAt = &next
		}
	}
	if c.ScheduledAt != nil {
		at := c.ScheduledAt.UTC()
		c.ScheduledAt = &at
		c.Status = models.CampaignScheduled
	}
	return nil
}

// SendNow runs a campaign immediately regardless of its schedule.
func (s *Service) SendNow(ctx context.Context, id string) (*RunResult, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, c)
}

// Due returns scheduled campaigns whose send time has passed.
func (s *Service) Due(ctx context.Context) ([]models.Campaign, error) {
	return s.store.DueCampaigns(ctx, s.now().UTC())
}

// Run claims c and delivers it to every confirmed subscriber in their
// language. The campaign ends sent unless every delivery failed. Recurring
// campaigns are rescheduled for their next activation either way.
func (s *Service) Run(ctx context.Context, c *models.Campaign) (*RunResult, error) {
	if err := s.store.ClaimCampaign(ctx, c.ID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrCampaignBusy
		}
		return nil, err
	}
	log := logging.Ctx(ctx).With().Str("campaign", c.ID).Logger()
	started := s.now().UTC()

	// The outcome is recorded even when ctx is cancelled mid-run, so the
	// campaign never stays in sending.
	finishCtx := context.WithoutCancel(ctx)

	subs, err := s.store.ActiveSubscribers(ctx)
	if err != nil {
		s.finish(finishCtx, c, models.CampaignFailed, 0, 0, started)
		return nil, fmt.Errorf("load subscribers: %w", err)
	}

	msgs := make([]*delivery.Message, 0, len(subs))
	targets := make([]*models.Subscriber, 0, len(subs))
	var renderFailed []models.Delivery
	for i := range subs {
		sub := &subs[i]
		lang := s.campaignLanguage(c, sub.Language)
		msg, err := s.campaignMessage(c, sub, lang)
		if err != nil {
			renderFailed = append(renderFailed, models.Delivery{
				CampaignID: c.ID, SubscriberID: sub.ID, Email: sub.Email, Language: lang,
				Status: models.DeliveryFailed, Error: err.Error(),
			})
			continue
		}
		msgs = append(msgs, msg)
		targets = append(targets, sub)
	}

	report := s.sender.Deliver(ctx, msgs)

	result := &RunResult{CampaignID: c.ID, Recipients: len(subs), Failed: len(renderFailed)}
	for i := range renderFailed {
		if err := s.store.InsertDelivery(finishCtx, &renderFailed[i]); err != nil {
			log.Error().Err(err).Msg("Failed to record newsletter delivery")
		}
	}
	for i, r := range report.Results {
		d := models.Delivery{
			ID:           msgs[i].ID,
			CampaignID:   c.ID,
			SubscriberID: targets[i].ID,
			Email:        targets[i].Email,
			Language:     msgs[i].Language,
			Status:       models.DeliverySent,
			Attempts:     r.Attempts,
		}
		if r.Success {
			result.Sent++
		} else {
			result.Failed++
			d.Status = models.DeliveryFailed
			d.Error = r.ErrorMessage
		}
		if err := s.store.InsertDelivery(finishCtx, &d); err != nil {
			log.Error().Err(err).Msg("Failed to record newsletter delivery")
		}
	}

	result.Status = models.CampaignSent
	if result.Sent == 0 && result.Failed > 0 {
		result.Status = models.CampaignFailed
	}
	result.NextRun = s.finish(finishCtx, c, result.Status, result.Sent, result.Failed, started)

	log.Info().
		Str("status", result.Status).
		Int("recipients", result.Recipients).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("Newsletter campaign run complete")
	return result, nil
}

// finish records the run and returns the next activation for recurring
// campaigns.
func (s *Service) finish(ctx context.Context, c *models.Campaign, status string, sent, failed int, ranAt time.Time) *time.Time {
	var next *time.Time
	if c.Recurrence != "" {
		if n, err := NextRun(c.Recurrence, s.now()); err == nil {
			next = &n
		} else {
			logging.Ctx(ctx).Error().Err(err).Str("campaign", c.ID).Msg("Failed to compute next campaign run")
		}
	}
	if err := s.store.FinishCampaign(ctx, c.ID, status, sent, failed, ranAt, next); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("campaign", c.ID).Msg("Failed to record campaign outcome")
	}
	metrics.NewsletterCampaignsRun.WithLabelValues(status).Inc()
	return next
}

// campaignLanguage picks the subscriber's language when the campaign has
// content in it, otherwise the default.
func (s *Service) campaignLanguage(c *models.Campaign, lang string) string {
	if s.registry.IsSupported(lang) && c.Translations.Has(lang, "subject") && c.Translations.Has(lang, "body") {
		return lang
	}
	return s.registry.Default()
}

func (s *Service) campaignMessage(c *models.Campaign, sub *models.Subscriber, lang string) (*delivery.Message, error) {
	localized := *sub
	localized.Language = lang
	data := s.templateData(&localized)

	subject, err := s.engine.RenderSubject(c.Translations.Get(lang, "subject", ""), data)
	if err != nil {
		return nil, err
	}
	body, err := s.engine.RenderHTML(c.Translations.Get(lang, "body", ""), data)
	if err != nil {
		return nil, err
	}
	html, err := s.engine.Wrap(subject, body, data)
	if err != nil {
		return nil, err
	}
	return &delivery.Message{
		ID:             newDeliveryID(),
		To:             sub.Email,
		Subject:        subject,
		HTML:           html,
		Language:       lang,
		UnsubscribeURL: data.UnsubscribeURL,
	}, nil
}

// Stats returns a campaign with its delivery totals.
func (s *Service) Stats(ctx context.Context, id string) (*CampaignStats, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.CampaignDeliveryStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignStats{Campaign: c, Deliveries: stats}, nil
}

// ListDeliveries returns a campaign's per-recipient delivery records.
func (s *Service) ListDeliveries(ctx context.Context, id string, limit, offset int) ([]models.Delivery, error) {
	if _, err := s.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListDeliveries(ctx, id, limit, offset)
}

func newDeliveryID() string {
	return uuid.New().String()
}
