// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package newsletter

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/newsletter/delivery"
	"github.com/tomtom215/souq/internal/testinfra"
	"github.com/tomtom215/souq/internal/validation"
)

// fakeSender succeeds for every recipient except those in fail.
type fakeSender struct {
	mu   sync.Mutex
	msgs []*delivery.Message
	fail map[string]bool
}

func (f *fakeSender) Deliver(_ context.Context, msgs []*delivery.Message) *delivery.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	report := &delivery.Report{Results: make([]delivery.Result, len(msgs))}
	for i, m := range msgs {
		f.msgs = append(f.msgs, m)
		if f.fail[m.To] {
			report.Results[i] = delivery.Result{Recipient: m.To, ErrorMessage: "550 mailbox unavailable", Attempts: 1}
			report.Failed++
			continue
		}
		report.Results[i] = delivery.Result{Success: true, Recipient: m.To, Attempts: 1}
		report.Successful++
	}
	return report
}

func (f *fakeSender) sent() []*delivery.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*delivery.Message(nil), f.msgs...)
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

type fixture struct {
	svc    *Service
	db     *database.DB
	sender *fakeSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testinfra.NewDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveLanguage(ctx, &i18n.Language{Code: "ar", Name: "Arabic", NativeName: "العربية", Active: true, SortOrder: 1}))
	registry := i18n.NewRegistry("en")
	require.NoError(t, registry.Reload(ctx, db))

	sender := &fakeSender{fail: map[string]bool{}}
	svc := NewService(db, registry, sender, Config{StoreName: "Souq", BaseURL: "https://shop.test/"})
	return &fixture{svc: svc, db: db, sender: sender}
}

// subscribed creates a confirmed subscriber.
func (f *fixture) subscribed(t *testing.T, email, lang string) *models.Subscriber {
	t.Helper()
	ctx := context.Background()
	sub, err := f.svc.Subscribe(ctx, email, lang)
	require.NoError(t, err)
	sub, err = f.svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	return sub
}

func campaign(subject, body, arSubject, arBody string) *models.Campaign {
	tr := i18n.Translations{}
	tr.Set("en", "subject", subject)
	tr.Set("en", "body", body)
	if arSubject != "" {
		tr.Set("ar", "subject", arSubject)
		tr.Set("ar", "body", arBody)
	}
	return &models.Campaign{Translations: tr, CreatedBy: "admin-1"}
}

func TestSubscribe_DoubleOptIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Subscribe(ctx, "  Reader@Example.com ", "ar")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", sub.Email)
	assert.Equal(t, models.SubscriberPending, sub.Status)
	assert.Equal(t, "ar", sub.Language)
	require.NotEmpty(t, sub.ConfirmToken)
	require.NotEmpty(t, sub.UnsubscribeToken)

	sent := f.sender.sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "reader@example.com", msg.To)
	assert.Equal(t, "أكد اشتراكك في Souq", msg.Subject)
	assert.Contains(t, msg.HTML, `dir="rtl"`)
	assert.Contains(t, msg.HTML, "https://shop.test/api/v1/newsletter/confirm?token="+sub.ConfirmToken)
	assert.Equal(t, "https://shop.test/api/v1/newsletter/unsubscribe?token="+sub.UnsubscribeToken, msg.UnsubscribeURL)

	confirmed, err := f.svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberSubscribed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)

	_, err = f.svc.Confirm(ctx, sub.ConfirmToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "tokens are single use")

	f.sender.reset()
	again, err := f.svc.Subscribe(ctx, "reader@example.com", "en")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
	assert.Equal(t, models.SubscriberSubscribed, again.Status)
	assert.Equal(t, "ar", again.Language, "confirmed subscribers are left unchanged")
	assert.Empty(t, f.sender.sent(), "no mail for confirmed subscribers")
}

func TestSubscribe_PendingAndLanguageFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Subscribe(ctx, "pending@example.com", "xx")
	require.NoError(t, err)
	assert.Equal(t, "en", first.Language, "unsupported languages fall back to the default")

	second, err := f.svc.Subscribe(ctx, "pending@example.com", "ar")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ConfirmToken, second.ConfirmToken)
	assert.Equal(t, "ar", second.Language)

	sent := f.sender.sent()
	require.Len(t, sent, 2, "pending subscribers get the confirmation resent")
	assert.Equal(t, "Confirm your subscription to Souq", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, `dir="ltr"`)
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	var verr *validation.RequestValidationError
	for _, email := range []string{"", "not-an-email", strings.Repeat("a", 250) + "@example.com"} {
		_, err := f.svc.Subscribe(context.Background(), email, "en")
		require.ErrorAs(t, err, &verr, email)
	}
	assert.Empty(t, f.sender.sent())
}

func TestSubscribe_ConfirmationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sender.fail["bounce@example.com"] = true

	sub, err := f.svc.Subscribe(context.Background(), "bounce@example.com", "en")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberPending, sub.Status)
}

func TestUnsubscribe_AndResubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.subscribed(t, "leaver@example.com", "en")

	require.NoError(t, f.svc.Unsubscribe(ctx, sub.UnsubscribeToken))
	require.NoError(t, f.svc.Unsubscribe(ctx, sub.UnsubscribeToken), "repeat unsubscribe is a no-op")
	assert.ErrorIs(t, f.svc.Unsubscribe(ctx, "unknown"), ErrInvalidToken)
	assert.ErrorIs(t, f.svc.Unsubscribe(ctx, ""), ErrInvalidToken)

	stored, err := f.db.GetSubscriberByEmail(ctx, "leaver@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberUnsubscribed, stored.Status)

	back, err := f.svc.Subscribe(ctx, "leaver@example.com", "ar")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberPending, back.Status)
	assert.Equal(t, "ar", back.Language)
	assert.Nil(t, back.ConfirmedAt)
	assert.NotEmpty(t, back.ConfirmToken)
	assert.Equal(t, sub.UnsubscribeToken, back.UnsubscribeToken)

	_, err = f.svc.Confirm(ctx, back.ConfirmToken)
	require.NoError(t, err)

	counts, err := f.svc.SubscriberCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.SubscriberSubscribed])
}

func TestSubscribers_Admin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.subscribed(t, "a@example.com", "en")
	_, err := f.svc.Subscribe(ctx, "b@example.com", "en")
	require.NoError(t, err)

	list, total, err := f.svc.ListSubscribers(ctx, models.SubscriberPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "b@example.com", list[0].Email)

	require.NoError(t, f.svc.DeleteSubscriber(ctx, a.ID))
	assert.ErrorIs(t, f.svc.DeleteSubscriber(ctx, a.ID), ErrNotFound)
}

func TestCampaign_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var verr *validation.RequestValidationError

	noBody := campaign("Hello", "", "", "")
	require.ErrorAs(t, f.svc.CreateCampaign(ctx, noBody), &verr)

	badTemplate := campaign("Hello {{.StoreName", "<p>x</p>", "", "")
	require.ErrorAs(t, f.svc.CreateCampaign(ctx, badTemplate), &verr)

	badCron := campaign("Hello", "<p>x</p>", "", "")
	badCron.Recurrence = "every tuesday"
	require.ErrorAs(t, f.svc.CreateCampaign(ctx, badCron), &verr)

	draft := campaign("Hello", "<p>x</p>", "مرحبا", "<p>س</p>")
	draft.Translations.Set("fr", "subject", "Bonjour")
	require.NoError(t, f.svc.CreateCampaign(ctx, draft))
	assert.Equal(t, models.CampaignDraft, draft.Status)
	assert.False(t, draft.Translations.Has("fr", "subject"))

	at := time.Now().Add(time.Hour)
	scheduled := campaign("Later", "<p>x</p>", "", "")
	scheduled.ScheduledAt = &at
	require.NoError(t, f.svc.CreateCampaign(ctx, scheduled))
	assert.Equal(t, models.CampaignScheduled, scheduled.Status)

	recurring := campaign("Weekly", "<p>x</p>", "", "")
	recurring.Recurrence = "@weekly"
	require.NoError(t, f.svc.CreateCampaign(ctx, recurring))
	assert.Equal(t, models.CampaignScheduled, recurring.Status)
	require.NotNil(t, recurring.ScheduledAt)
	assert.True(t, recurring.ScheduledAt.After(time.Now()))
}

func TestCampaign_RunLocalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribed(t, "en@example.com", "en")
	f.subscribed(t, "ar@example.com", "ar")
	_, err := f.svc.Subscribe(ctx, "pending@example.com", "en")
	require.NoError(t, err)
	f.sender.reset()

	c := campaign("{{.StoreName}} weekly offers", "<p>Hi {{.Email}}</p>", "عروض {{.StoreName}}", "<p>مرحبا {{.Email}}</p>")
	require.NoError(t, f.svc.CreateCampaign(ctx, c))

	result, err := f.svc.SendNow(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignSent, result.Status)
	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Nil(t, result.NextRun)

	byRecipient := map[string]*delivery.Message{}
	for _, m := range f.sender.sent() {
		byRecipient[m.To] = m
	}
	require.Len(t, byRecipient, 2, "only confirmed subscribers receive campaigns")
	assert.Equal(t, "Souq weekly offers", byRecipient["en@example.com"].Subject)
	assert.Contains(t, byRecipient["en@example.com"].HTML, "<p>Hi en@example.com</p>")
	assert.Equal(t, "عروض Souq", byRecipient["ar@example.com"].Subject)
	assert.Contains(t, byRecipient["ar@example.com"].HTML, `lang="ar" dir="rtl"`)
	assert.Contains(t, byRecipient["ar@example.com"].HTML, "إلغاء الاشتراك")

	stored, err := f.svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignSent, stored.Status)
	assert.Equal(t, 2, stored.SentCount)
	assert.NotNil(t, stored.LastRunAt)

	stats, err := f.svc.Stats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Deliveries.Sent)
	assert.Equal(t, 2, stats.Deliveries.Attempts)

	deliveries, err := f.svc.ListDeliveries(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)

	_, err = f.svc.SendNow(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCampaignBusy, "a sent campaign is not claimed again")
}

func TestCampaign_LanguageFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribed(t, "ar@example.com", "ar")
	f.sender.reset()

	c := campaign("English only", "<p>Body</p>", "", "")
	require.NoError(t, f.svc.CreateCampaign(ctx, c))
	_, err := f.svc.SendNow(ctx, c.ID)
	require.NoError(t, err)

	sent := f.sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "English only", sent[0].Subject)
	assert.Equal(t, "en", sent[0].Language)

	deliveries, err := f.svc.ListDeliveries(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "en", deliveries[0].Language)
}

func TestCampaign_AllFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribed(t, "bounce@example.com", "en")
	f.sender.fail["bounce@example.com"] = true

	c := campaign("Hi", "<p>x</p>", "", "")
	require.NoError(t, f.svc.CreateCampaign(ctx, c))
	result, err := f.svc.SendNow(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignFailed, result.Status)
	assert.Equal(t, 1, result.Failed)

	deliveries, err := f.svc.ListDeliveries(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryFailed, deliveries[0].Status)
	assert.Equal(t, "550 mailbox unavailable", deliveries[0].Error)

	delete(f.sender.fail, "bounce@example.com")
	retry, err := f.svc.SendNow(ctx, c.ID)
	require.NoError(t, err, "failed campaigns can be sent again")
	assert.Equal(t, models.CampaignSent, retry.Status)
}

func TestCampaign_RecurringAndDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribed(t, "a@example.com", "en")

	past := time.Now().Add(-time.Minute)
	c := campaign("Daily", "<p>x</p>", "", "")
	c.Recurrence = "0 9 * * *"
	c.ScheduledAt = &past
	require.NoError(t, f.svc.CreateCampaign(ctx, c))

	future := time.Now().Add(time.Hour)
	later := campaign("Later", "<p>x</p>", "", "")
	later.ScheduledAt = &future
	require.NoError(t, f.svc.CreateCampaign(ctx, later))

	due, err := f.svc.Due(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, c.ID, due[0].ID)

	result, err := f.svc.Run(ctx, &due[0])
	require.NoError(t, err)
	require.NotNil(t, result.NextRun)
	assert.Equal(t, 9, result.NextRun.Hour())
	assert.True(t, result.NextRun.After(time.Now()))

	stored, err := f.svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignScheduled, stored.Status)
	require.NotNil(t, stored.ScheduledAt)
	assert.WithinDuration(t, *result.NextRun, *stored.ScheduledAt, time.Second)

	due, err = f.svc.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCampaign_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := campaign("Draft", "<p>x</p>", "", "")
	require.NoError(t, f.svc.CreateCampaign(ctx, c))

	c.Translations.Set("en", "subject", "Renamed")
	at := time.Now().Add(time.Hour)
	c.ScheduledAt = &at
	require.NoError(t, f.svc.UpdateCampaign(ctx, c))

	stored, err := f.svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Translations.Get("en", "subject", ""))
	assert.Equal(t, models.CampaignScheduled, stored.Status)

	require.NoError(t, f.db.ClaimCampaign(ctx, c.ID))
	assert.ErrorIs(t, f.svc.UpdateCampaign(ctx, c), ErrCampaignBusy)
	assert.ErrorIs(t, f.svc.DeleteCampaign(ctx, c.ID), ErrCampaignBusy)

	require.NoError(t, f.db.FinishCampaign(ctx, c.ID, models.CampaignSent, 0, 0, time.Now(), nil))
	require.NoError(t, f.svc.DeleteCampaign(ctx, c.ID))
	_, err = f.svc.GetCampaign(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	missing := campaign("x", "<p>x</p>", "", "")
	missing.ID = "nope"
	assert.ErrorIs(t, f.svc.UpdateCampaign(ctx, missing), ErrNotFound)
}

func TestService_WithDeliveryManager(t *testing.T) {
	db := testinfra.NewDB(t)
	registry := i18n.NewRegistry("en")
	require.NoError(t, registry.Reload(context.Background(), db))

	ch := delivery.NewLogChannel()
	logger := zerolog.Nop()
	manager := delivery.NewManager(ch, &logger, delivery.ManagerConfig{MaxRetries: 0, Parallelism: 2})
	svc := NewService(db, registry, manager, Config{StoreName: "Souq", BaseURL: "https://shop.test"})

	_, err := svc.Subscribe(context.Background(), "log@example.com", "en")
	require.NoError(t, err)
	sent := ch.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "log@example.com", sent[0].To)
}

func TestNextRun(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC) // Monday

	next, err := NextRun("0 9 * * 1", base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), next)

	next, err = NextRun("@daily", base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), next)

	_, err = NextRun("", base)
	assert.Error(t, err)
	_, err = NextRun("61 * * * *", base)
	assert.Error(t, err)
}
