// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package blog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/testinfra"
	"github.com/tomtom215/souq/internal/validation"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testinfra.NewDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveLanguage(ctx, &i18n.Language{Code: "ar", Name: "Arabic", NativeName: "العربية", Active: true, SortOrder: 1}))
	registry := i18n.NewRegistry("en")
	require.NoError(t, registry.Reload(ctx, db))
	return NewService(db, registry)
}

func post(title, arTitle string) *models.Post {
	tr := i18n.Translations{}
	tr.Set("en", "title", title)
	tr.Set("en", "body", "<p>"+title+"</p>")
	tr.Set("en", "excerpt", "About "+title)
	if arTitle != "" {
		tr.Set("ar", "title", arTitle)
	}
	return &models.Post{Translations: tr}
}

func TestService_CreateDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := post("Summer Dates Harvest", "حصاد التمر")
	p.Translations.Set("fr", "title", "Récolte")
	require.NoError(t, svc.Create(ctx, p))
	assert.Equal(t, "summer-dates-harvest", p.Slug)
	assert.Equal(t, models.PostDraft, p.Status)
	assert.Nil(t, p.PublishedAt)
	assert.False(t, p.Translations.Has("fr", "title"), "inactive languages are pruned")

	dup := post("Summer Dates Harvest", "")
	assert.ErrorIs(t, svc.Create(ctx, dup), database.ErrDuplicate)

	arabicOnly := &models.Post{Translations: i18n.Translations{}}
	arabicOnly.Translations.Set("ar", "title", "عنوان")
	var verr *validation.RequestValidationError
	require.ErrorAs(t, svc.Create(ctx, arabicOnly), &verr, "default language title is required")

	bad := post("Bad status", "")
	bad.Status = "archived"
	require.ErrorAs(t, svc.Create(ctx, bad), &verr)
}

func TestService_PublishFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := post("Eid Gift Guide", "دليل هدايا العيد")
	require.NoError(t, svc.Create(ctx, p))

	_, err := svc.Post(ctx, p.Slug, "ar")
	assert.ErrorIs(t, err, ErrNotFound, "drafts are hidden")

	published, err := svc.Publish(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	first := *published.PublishedAt

	v, err := svc.Post(ctx, p.Slug, "ar")
	require.NoError(t, err)
	assert.Equal(t, "دليل هدايا العيد", v.Title)
	assert.Equal(t, "<p>Eid Gift Guide</p>", v.Body, "missing Arabic body falls back to English")

	_, err = svc.Unpublish(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.Post(ctx, p.Slug, "en")
	assert.ErrorIs(t, err, ErrNotFound)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	again, err := svc.Publish(ctx, p.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, first, *again.PublishedAt, time.Second, "republishing keeps the original date")

	_, err = svc.Publish(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_PublishedListing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i, title := range []string{"First", "Second", "Third"} {
		p := post(title, "")
		p.Status = models.PostPublished
		at := time.Now().Add(-time.Duration(3-i) * time.Hour).UTC()
		p.PublishedAt = &at
		require.NoError(t, svc.Create(ctx, p))
	}
	require.NoError(t, svc.Create(ctx, post("Draft", "")))

	future := post("Tomorrow", "")
	future.Status = models.PostPublished
	at := time.Now().Add(24 * time.Hour).UTC()
	future.PublishedAt = &at
	require.NoError(t, svc.Create(ctx, future))

	listing, err := svc.Published(ctx, "ar", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, listing.Total)
	require.Len(t, listing.Posts, 2)
	assert.Equal(t, "Third", listing.Posts[0].Title)
	assert.Equal(t, "Second", listing.Posts[1].Title)
	assert.Empty(t, listing.Posts[0].Body, "listings omit bodies")
	assert.Equal(t, "About Third", listing.Posts[0].Excerpt)

	_, err = svc.Post(ctx, future.Slug, "en")
	assert.ErrorIs(t, err, ErrNotFound, "scheduled posts are hidden until due")

	all, total, err := svc.AdminList(ctx, models.PostFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, all, 5)
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := post("Oud Care", "")
	require.NoError(t, svc.Create(ctx, p))

	p.Slug = "caring-for-oud"
	p.Translations.Set("ar", "title", "العناية بالعود")
	require.NoError(t, svc.Update(ctx, p))

	got, err := svc.AdminGet(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "caring-for-oud", got.Slug)
	assert.Equal(t, "العناية بالعود", got.Translations.Get("ar", "title", "en"))

	assert.ErrorIs(t, svc.Update(ctx, &models.Post{Translations: p.Translations}), ErrNotFound)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), ErrNotFound)
}

func TestSlugFor(t *testing.T) {
	assert.Equal(t, "hello-world", slugFor("Hello, World!"))
	assert.Regexp(t, `^post-[0-9a-f]{8}$`, slugFor("مرحبا"))
}
