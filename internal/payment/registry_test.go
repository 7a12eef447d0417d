// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/testinfra"
)

func testPaymentsConfig() *config.PaymentsConfig {
	return &config.PaymentsConfig{
		Timeout:      5 * time.Second,
		Stripe:       config.StripeConfig{Enabled: true, SecretKey: "sk"},
		BankTransfer: config.BankTransferConfig{Enabled: true, IBAN: "KW00"},
		COD:          config.CODConfig{Enabled: true, Fee: 300},
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	db := testinfra.NewDB(t)
	ctx := context.Background()
	reg := NewRegistryFromConfig(testPaymentsConfig(), db)

	assert.Equal(t, []string{SlugStripe, SlugBankTransfer, SlugCOD}, reg.Configured())

	g, err := reg.Get(ctx, SlugStripe)
	require.NoError(t, err)
	assert.Equal(t, SlugStripe, g.Slug())

	_, err = reg.Get(ctx, "bitcoin")
	assert.ErrorIs(t, err, ErrUnknownGateway)

	// Known but not configured.
	_, err = reg.Get(ctx, SlugPayPal)
	assert.ErrorIs(t, err, ErrGatewayDisabled)

	// Switched off by an admin: checkout refuses it, webhooks still resolve it.
	setting, err := db.GetGatewaySetting(ctx, SlugStripe)
	require.NoError(t, err)
	setting.Enabled = false
	require.NoError(t, db.SaveGatewaySetting(ctx, setting))

	_, err = reg.Get(ctx, SlugStripe)
	assert.ErrorIs(t, err, ErrGatewayDisabled)
	g, err = reg.Lookup(SlugStripe)
	require.NoError(t, err)
	assert.Equal(t, SlugStripe, g.Slug())
}

func TestRegistry_EnabledLocalized(t *testing.T) {
	db := testinfra.NewDB(t)
	ctx := context.Background()
	reg := NewRegistryFromConfig(testPaymentsConfig(), db)

	opts, err := reg.Enabled(ctx, "ar", "en")
	require.NoError(t, err)
	require.Len(t, opts, 3)

	// Seeded sort order: stripe, bank_transfer, cod.
	assert.Equal(t, SlugStripe, opts[0].Slug)
	assert.Equal(t, "بطاقة ائتمان أو خصم", opts[0].Title)
	assert.False(t, opts[0].Offline)

	assert.Equal(t, SlugBankTransfer, opts[1].Slug)
	assert.True(t, opts[1].Offline)
	assert.NotEmpty(t, opts[1].Instructions)

	assert.Equal(t, SlugCOD, opts[2].Slug)
	assert.Equal(t, int64(300), opts[2].Fee)

	// French has no translations and falls back to English.
	opts, err = reg.Enabled(ctx, "fr", "en")
	require.NoError(t, err)
	assert.Equal(t, "Credit or debit card", opts[0].Title)

	setting, err := db.GetGatewaySetting(ctx, SlugCOD)
	require.NoError(t, err)
	setting.Enabled = false
	require.NoError(t, db.SaveGatewaySetting(ctx, setting))

	opts, err = reg.Enabled(ctx, "en", "en")
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestRegistry_Fee(t *testing.T) {
	reg := NewRegistryFromConfig(testPaymentsConfig(), nil)
	assert.Equal(t, int64(300), reg.Fee(SlugCOD))
	assert.Zero(t, reg.Fee(SlugStripe))
	assert.Zero(t, reg.Fee(SlugPayPal))
}

func TestIsKnown(t *testing.T) {
	for _, s := range Slugs {
		assert.True(t, IsKnown(s), s)
	}
	assert.False(t, IsKnown("PAYPAL"))
	assert.False(t, IsKnown(""))
}
