// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/testinfra"
)

const seedYAML = `
languages:
  - {code: ar, name: Arabic, native_name: العربية, direction: rtl, active: true, sort_order: 1}
categories:
  - slug: drinkware
    translations: {en: {name: Drinkware}, ar: {name: أكواب}}
  - slug: mugs
    parent: drinkware
    translations: {en: {name: Mugs}}
products:
  - sku: MUG-01
    slug: coffee-mug
    category: mugs
    price: 2500
    stock: 10
    translations: {en: {name: Coffee Mug}, ar: {name: كوب قهوة}}
posts:
  - slug: welcome
    published: true
    translations: {en: {title: Welcome, body: Hello from the souq.}}
`

func testApp(t *testing.T) *app {
	t.Helper()
	db := testinfra.NewDB(t)
	languages := i18n.NewRegistry("en")
	require.NoError(t, languages.Reload(context.Background(), db))

	cfg := &config.Config{
		Store: config.StoreConfig{Currency: "USD", PendingOrderTTL: time.Hour},
		Security: config.SecurityConfig{
			MinPasswordLen: 8,
		},
		Payments: config.PaymentsConfig{
			BankTransfer: config.BankTransferConfig{Enabled: true},
			COD:          config.CODConfig{Enabled: true, Fee: 250},
		},
	}
	return &app{cfg: cfg, db: db, languages: languages}
}

// execute runs args against a, returning stdout.
func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(context.Context) (*app, error) { return a, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseSeed(t *testing.T) {
	f, err := parseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	require.Len(t, f.Languages, 1)
	assert.Equal(t, i18n.RTL, f.Languages[0].Direction)
	require.Len(t, f.Categories, 2)
	assert.Equal(t, "drinkware", f.Categories[1].Parent)
	require.Len(t, f.Products, 1)
	assert.Equal(t, "كوب قهوة", f.Products[0].Translations.Get("ar", "name", "en"))
}

func TestParseSeed_Empty(t *testing.T) {
	f, err := parseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Products)
}

func TestParseSeed_RejectsUnknownFields(t *testing.T) {
	_, err := parseSeed(strings.NewReader("products:\n  - sku: X\n    prise: 10\n"))
	assert.Error(t, err)
}

func TestApplySeed_IsRepeatable(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	f, err := parseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	rep, err := applySeed(ctx, a, f)
	require.NoError(t, err)
	assert.Equal(t, seedReport{Languages: 1, Categories: 2, Products: 1, Posts: 1}, *rep)
	assert.Equal(t, i18n.RTL, a.languages.Direction("ar"))

	p, err := a.db.GetProductBySlug(ctx, "coffee-mug")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.Price)
	assert.True(t, p.TrackStock)
	assert.NotEmpty(t, p.CategoryID)

	post, err := a.db.GetPostBySlug(ctx, "welcome")
	require.NoError(t, err)
	assert.NotNil(t, post.PublishedAt)

	rep, err = applySeed(ctx, a, f)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Skipped)
	assert.Zero(t, rep.Products)
}

func TestApplySeed_UnknownCategory(t *testing.T) {
	a := testApp(t)
	f := &seedFile{Products: []seedProduct{{
		SKU:          "TEA-01",
		Category:     "nope",
		Price:        100,
		Translations: i18n.Translations{"en": {"name": "Tea"}},
	}}}
	_, err := applySeed(context.Background(), a, f)
	assert.ErrorContains(t, err, `unknown category "nope"`)
}

func TestSeedCommand(t *testing.T) {
	a := testApp(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	out, err := execute(t, a, "seed", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "products: 1, posts: 1")
}

func TestMigrateCommand(t *testing.T) {
	out, err := execute(t, testApp(t), "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "seed_payment_gateways")
	assert.Contains(t, out, "schema version 2, 0 migration(s) applied by this run")
}

func TestCreateAdminCommand(t *testing.T) {
	a := testApp(t)

	out, err := execute(t, a, "create-admin", "--email", "owner@souq.test", "--password", "long-enough-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin owner@souq.test")

	out, err = execute(t, a, "create-admin", "--email", "owner@souq.test")
	require.NoError(t, err)
	assert.Contains(t, out, "is an active admin")

	out, err = execute(t, a, "create-admin", "--email", "writer@souq.test", "--password", "long-enough-pass", "--role", "editor")
	require.NoError(t, err)
	assert.Contains(t, out, "created editor writer@souq.test")

	_, err = execute(t, a, "create-admin", "--email", "buyer@souq.test", "--password", "long-enough-pass", "--role", "customer")
	assert.ErrorContains(t, err, "staff accounts")
}

func TestCreateAdminCommand_RequiresEmail(t *testing.T) {
	_, err := execute(t, testApp(t), "create-admin")
	assert.Error(t, err)
}

func TestGatewaysCommand(t *testing.T) {
	out, err := execute(t, testApp(t), "gateways")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Regexp(t, `^cod\s+yes\s+yes\s+2\.50 USD$`, findLine(lines, "cod"))
	assert.Regexp(t, `^stripe\s+no\s+`, findLine(lines, "stripe"))
}

func TestExpireOrdersCommand_NothingPending(t *testing.T) {
	out, err := execute(t, testApp(t), "expire-orders", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0 order(s)")
}

func findLine(lines []string, prefix string) string {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix+" ") {
			return l
		}
	}
	return ""
}
