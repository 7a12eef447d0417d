// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/testinfra"
	"github.com/tomtom215/souq/internal/validation"
)

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	db := testinfra.NewDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveLanguage(ctx, &i18n.Language{Code: "ar", Name: "Arabic", NativeName: "العربية", Active: true, SortOrder: 1}))

	registry := i18n.NewRegistry("en")
	require.NoError(t, registry.Reload(ctx, db))

	svc := NewService(db, registry, Config{Currency: "USD", LowStockThreshold: 3})
	t.Cleanup(svc.Close)
	return svc, db
}

func tr(en, ar string) i18n.Translations {
	t := i18n.Translations{}
	t.Set("en", "name", en)
	if ar != "" {
		t.Set("ar", "name", ar)
	}
	return t
}

func TestService_CategoryTreeLocalizedAndCached(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	coffee := &models.Category{Translations: tr("Coffee", "قهوة"), Active: true, SortOrder: 2}
	require.NoError(t, svc.CreateCategory(ctx, coffee))
	assert.Equal(t, "coffee", coffee.Slug)

	beans := &models.Category{Slug: "beans", ParentID: coffee.ID, Translations: tr("Beans", ""), Active: true}
	require.NoError(t, svc.CreateCategory(ctx, beans))
	tea := &models.Category{Slug: "tea", Translations: tr("Tea", "شاي"), Active: true, SortOrder: 1}
	require.NoError(t, svc.CreateCategory(ctx, tea))

	tree, err := svc.CategoryTree(ctx, "ar")
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "شاي", tree[0].Name)
	assert.Equal(t, "قهوة", tree[1].Name)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "Beans", tree[1].Children[0].Name, "falls back to default language")

	_, err = svc.CategoryTree(ctx, "ar")
	require.NoError(t, err)
	assert.Equal(t, int64(1), svc.CacheStats().Hits)

	tea.Translations.Set("ar", "name", "شاي أخضر")
	require.NoError(t, svc.UpdateCategory(ctx, tea))
	tree, err = svc.CategoryTree(ctx, "ar")
	require.NoError(t, err)
	assert.Equal(t, "شاي أخضر", tree[0].Name, "admin write invalidates the cache")
}

func TestService_CategoryCycleRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	parent := &models.Category{Slug: "parent", Translations: tr("Parent", ""), Active: true}
	require.NoError(t, svc.CreateCategory(ctx, parent))
	child := &models.Category{Slug: "child", ParentID: parent.ID, Translations: tr("Child", ""), Active: true}
	require.NoError(t, svc.CreateCategory(ctx, child))

	parent.ParentID = child.ID
	err := svc.UpdateCategory(ctx, parent)
	var verr *validation.RequestValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "parent_id", verr.Fields()[0].Field)
}

func TestService_CreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		product models.Product
		field   string
	}{
		{"missing default name", models.Product{SKU: "A-1", Translations: tr("", "اسم")}, "translations"},
		{"bad sku", models.Product{SKU: "bad sku!", Translations: tr("Thing", "")}, "sku"},
		{"negative price", models.Product{SKU: "A-2", Price: -1, Translations: tr("Thing", "")}, "price"},
		{"unknown category", models.Product{SKU: "A-3", CategoryID: "nope", Translations: tr("Thing", "")}, "category_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.product
			err := svc.CreateProduct(ctx, &p)
			var verr *validation.RequestValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Fields()[0].Field)
		})
	}
}

func TestService_ListProductsByCategorySubtree(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	coffee := &models.Category{Slug: "coffee", Translations: tr("Coffee", ""), Active: true}
	require.NoError(t, svc.CreateCategory(ctx, coffee))
	beans := &models.Category{Slug: "beans", ParentID: coffee.ID, Translations: tr("Beans", ""), Active: true}
	require.NoError(t, svc.CreateCategory(ctx, beans))

	mk := func(sku string, cat string, price int64, active bool) {
		t.Helper()
		p := &models.Product{SKU: sku, CategoryID: cat, Price: price, Stock: 10, TrackStock: true, Active: active,
			Translations: tr("Product "+sku, "منتج "+sku)}
		require.NoError(t, svc.CreateProduct(ctx, p))
	}
	mk("C-1", coffee.ID, 500, true)
	mk("B-1", beans.ID, 1500, true)
	mk("B-2", beans.ID, 900, false)
	mk("X-1", "", 100, true)

	list, err := svc.ListProducts(ctx, ListQuery{CategorySlug: "coffee", Sort: models.SortPriceAsc}, "ar")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Products, 2)
	assert.Equal(t, "C-1", list.Products[0].SKU)
	assert.Equal(t, "منتج C-1", list.Products[0].Name)
	assert.Equal(t, "USD", list.Products[0].Currency)
	assert.NotEmpty(t, list.Products[0].PriceDisplay)

	list, err = svc.ListProducts(ctx, ListQuery{MinPrice: 200, MaxPrice: 1000}, "en")
	require.NoError(t, err)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "C-1", list.Products[0].SKU)

	_, err = svc.ListProducts(ctx, ListQuery{CategorySlug: "missing"}, "en")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ProductBySlugHidesInactive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := &models.Product{SKU: "H-1", Slug: "hidden", Price: 100, Translations: tr("Hidden", "")}
	require.NoError(t, svc.CreateProduct(ctx, p))

	_, err := svc.Product(ctx, "hidden", "en")
	assert.ErrorIs(t, err, ErrNotFound)

	p.Active = true
	require.NoError(t, svc.UpdateProduct(ctx, p))
	view, err := svc.Product(ctx, "hidden", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Hidden", view.Name)
	assert.True(t, view.InStock, "untracked stock is always available")
}

func TestService_StockAndLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := &models.Product{SKU: "S-1", Price: 100, Stock: 10, TrackStock: true, Active: true, Translations: tr("Stocked", "")}
	require.NoError(t, svc.CreateProduct(ctx, p))

	stock, err := svc.AdjustStock(ctx, p.ID, -8)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)

	_, err = svc.AdjustStock(ctx, p.ID, -5)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)

	low, err := svc.LowStock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)

	_, err = svc.AdjustStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSlugFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "arabic-coffee", slugFor("Arabic Coffee"))
	assert.Regexp(t, `^item-[0-9a-f]{8}$`, slugFor("قهوة"))
}
