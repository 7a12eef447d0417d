// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
)

// Storefront setting keys. Translatable values (tagline, about) are kept
// together as JSON under settingTranslations.
const (
	settingContactEmail = "contact_email"
	settingContactPhone = "contact_phone"
	settingTranslations = "translations"
)

// Languages lists the active languages, default first.
//
// @Summary List active languages
// @Description Active languages with their text direction and the store default.
// @Tags Storefront
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Success 200 {object} APIResponse
// @Router /api/v1/languages [get]
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"default":   h.languages.Default(),
		"current":   lang(r),
		"languages": h.languages.Languages(),
	})
}

// storeSettings reads the stored settings as a key/value map plus the
// decoded translations.
func (h *Handler) storeSettings(ctx context.Context) (map[string]string, i18n.Translations, error) {
	stored, err := h.db.ListSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	values := make(map[string]string, len(stored))
	tr := i18n.Translations{}
	for _, s := range stored {
		if s.Key == settingTranslations {
			if err := json.Unmarshal([]byte(s.Value), &tr); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("Ignoring malformed settings translations")
			}
			continue
		}
		values[s.Key] = s.Value
	}
	return values, tr, nil
}

// Settings returns the public storefront settings localized to the
// request language.
//
// @Summary Get storefront settings
// @Description Public settings, with translatable values resolved to the request language.
// @Tags Storefront
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Success 200 {object} APIResponse
// @Router /api/v1/settings [get]
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	values, tr, err := h.storeSettings(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"store_name":       h.cfg.Store.Name,
		"currency":         h.catalog.Currency(),
		"default_language": h.languages.Default(),
		"contact_email":    values[settingContactEmail],
		"contact_phone":    values[settingContactPhone],
	}
	for field, v := range tr.Localize(lang(r), h.languages.Default(), models.SettingFields...) {
		data[field] = v
	}
	WriteSuccess(w, r, data)
}

// Categories returns the localized category tree.
//
// @Summary Get the category tree
// @Description Active categories as a localized tree.
// @Tags Storefront
// @Produce json
// @Param lang query string false "Content language; also sets the language cookie"
// @Success 200 {object} APIResponse
// @Router /api/v1/catalog/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.catalog.CategoryTree(r.Context(), lang(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, tree)
}

// productQuery reads the storefront product filters from the query string.
func productQuery(r *http.Request) catalog.ListQuery {
	q := r.URL.Query()
	limit, offset := page(r)
	lq := catalog.ListQuery{
		CategorySlug: q.Get("category"),
		Search:       q.Get("q"),
		Featured:     getBoolParam(r, "featured"),
		Sort:         q.Get("sort"),
		Limit:        limit,
		Offset:       offset,
	}
	if v, err := strconv.ParseInt(q.Get("min_price"), 10, 64); err == nil && v > 0 {
		lq.MinPrice = v
	}
	if v, err := strconv.ParseInt(q.Get("max_price"), 10, 64); err == nil && v > 0 {
		lq.MaxPrice = v
	}
	return lq
}

func (h *Handler) writeListing(w http.ResponseWriter, r *http.Request, q catalog.ListQuery, extra map[string]interface{}) {
	listing, err := h.catalog.ListProducts(r.Context(), q, lang(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	pagination := NewPagination(listing.Total, len(listing.Products), listing.Limit, listing.Offset)
	if extra == nil {
		NewResponseWriter(w, r).SuccessWithPagination(listing.Products, pagination)
		return
	}
	extra["products"] = listing.Products
	NewResponseWriter(w, r).SuccessWithPagination(extra, pagination)
}

// Products lists active products.
//
// @Summary List products
// @Description Active products, localized, with filters and pagination.
// @Tags Storefront
// @Produce json
// @Param q query string false "Search in names, descriptions and SKU"
// @Param category query string false "Category slug"
// @Param sort query string false "newest, price_asc, price_desc or sku"
// @Param min_price query integer false "Minimum price in minor units"
// @Param max_price query integer false "Maximum price in minor units"
// @Param featured query boolean false "Only featured products"
// @Param lang query string false "Content language; also sets the language cookie"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /api/v1/catalog/products [get]
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	h.writeListing(w, r, productQuery(r), nil)
}

// CategoryProducts lists the products of a category and its descendants.
//
// @Summary List products in a category
// @Description Active products of a category and its subcategories.
// @Tags Storefront
// @Produce json
// @Param slug path string true "Category slug"
// @Param lang query string false "Content language; also sets the language cookie"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/catalog/categories/{slug}/products [get]
func (h *Handler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	cat, err := h.catalog.Category(r.Context(), slug, lang(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := productQuery(r)
	q.CategorySlug = slug
	h.writeListing(w, r, q, map[string]interface{}{"category": cat})
}

// Product returns one active product by slug.
//
// @Summary Get a product
// @Description One active product, localized.
// @Tags Storefront
// @Produce json
// @Param slug path string true "Product slug"
// @Param lang query string false "Content language; also sets the language cookie"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/catalog/products/{slug} [get]
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(r.Context(), chi.URLParam(r, "slug"), lang(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}
