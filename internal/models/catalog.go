// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package models holds the storefront's domain types shared by storage,
// services and the API.
package models

import (
	"time"

	"github.com/tomtom215/souq/internal/i18n"
)

// Translatable field names per entity. Only these keys are accepted into
// the translations column.
var (
	CategoryFields = []string{"name", "description"}
	ProductFields  = []string{"name", "short_description", "description"}
	PostFields     = []string{"title", "excerpt", "body", "meta_description"}
	CampaignFields = []string{"subject", "body"}
	GatewayFields  = []string{"title", "instructions"}
	SettingFields  = []string{"tagline", "about"}
)

// Category groups products. ParentID is empty for top-level categories.
type Category struct {
	ID           string            `json:"id"`
	Slug         string            `json:"slug"`
	ParentID     string            `json:"parent_id,omitempty"`
	Translations i18n.Translations `json:"translations"`
	SortOrder    int               `json:"sort_order"`
	Active       bool              `json:"active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Product is a sellable item. Prices are in minor units of the store currency.
type Product struct {
	ID             string            `json:"id"`
	SKU            string            `json:"sku"`
	Slug           string            `json:"slug"`
	CategoryID     string            `json:"category_id,omitempty"`
	Translations   i18n.Translations `json:"translations"`
	Price          int64             `json:"price"`
	CompareAtPrice int64             `json:"compare_at_price,omitempty"`
	Stock          int               `json:"stock"`
	TrackStock     bool              `json:"track_stock"`
	Active         bool              `json:"active"`
	Featured       bool              `json:"featured"`
	Images         []string          `json:"images"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Available reports whether qty units can be sold.
func (p *Product) Available(qty int) bool {
	if !p.Active || qty <= 0 {
		return false
	}
	return !p.TrackStock || p.Stock >= qty
}

// Product sort orders.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortSKU       = "sku"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryIDs []string // empty = all categories
	Search      string
	MinPrice    int64
	MaxPrice    int64 // 0 = no upper bound
	Featured    *bool
	ActiveOnly  bool
	InStockOnly bool
	StockBelow  int // admin low-stock listing; 0 disables
	Sort        string
	Limit       int
	Offset      int
}
