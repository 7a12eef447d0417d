// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package catalog

import (
	"sort"

	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
)

// CategoryView is a category resolved for one language.
type CategoryView struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	ParentID    string          `json:"parent_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	SortOrder   int             `json:"sort_order"`
	Children    []*CategoryView `json:"children,omitempty"`
}

// ProductView is a product resolved for one language.
type ProductView struct {
	ID               string   `json:"id"`
	SKU              string   `json:"sku"`
	Slug             string   `json:"slug"`
	CategoryID       string   `json:"category_id,omitempty"`
	Name             string   `json:"name"`
	ShortDescription string   `json:"short_description,omitempty"`
	Description      string   `json:"description,omitempty"`
	Price            int64    `json:"price"`
	CompareAtPrice   int64    `json:"compare_at_price,omitempty"`
	Currency         string   `json:"currency"`
	PriceDisplay     string   `json:"price_display"`
	InStock          bool     `json:"in_stock"`
	Featured         bool     `json:"featured"`
	Images           []string `json:"images"`
}

func localizeCategory(c *models.Category, lang, def string) *CategoryView {
	return &CategoryView{
		ID:          c.ID,
		Slug:        c.Slug,
		ParentID:    c.ParentID,
		Name:        c.Translations.Get(lang, "name", def),
		Description: c.Translations.Get(lang, "description", def),
		SortOrder:   c.SortOrder,
	}
}

func (s *Service) localizeProduct(p *models.Product, lang string) ProductView {
	def := s.registry.Default()
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return ProductView{
		ID:               p.ID,
		SKU:              p.SKU,
		Slug:             p.Slug,
		CategoryID:       p.CategoryID,
		Name:             p.Translations.Get(lang, "name", def),
		ShortDescription: p.Translations.Get(lang, "short_description", def),
		Description:      p.Translations.Get(lang, "description", def),
		Price:            p.Price,
		CompareAtPrice:   p.CompareAtPrice,
		Currency:         s.cfg.Currency,
		PriceDisplay:     i18n.Display(lang, p.Price, s.cfg.Currency),
		InStock:          p.Available(1),
		Featured:         p.Featured,
		Images:           images,
	}
}

// buildTree nests categories under their parents. Categories whose parent
// is missing or inactive are dropped along with their subtree.
func buildTree(cats []models.Category, lang, def string) []*CategoryView {
	nodes := make(map[string]*CategoryView, len(cats))
	for i := range cats {
		nodes[cats[i].ID] = localizeCategory(&cats[i], lang, def)
	}

	roots := make([]*CategoryView, 0)
	for i := range cats {
		n := nodes[cats[i].ID]
		if n.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		if parent, ok := nodes[n.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	sortViews(roots)
	return roots
}

func sortViews(views []*CategoryView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].SortOrder != views[j].SortOrder {
			return views[i].SortOrder < views[j].SortOrder
		}
		return views[i].Name < views[j].Name
	})
	for _, v := range views {
		sortViews(v.Children)
	}
}
