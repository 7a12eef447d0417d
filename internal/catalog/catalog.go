// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package catalog serves categories and products, localized to the
// request language, and implements the admin catalog operations.
//
// Localized category trees are cached per language. Every admin write to
// categories or products clears the cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/cache"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/validation"
)

// ErrNotFound is returned for unknown or inactive categories and products.
var ErrNotFound = errors.New("catalog: not found")

// Store is the persistence the catalog needs. *database.DB implements it.
type Store interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error

	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

// Config holds catalog settings.
type Config struct {
	Currency          string
	LowStockThreshold int
	CacheTTL          time.Duration
}

// Service implements storefront and admin catalog operations.
type Service struct {
	store    Store
	registry *i18n.Registry
	cfg      Config
	trees    *cache.Cache[[]*CategoryView]
}

// NewService creates a catalog service.
func NewService(store Store, registry *i18n.Registry, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = 5
	}
	return &Service{
		store:    store,
		registry: registry,
		cfg:      cfg,
		trees:    cache.New[[]*CategoryView](cfg.CacheTTL),
	}
}

// Close stops the tree cache's cleanup goroutine.
func (s *Service) Close() {
	s.trees.Close()
}

// Currency returns the store currency.
func (s *Service) Currency() string {
	return s.cfg.Currency
}

// InvalidateCache drops every cached category tree.
func (s *Service) InvalidateCache() {
	s.trees.Clear()
}

// CacheStats exposes the tree cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.trees.GetStats()
}

// CategoryTree returns the active categories as a localized tree.
func (s *Service) CategoryTree(ctx context.Context, lang string) ([]*CategoryView, error) {
	return s.trees.GetOrLoad("tree:"+lang, func() ([]*CategoryView, error) {
		cats, err := s.store.ListCategories(ctx, true)
		if err != nil {
			return nil, err
		}
		return buildTree(cats, lang, s.registry.Default()), nil
	})
}

// Category returns one active category by slug.
func (s *Service) Category(ctx context.Context, slug, lang string) (*CategoryView, error) {
	c, err := s.store.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !c.Active {
		return nil, ErrNotFound
	}
	return localizeCategory(c, lang, s.registry.Default()), nil
}

// ListQuery is a storefront product query.
type ListQuery struct {
	CategorySlug string
	Search       string
	MinPrice     int64
	MaxPrice     int64
	Featured     *bool
	Sort         string
	Limit        int
	Offset       int
}

// Listing is a page of localized products.
type Listing struct {
	Products []ProductView `json:"products"`
	Total    int           `json:"total"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

// ListProducts returns active products matching q. A category slug also
// matches products of its descendant categories.
func (s *Service) ListProducts(ctx context.Context, q ListQuery, lang string) (*Listing, error) {
	f := models.ProductFilter{
		Search:     strings.TrimSpace(q.Search),
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		Featured:   q.Featured,
		ActiveOnly: true,
		Sort:       q.Sort,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if f.Sort == "" || f.Sort == models.SortSKU {
		f.Sort = models.SortNewest
	}

	if q.CategorySlug != "" {
		ids, err := s.categoryScope(ctx, q.CategorySlug)
		if err != nil {
			return nil, err
		}
		f.CategoryIDs = ids
	}

	products, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := &Listing{Products: make([]ProductView, 0, len(products)), Total: total, Limit: q.Limit, Offset: q.Offset}
	for i := range products {
		out.Products = append(out.Products, s.localizeProduct(&products[i], lang))
	}
	return out, nil
}

// categoryScope returns the IDs of the active category slug and all of
// its active descendants.
func (s *Service) categoryScope(ctx context.Context, slug string) ([]string, error) {
	cats, err := s.store.ListCategories(ctx, true)
	if err != nil {
		return nil, err
	}
	var root string
	children := make(map[string][]string)
	for _, c := range cats {
		if c.Slug == slug {
			root = c.ID
		}
		children[c.ParentID] = append(children[c.ParentID], c.ID)
	}
	if root == "" {
		return nil, ErrNotFound
	}

	ids := []string{root}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids, nil
}

// Product returns one active product by slug.
func (s *Service) Product(ctx context.Context, slug, lang string) (*ProductView, error) {
	p, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !p.Active {
		return nil, ErrNotFound
	}
	v := s.localizeProduct(p, lang)
	return &v, nil
}

// ProductsByIDs loads products for carts and checkout, inactive ones included.
func (s *Service) ProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	return s.store.GetProductsByIDs(ctx, ids)
}

// LocalizeProduct resolves a product for lang.
func (s *Service) LocalizeProduct(p *models.Product, lang string) ProductView {
	return s.localizeProduct(p, lang)
}

// ---- admin ----

// AdminListProducts lists products of any state for the admin area.
func (s *Service) AdminListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	if f.Sort == "" {
		f.Sort = models.SortNewest
	}
	return s.store.ListProducts(ctx, f)
}

// AdminGetProduct returns a product with all translations.
func (s *Service) AdminGetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	return p, mapNotFound(err)
}

// CreateProduct validates and stores a new product. An empty slug is
// derived from the default-language name.
func (s *Service) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := s.prepareProduct(ctx, p); err != nil {
		return err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.InvalidateCache()
	logging.Ctx(ctx).Info().Str("product_id", p.ID).Str("sku", p.SKU).Msg("Product created")
	return nil
}

// UpdateProduct validates and saves every mutable field of p.
func (s *Service) UpdateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		return ErrNotFound
	}
	if err := s.prepareProduct(ctx, p); err != nil {
		return err
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return mapNotFound(err)
	}
	s.InvalidateCache()
	return nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.InvalidateCache()
	return nil
}

// AdjustStock adds delta (negative to remove) to a product's stock and
// returns the new level. Stock never drops below zero.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	stock, err := s.store.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, mapNotFound(err)
	}
	if stock <= s.cfg.LowStockThreshold {
		logging.Ctx(ctx).Warn().Str("product_id", id).Int("stock", stock).Msg("Product stock is low")
	}
	return stock, nil
}

// LowStock lists active, stock-tracked products at or below the threshold.
func (s *Service) LowStock(ctx context.Context, limit int) ([]models.Product, error) {
	products, _, err := s.store.ListProducts(ctx, models.ProductFilter{
		ActiveOnly: true,
		StockBelow: s.cfg.LowStockThreshold + 1,
		Sort:       models.SortSKU,
		Limit:      limit,
	})
	return products, err
}

func (s *Service) prepareProduct(ctx context.Context, p *models.Product) error {
	def := s.registry.Default()
	if p.Translations == nil {
		p.Translations = i18n.Translations{}
	}
	p.Translations.Prune(s.registry.Codes(), models.ProductFields)
	if err := p.Translations.RequireDefault(def, "name"); err != nil {
		return validation.NewFieldError("translations", "required", err.Error())
	}
	if p.Slug == "" {
		p.Slug = slugFor(p.Translations.Get(def, "name", ""))
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if verr := validation.ValidateStruct(productInput{
		SKU: p.SKU, Slug: p.Slug, Price: p.Price, CompareAtPrice: p.CompareAtPrice, Stock: p.Stock,
	}); verr != nil {
		return verr
	}
	if p.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, p.CategoryID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return validation.NewFieldError("category_id", "exists", "category_id does not exist")
			}
			return err
		}
	}
	return nil
}

type productInput struct {
	SKU            string `json:"sku" validate:"required,sku"`
	Slug           string `json:"slug" validate:"required,slug,max=120"`
	Price          int64  `json:"price" validate:"gte=0"`
	CompareAtPrice int64  `json:"compare_at_price" validate:"gte=0"`
	Stock          int    `json:"stock" validate:"gte=0"`
}

// AdminListCategories lists all categories with translations.
func (s *Service) AdminListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx, false)
}

// CreateCategory validates and stores a new category.
func (s *Service) CreateCategory(ctx context.Context, c *models.Category) error {
	if err := s.prepareCategory(ctx, c); err != nil {
		return err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return err
	}
	s.InvalidateCache()
	return nil
}

// UpdateCategory validates and saves a category. A category cannot become
// its own ancestor.
func (s *Service) UpdateCategory(ctx context.Context, c *models.Category) error {
	if c.ID == "" {
		return ErrNotFound
	}
	if err := s.prepareCategory(ctx, c); err != nil {
		return err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return mapNotFound(err)
	}
	s.InvalidateCache()
	return nil
}

// DeleteCategory removes an empty category.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.InvalidateCache()
	return nil
}

func (s *Service) prepareCategory(ctx context.Context, c *models.Category) error {
	def := s.registry.Default()
	if c.Translations == nil {
		c.Translations = i18n.Translations{}
	}
	c.Translations.Prune(s.registry.Codes(), models.CategoryFields)
	if err := c.Translations.RequireDefault(def, "name"); err != nil {
		return validation.NewFieldError("translations", "required", err.Error())
	}
	if c.Slug == "" {
		c.Slug = slugFor(c.Translations.Get(def, "name", ""))
	}
	if !validation.IsSlug(c.Slug) {
		return validation.NewFieldError("slug", "slug", "slug must contain only lowercase letters, digits and hyphens")
	}
	if c.ParentID == "" {
		return nil
	}

	cats, err := s.store.ListCategories(ctx, false)
	if err != nil {
		return err
	}
	parents := make(map[string]string, len(cats))
	for _, cat := range cats {
		parents[cat.ID] = cat.ParentID
	}
	if _, ok := parents[c.ParentID]; !ok {
		return validation.NewFieldError("parent_id", "exists", "parent_id does not exist")
	}
	for id, hops := c.ParentID, 0; id != "" && hops <= len(cats); id, hops = parents[id], hops+1 {
		if c.ID != "" && id == c.ID {
			return validation.NewFieldError("parent_id", "cycle", "a category cannot be moved below itself")
		}
	}
	return nil
}

// slugFor derives a slug, falling back to a short random one for titles
// without Latin letters.
func slugFor(title string) string {
	if slug := validation.Slugify(title); slug != "" {
		return slug
	}
	return "item-" + strings.SplitN(uuid.New().String(), "-", 2)[0]
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
