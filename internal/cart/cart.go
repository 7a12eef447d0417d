// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package cart implements shopping carts keyed by an opaque cookie value.
// Carts hold product IDs and quantities only; prices and names are
// resolved from the catalog whenever a cart is viewed.
package cart

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/metrics"
	"github.com/tomtom215/souq/internal/models"
)

// CookieName carries the cart ID.
const CookieName = "souq_cart"

// MaxLineQuantity caps the quantity of a single line.
const MaxLineQuantity = 100

var (
	// ErrInsufficientStock is returned when a stock-tracked product has
	// fewer units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductUnavailable is returned for unknown or inactive products.
	ErrProductUnavailable = errors.New("product unavailable")

	// ErrInvalidQuantity is returned for non-positive add quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrItemNotInCart is returned when updating or removing a missing line.
	ErrItemNotInCart = errors.New("item not in cart")
)

// Products resolves cart lines. *catalog.Service implements it.
type Products interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
	LocalizeProduct(p *models.Product, lang string) catalog.ProductView
}

// Service implements cart operations.
type Service struct {
	store    Store
	products Products
	ttl      time.Duration
	currency string

	// striped locks serialize read-modify-write per cart
	locks [32]sync.Mutex
}

// NewService creates a cart service. ttl is how long an untouched cart lives.
func NewService(store Store, products Products, ttl time.Duration, currency string) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{store: store, products: products, ttl: ttl, currency: currency}
}

// NewID returns a fresh cart ID.
func NewID() string {
	return uuid.New().String()
}

// TTL returns the cart lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id)) //nolint:errcheck // hash writes never fail
	m := &s.locks[h.Sum32()%uint32(len(s.locks))]
	m.Lock()
	return m.Unlock
}

// Get returns the cart, or an empty cart for unknown or expired IDs.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	c, err := s.store.Load(ctx, id)
	if errors.Is(err, errCartMissing) {
		return &Cart{ID: id, Items: []Item{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

func (s *Service) mutate(ctx context.Context, op, id string, fn func(c *Cart) error) (c *Cart, err error) {
	defer func() { metrics.RecordCartOperation(op, err) }()

	unlock := s.lock(id)
	defer unlock()

	c, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	if len(c.Items) == 0 {
		if err := s.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("delete cart: %w", err)
		}
		return c, nil
	}
	if err := s.store.Save(ctx, c, s.ttl); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

// AddItem adds qty units of a product, merging with an existing line. The
// line is capped at MaxLineQuantity.
func (s *Service) AddItem(ctx context.Context, id, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, "add", id, func(c *Cart) error {
		total := qty
		i := c.find(productID)
		if i >= 0 {
			total += c.Items[i].Quantity
		}
		total = min(total, MaxLineQuantity)
		if err := s.checkStock(ctx, productID, total); err != nil {
			return err
		}
		if i >= 0 {
			c.Items[i].Quantity = total
		} else {
			c.Items = append(c.Items, Item{ProductID: productID, Quantity: total, AddedAt: time.Now().UTC()})
		}
		return nil
	})
}

// UpdateItem sets a line's quantity. A quantity of zero or less removes it.
func (s *Service) UpdateItem(ctx context.Context, id, productID string, qty int) (*Cart, error) {
	return s.mutate(ctx, "update", id, func(c *Cart) error {
		i := c.find(productID)
		if i < 0 {
			return ErrItemNotInCart
		}
		if qty <= 0 {
			c.remove(productID)
			return nil
		}
		qty = min(qty, MaxLineQuantity)
		if err := s.checkStock(ctx, productID, qty); err != nil {
			return err
		}
		c.Items[i].Quantity = qty
		return nil
	})
}

// RemoveItem drops a line.
func (s *Service) RemoveItem(ctx context.Context, id, productID string) (*Cart, error) {
	return s.mutate(ctx, "remove", id, func(c *Cart) error {
		if !c.remove(productID) {
			return ErrItemNotInCart
		}
		return nil
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, id string) (err error) {
	defer func() { metrics.RecordCartOperation("clear", err) }()
	unlock := s.lock(id)
	defer unlock()
	return s.store.Delete(ctx, id)
}

func (s *Service) checkStock(ctx context.Context, productID string, qty int) error {
	products, err := s.products.ProductsByIDs(ctx, []string{productID})
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	p, ok := products[productID]
	if !ok || !p.Active {
		return ErrProductUnavailable
	}
	if !p.Available(qty) {
		return fmt.Errorf("%w: %d available", ErrInsufficientStock, p.Stock)
	}
	return nil
}

// Line is a resolved cart line.
type Line struct {
	Product   catalog.ProductView `json:"product"`
	Quantity  int                 `json:"quantity"`
	UnitPrice int64               `json:"unit_price"`
	LineTotal int64               `json:"line_total"`
	Available bool                `json:"available"`
}

// View is a cart resolved for one language with current prices.
type View struct {
	ID        string `json:"id"`
	Lines     []Line `json:"lines"`
	ItemCount int    `json:"item_count"`
	Subtotal  int64  `json:"subtotal"`
	Currency  string `json:"currency"`

	// Removed lists products dropped because they no longer exist or
	// were deactivated.
	Removed []string `json:"removed,omitempty"`

	// Products holds the raw products by ID for checkout.
	Products map[string]*models.Product `json:"-"`
}

// Purchasable reports whether every line can be sold as is.
func (v *View) Purchasable() bool {
	if len(v.Lines) == 0 {
		return false
	}
	for _, l := range v.Lines {
		if !l.Available {
			return false
		}
	}
	return true
}

// View resolves the cart for lang. Lines whose product is gone or inactive
// are removed from the stored cart.
func (s *Service) View(ctx context.Context, id, lang string) (*View, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &View{ID: id, Lines: []Line{}, Currency: s.currency}
	if len(c.Items) == 0 {
		return v, nil
	}

	products, err := s.products.ProductsByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	v.Products = products

	for _, it := range c.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.Active {
			v.Removed = append(v.Removed, it.ProductID)
			continue
		}
		line := Line{
			Product:   s.products.LocalizeProduct(p, lang),
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			LineTotal: p.Price * int64(it.Quantity),
			Available: p.Available(it.Quantity),
		}
		v.Lines = append(v.Lines, line)
		v.ItemCount += it.Quantity
		v.Subtotal += line.LineTotal
	}

	if len(v.Removed) > 0 {
		_, err := s.mutate(ctx, "prune", id, func(c *Cart) error {
			for _, pid := range v.Removed {
				c.remove(pid)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// CartID returns the cart cookie value, minting and setting a new cookie
// when the request has none.
func CartID(w http.ResponseWriter, r *http.Request, ttl time.Duration, secure bool) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := NewID()
	SetCookie(w, id, ttl, secure)
	return id
}

// ExistingCartID returns the cart cookie value without minting one.
func ExistingCartID(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// SetCookie writes the cart cookie.
func SetCookie(w http.ResponseWriter, id string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
