// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/souq/internal/kv"
)

const cartKeyPrefix = "cart:"

// Item is one cart line. Prices are resolved at view time, never stored.
type Item struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Cart is a visitor's cart keyed by the opaque cart cookie value.
type Cart struct {
	ID        string    `json:"id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cart) find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(productID string) bool {
	if i := c.find(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	return false
}

// ProductIDs returns the product of every line.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}
	return ids
}

// Store persists carts. Load returns errCartMissing for unknown or
// expired carts.
type Store interface {
	Load(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

var errCartMissing = errors.New("cart not found")

// BadgerStore keeps carts in the shared KV store with a TTL that is
// refreshed on every write.
type BadgerStore struct {
	store *kv.Store
}

// NewBadgerStore creates a Badger-backed cart store.
func NewBadgerStore(store *kv.Store) *BadgerStore {
	return &BadgerStore{store: store}
}

// Load implements Store.
func (s *BadgerStore) Load(ctx context.Context, id string) (*Cart, error) {
	var c Cart
	if err := s.store.Get(ctx, cartKeyPrefix+id, &c); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, errCartMissing
		}
		return nil, err
	}
	return &c, nil
}

// Save implements Store.
func (s *BadgerStore) Save(ctx context.Context, c *Cart, ttl time.Duration) error {
	return s.store.Set(ctx, cartKeyPrefix+c.ID, c, ttl)
}

// Delete implements Store.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, cartKeyPrefix+id)
}

type memoryEntry struct {
	cart      Cart
	expiresAt time.Time
}

// MemoryStore keeps carts in process memory. It is meant for tests and
// single-node development.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory cart store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]memoryEntry)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, id string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.carts[id]
	if !ok {
		return nil, errCartMissing
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(s.carts, id)
		return nil, errCartMissing
	}
	c := e.cart
	c.Items = append([]Item(nil), e.cart.Items...)
	return &c, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, c *Cart, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{cart: *c}
	e.cart.Items = append([]Item(nil), c.Items...)
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.carts[c.ID] = e
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}
