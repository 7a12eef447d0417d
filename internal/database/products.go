// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/models"
)

const productColumns = `id, sku, slug, category_id, translations, price, compare_at_price,
	stock, track_stock, active, featured, images, created_at, updated_at`

func scanProduct(row scanner) (*models.Product, error) {
	var (
		p      models.Product
		images string
	)
	err := row.Scan(&p.ID, &p.SKU, &p.Slug, &p.CategoryID, &p.Translations, &p.Price, &p.CompareAtPrice,
		&p.Stock, &p.TrackStock, &p.Active, &p.Featured, &images, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
			return nil, fmt.Errorf("decode images of product %s: %w", p.ID, err)
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode images: %w", err)
	}
	return string(b), nil
}

// productSearchText is what product search matches against: the SKU and
// every translated value, without the JSON keys around them.
func productSearchText(p *models.Product) string {
	text := strings.ToLower(p.SKU)
	if t := p.Translations.SearchText(); t != "" {
		text += "\n" + t
	}
	return text
}

func productWhere(f *models.ProductFilter) *whereBuilder {
	w := &whereBuilder{}
	if len(f.CategoryIDs) > 0 {
		w.in("category_id", f.CategoryIDs)
	}
	if f.Search != "" {
		w.add(`search_text LIKE ? ESCAPE '\'`, likePattern(f.Search))
	}
	if f.MinPrice > 0 {
		w.add("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		w.add("price <= ?", f.MaxPrice)
	}
	if f.Featured != nil {
		w.add("featured = ?", *f.Featured)
	}
	if f.ActiveOnly {
		w.add("active")
	}
	if f.InStockOnly {
		w.add("(NOT track_stock OR stock > 0)")
	}
	if f.StockBelow > 0 {
		w.add("track_stock AND stock < ?", f.StockBelow)
	}
	return w
}

func productOrder(sort string) string {
	switch sort {
	case models.SortPriceAsc:
		return " ORDER BY price ASC, id"
	case models.SortPriceDesc:
		return " ORDER BY price DESC, id"
	case models.SortSKU:
		return " ORDER BY sku, id"
	default:
		return " ORDER BY created_at DESC, id"
	}
}

// ListProducts returns one page of products matching f and the total
// number of matches.
func (db *DB) ListProducts(ctx context.Context, f models.ProductFilter) (_ []models.Product, total int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "products", time.Now(), &err)

	limit, offset := clampPage(f.Limit, f.Offset)
	w := productWhere(&f)

	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	args := append(append([]interface{}{}, w.args...), limit, offset)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products`+w.sql()+productOrder(f.Sort)+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	out := make([]models.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// GetProduct returns a product by ID.
func (db *DB) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return db.getProduct(ctx, `id = ?`, id)
}

// GetProductBySlug returns a product by slug.
func (db *DB) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return db.getProduct(ctx, `slug = ?`, slug)
}

func (db *DB) getProduct(ctx context.Context, where string, arg interface{}) (*models.Product, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	p, err := scanProduct(db.conn.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetProductsByIDs returns the products with the given IDs keyed by ID.
// Missing IDs are simply absent from the map.
func (db *DB) GetProductsByIDs(ctx context.Context, ids []string) (_ map[string]*models.Product, err error) {
	out := make(map[string]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "products", time.Now(), &err)

	w := &whereBuilder{}
	w.in("id", ids)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+productColumns+` FROM products`+w.sql(), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// CreateProduct inserts p. Slug and SKU must be unique.
func (db *DB) CreateProduct(ctx context.Context, p *models.Product) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "products", time.Now(), &err)

	if err := db.ensureUniqueProduct(ctx, p.Slug, p.SKU, ""); err != nil {
		return err
	}
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}
	now := db.now()
	p.ID = uuid.New().String()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err = db.conn.ExecContext(ctx, `INSERT INTO products (`+productColumns+`, search_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SKU, p.Slug, p.CategoryID, p.Translations.JSON(), p.Price, p.CompareAtPrice,
		p.Stock, p.TrackStock, p.Active, p.Featured, images, p.CreatedAt, p.UpdatedAt, productSearchText(p))
	if err != nil {
		return fmt.Errorf("failed to create product: %w", mapConflict(err))
	}
	return nil
}

// UpdateProduct saves every mutable field of p, including stock.
func (db *DB) UpdateProduct(ctx context.Context, p *models.Product) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("UPDATE", "products", time.Now(), &err)

	if err := db.ensureUniqueProduct(ctx, p.Slug, p.SKU, p.ID); err != nil {
		return err
	}
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}
	p.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx, `UPDATE products SET sku = ?, slug = ?, category_id = ?,
		translations = ?, price = ?, compare_at_price = ?, stock = ?, track_stock = ?, active = ?,
		featured = ?, images = ?, search_text = ?, updated_at = ? WHERE id = ?`,
		p.SKU, p.Slug, p.CategoryID, p.Translations.JSON(), p.Price, p.CompareAtPrice, p.Stock,
		p.TrackStock, p.Active, p.Featured, images, productSearchText(p), p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", mapConflict(err))
	}
	return requireRow(res)
}

// DeleteProduct removes a product. Orders keep their item snapshots.
func (db *DB) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireRow(res)
}

// AdjustStock adds delta to a product's stock and returns the new level.
// A negative result is rejected with ErrInsufficientStock.
func (db *DB) AdjustStock(ctx context.Context, id string, delta int) (stock int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("UPDATE", "products", time.Now(), &err)

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ? AND stock + ? >= 0`,
			delta, db.now(), id, delta)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE id = ?`, id).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return ErrNotFound
			}
			return ErrInsufficientStock
		}
		return tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, id).Scan(&stock)
	})
	return stock, err
}

func (db *DB) ensureUniqueProduct(ctx context.Context, slug, sku, excludeID string) error {
	if err := db.ensureUniqueSlug(ctx, "products", slug, excludeID); err != nil {
		return err
	}
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE sku = ? AND id <> ?`, sku, excludeID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: sku %q is already used", ErrDuplicate, sku)
	}
	return nil
}
