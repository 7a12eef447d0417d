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
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/models"
)

const categoryColumns = `id, slug, parent_id, translations, sort_order, active, created_at, updated_at`

func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Slug, &c.ParentID, &c.Translations, &c.SortOrder, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns categories ordered for display.
func (db *DB) ListCategories(ctx context.Context, activeOnly bool) (_ []models.Category, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "categories", time.Now(), &err)

	query := `SELECT ` + categoryColumns + ` FROM categories`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY sort_order, slug`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCategory returns a category by ID.
func (db *DB) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return db.getCategory(ctx, `id = ?`, id)
}

// GetCategoryBySlug returns a category by slug.
func (db *DB) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return db.getCategory(ctx, `slug = ?`, slug)
}

func (db *DB) getCategory(ctx context.Context, where string, arg interface{}) (*models.Category, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	c, err := scanCategory(db.conn.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// CreateCategory inserts c, assigning ID and timestamps.
func (db *DB) CreateCategory(ctx context.Context, c *models.Category) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if err := db.ensureUniqueSlug(ctx, "categories", c.Slug, ""); err != nil {
		return err
	}
	now := db.now()
	c.ID = uuid.New().String()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := db.conn.ExecContext(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Slug, c.ParentID, c.Translations.JSON(), c.SortOrder, c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", mapConflict(err))
	}
	return nil
}

// UpdateCategory saves every mutable field of c.
func (db *DB) UpdateCategory(ctx context.Context, c *models.Category) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if c.ParentID == c.ID {
		return fmt.Errorf("%w: a category cannot be its own parent", ErrConflict)
	}
	if err := db.ensureUniqueSlug(ctx, "categories", c.Slug, c.ID); err != nil {
		return err
	}
	c.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx, `UPDATE categories SET slug = ?, parent_id = ?, translations = ?,
		sort_order = ?, active = ?, updated_at = ? WHERE id = ?`,
		c.Slug, c.ParentID, c.Translations.JSON(), c.SortOrder, c.Active, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireRow(res)
}

// DeleteCategory removes a category that has no products or children.
func (db *DB) DeleteCategory(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var refs int
	err := db.conn.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM products WHERE category_id = ?) +
		(SELECT COUNT(*) FROM categories WHERE parent_id = ?)`, id, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to check category usage: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: category still has products or subcategories", ErrConflict)
	}
	res, err := db.conn.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireRow(res)
}

// ensureUniqueSlug returns ErrDuplicate when slug is used by another row
// of table. table is always a package constant.
func (db *DB) ensureUniqueSlug(ctx context.Context, table, slug, excludeID string) error {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE slug = ? AND id <> ?`, slug, excludeID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: slug %q is already used", ErrDuplicate, slug)
	}
	return nil
}

// requireRow maps "no rows affected" to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
