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

const postColumns = `id, slug, author_id, status, translations, cover_image, published_at, created_at, updated_at`

func scanPost(row scanner) (*models.Post, error) {
	var (
		p         models.Post
		published sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Slug, &p.AuthorID, &p.Status, &p.Translations, &p.CoverImage,
		&published, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PublishedAt = nullTimePtr(published)
	return &p, nil
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// ListPosts returns one page of posts and the total number of matches.
// Published listings are ordered by publication date, others by update.
func (db *DB) ListPosts(ctx context.Context, f models.PostFilter) (_ []models.Post, total int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "posts", time.Now(), &err)

	limit, offset := clampPage(f.Limit, f.Offset)
	w := &whereBuilder{}
	order := ` ORDER BY updated_at DESC, id`
	if f.PublishedOnly {
		w.add("status = ?", models.PostPublished)
		w.add("published_at IS NOT NULL AND published_at <= ?", db.now())
		order = ` ORDER BY published_at DESC, id`
	} else if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Search != "" {
		w.add(`search_text LIKE ? ESCAPE '\'`, likePattern(f.Search))
	}

	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}
	args := append(append([]interface{}{}, w.args...), limit, offset)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+postColumns+` FROM posts`+w.sql()+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	out := make([]models.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// GetPost returns a post by ID.
func (db *DB) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return db.getPost(ctx, `id = ?`, id)
}

// GetPostBySlug returns a post by slug regardless of status.
func (db *DB) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return db.getPost(ctx, `slug = ?`, slug)
}

func (db *DB) getPost(ctx context.Context, where string, arg interface{}) (*models.Post, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	p, err := scanPost(db.conn.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// CreatePost inserts p.
func (db *DB) CreatePost(ctx context.Context, p *models.Post) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if err := db.ensureUniqueSlug(ctx, "posts", p.Slug, ""); err != nil {
		return err
	}
	now := db.now()
	p.ID = uuid.New().String()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := db.conn.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`, search_text) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.AuthorID, p.Status, p.Translations.JSON(), p.CoverImage, timeArg(p.PublishedAt), p.CreatedAt, p.UpdatedAt,
		p.Translations.SearchText())
	if err != nil {
		return fmt.Errorf("failed to create post: %w", mapConflict(err))
	}
	return nil
}

// UpdatePost saves every mutable field of p.
func (db *DB) UpdatePost(ctx context.Context, p *models.Post) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if err := db.ensureUniqueSlug(ctx, "posts", p.Slug, p.ID); err != nil {
		return err
	}
	p.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx, `UPDATE posts SET slug = ?, author_id = ?, status = ?, translations = ?,
		cover_image = ?, published_at = ?, search_text = ?, updated_at = ? WHERE id = ?`,
		p.Slug, p.AuthorID, p.Status, p.Translations.JSON(), p.CoverImage, timeArg(p.PublishedAt),
		p.Translations.SearchText(), p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return requireRow(res)
}

// DeletePost removes a post.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return requireRow(res)
}
