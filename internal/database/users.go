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

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/models"
)

const userColumns = `id, email, name, password_hash, role, language, active, last_login_at, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var (
		u         models.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Language, &u.Active,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.LastLoginAt = nullTimePtr(lastLogin)
	return &u, nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts u. Emails are unique case-insensitively.
func (db *DB) CreateUser(ctx context.Context, u *models.User) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "users", time.Now(), &err)

	u.Email = NormalizeEmail(u.Email)
	now := db.now()
	u.ID = uuid.New().String()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err = db.conn.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Language, u.Active, nil, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		err = mapConflict(err)
		if errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("%w: email %q is already registered", ErrDuplicate, u.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(ctx, `id = ?`, id)
}

// GetUserByEmail returns a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, `email = ?`, NormalizeEmail(email))
}

func (db *DB) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	u, err := scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UpdateUser saves profile, role and status fields. The password hash is
// only written when non-empty.
func (db *DB) UpdateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	u.Email = NormalizeEmail(u.Email)
	u.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET email = ?, name = ?, role = ?, language = ?,
		active = ?, password_hash = CASE WHEN ? = '' THEN password_hash ELSE ? END, updated_at = ?
		WHERE id = ?`,
		u.Email, u.Name, u.Role, u.Language, u.Active, u.PasswordHash, u.PasswordHash, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", mapConflict(err))
	}
	return requireRow(res)
}

// TouchLogin records a successful login.
func (db *DB) TouchLogin(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// ListUsers returns users, optionally only one role, newest first.
func (db *DB) ListUsers(ctx context.Context, role, search string, limit, offset int) (_ []models.User, total int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "users", time.Now(), &err)

	limit, offset = clampPage(limit, offset)
	w := &whereBuilder{}
	if role != "" {
		w.add("role = ?", role)
	}
	if search != "" {
		p := likePattern(search)
		w.add(`(lower(email) LIKE ? ESCAPE '\' OR lower(name) LIKE ? ESCAPE '\')`, p, p)
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	args := append(append([]interface{}{}, w.args...), limit, offset)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+w.sql()+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// CountUsersByRole returns the number of active users with role.
func (db *DB) CountUsersByRole(ctx context.Context, role string) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ? AND active`, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
