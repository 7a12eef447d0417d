// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"fmt"
)

// Translatable columns hold JSON text shaped {"lang": {"field": "value"}}.
// Money columns are BIGINT minor units. There are no foreign keys: DuckDB
// rewrites referenced rows on update, so integrity is kept by the services.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS order_number_seq START 1001`,

	`CREATE TABLE IF NOT EXISTS languages (
		code VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL,
		native_name VARCHAR NOT NULL DEFAULT '',
		direction VARCHAR NOT NULL DEFAULT 'ltr',
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR PRIMARY KEY,
		email VARCHAR NOT NULL UNIQUE,
		name VARCHAR NOT NULL DEFAULT '',
		password_hash VARCHAR NOT NULL,
		role VARCHAR NOT NULL DEFAULT 'customer',
		language VARCHAR NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id VARCHAR PRIMARY KEY,
		slug VARCHAR NOT NULL,
		parent_id VARCHAR NOT NULL DEFAULT '',
		translations VARCHAR NOT NULL DEFAULT '{}',
		sort_order INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR PRIMARY KEY,
		sku VARCHAR NOT NULL,
		slug VARCHAR NOT NULL,
		category_id VARCHAR NOT NULL DEFAULT '',
		translations VARCHAR NOT NULL DEFAULT '{}',
		price BIGINT NOT NULL,
		compare_at_price BIGINT NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0,
		track_stock BOOLEAN NOT NULL DEFAULT TRUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		images VARCHAR NOT NULL DEFAULT '[]',
		search_text VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR PRIMARY KEY,
		number VARCHAR NOT NULL,
		user_id VARCHAR NOT NULL DEFAULT '',
		email VARCHAR NOT NULL,
		phone VARCHAR NOT NULL DEFAULT '',
		language VARCHAR NOT NULL,
		currency VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		payment_status VARCHAR NOT NULL,
		gateway VARCHAR NOT NULL,
		payment_reference VARCHAR NOT NULL DEFAULT '',
		subtotal BIGINT NOT NULL,
		shipping BIGINT NOT NULL,
		tax BIGINT NOT NULL,
		fee BIGINT NOT NULL,
		total BIGINT NOT NULL,
		shipping_address VARCHAR NOT NULL DEFAULT '{}',
		notes VARCHAR NOT NULL DEFAULT '',
		access_token VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		paid_at TIMESTAMP,
		cancelled_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id VARCHAR PRIMARY KEY,
		order_id VARCHAR NOT NULL,
		product_id VARCHAR NOT NULL,
		sku VARCHAR NOT NULL,
		name VARCHAR NOT NULL,
		unit_price BIGINT NOT NULL,
		quantity INTEGER NOT NULL,
		line_total BIGINT NOT NULL,
		restock BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS payment_transactions (
		id VARCHAR PRIMARY KEY,
		order_id VARCHAR NOT NULL,
		gateway VARCHAR NOT NULL,
		external_id VARCHAR NOT NULL DEFAULT '',
		status VARCHAR NOT NULL,
		amount BIGINT NOT NULL,
		currency VARCHAR NOT NULL,
		message VARCHAR NOT NULL DEFAULT '',
		raw VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS payment_events (
		gateway VARCHAR NOT NULL,
		event_id VARCHAR NOT NULL,
		event_type VARCHAR NOT NULL,
		order_id VARCHAR NOT NULL DEFAULT '',
		received_at TIMESTAMP NOT NULL,
		PRIMARY KEY (gateway, event_id)
	)`,

	`CREATE TABLE IF NOT EXISTS payment_gateways (
		slug VARCHAR PRIMARY KEY,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		translations VARCHAR NOT NULL DEFAULT '{}',
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS posts (
		id VARCHAR PRIMARY KEY,
		slug VARCHAR NOT NULL,
		author_id VARCHAR NOT NULL DEFAULT '',
		status VARCHAR NOT NULL DEFAULT 'draft',
		translations VARCHAR NOT NULL DEFAULT '{}',
		cover_image VARCHAR NOT NULL DEFAULT '',
		published_at TIMESTAMP,
		search_text VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS newsletter_subscribers (
		id VARCHAR PRIMARY KEY,
		email VARCHAR NOT NULL UNIQUE,
		language VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		confirm_token VARCHAR NOT NULL DEFAULT '',
		unsubscribe_token VARCHAR NOT NULL,
		confirmed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS newsletter_campaigns (
		id VARCHAR PRIMARY KEY,
		translations VARCHAR NOT NULL DEFAULT '{}',
		status VARCHAR NOT NULL,
		scheduled_at TIMESTAMP,
		recurrence VARCHAR NOT NULL DEFAULT '',
		last_run_at TIMESTAMP,
		sent_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		created_by VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS newsletter_deliveries (
		id VARCHAR PRIMARY KEY,
		campaign_id VARCHAR NOT NULL,
		subscriber_id VARCHAR NOT NULL,
		email VARCHAR NOT NULL,
		language VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		error VARCHAR NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR PRIMARY KEY,
		actor_id VARCHAR NOT NULL,
		actor_email VARCHAR NOT NULL DEFAULT '',
		action VARCHAR NOT NULL,
		entity_type VARCHAR NOT NULL,
		entity_id VARCHAR NOT NULL DEFAULT '',
		details VARCHAR NOT NULL DEFAULT '{}',
		ip VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_products_slug ON products(slug)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_slug ON categories(slug)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_number ON orders(number)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_tx_order ON payment_transactions(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_slug ON posts(slug)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_campaign ON newsletter_deliveries(campaign_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_events(entity_type, entity_id)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, stmt := range indexStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
