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

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/models"
)

// OrderNumberPrefix prefixes the sequence value in order numbers.
const OrderNumberPrefix = "SQ-"

const orderColumns = `id, number, user_id, email, phone, language, currency, status, payment_status,
	gateway, payment_reference, subtotal, shipping, tax, fee, total, shipping_address, notes,
	access_token, created_at, updated_at, paid_at, cancelled_at`

const orderItemColumns = `id, order_id, product_id, sku, name, unit_price, quantity, line_total, restock`

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o                   models.Order
		address             string
		paidAt, cancelledAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Email, &o.Phone, &o.Language, &o.Currency,
		&o.Status, &o.PaymentStatus, &o.Gateway, &o.PaymentReference, &o.Subtotal, &o.Shipping,
		&o.Tax, &o.Fee, &o.Total, &address, &o.Notes, &o.AccessToken, &o.CreatedAt, &o.UpdatedAt,
		&paidAt, &cancelledAt)
	if err != nil {
		return nil, err
	}
	if address != "" {
		if err := json.Unmarshal([]byte(address), &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode address of order %s: %w", o.ID, err)
		}
	}
	o.PaidAt = nullTimePtr(paidAt)
	o.CancelledAt = nullTimePtr(cancelledAt)
	return &o, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// CreateOrder reserves stock for every item, allocates the order number
// and inserts the order with its items in one transaction. A line whose
// product is inactive or short on stock fails the whole order with
// ErrInsufficientStock and nothing is written.
func (db *DB) CreateOrder(ctx context.Context, o *models.Order) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "orders", time.Now(), &err)

	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	now := db.now()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range o.Items {
			item := &o.Items[i]
			res, err := tx.ExecContext(ctx, `UPDATE products
				SET stock = CASE WHEN track_stock THEN stock - ? ELSE stock END, updated_at = ?
				WHERE id = ? AND active AND (NOT track_stock OR stock >= ?)`,
				item.Quantity, now, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("reserve stock: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, item.SKU)
			}
		}

		var seq int64
		if err := tx.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}
		o.ID = uuid.New().String()
		o.Number = fmt.Sprintf("%s%d", OrderNumberPrefix, seq)
		o.CreatedAt, o.UpdatedAt = now, now

		_, err := tx.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.Number, o.UserID, o.Email, o.Phone, o.Language, o.Currency, string(o.Status),
			string(o.PaymentStatus), o.Gateway, o.PaymentReference, o.Subtotal, o.Shipping, o.Tax, o.Fee,
			o.Total, string(address), o.Notes, o.AccessToken, o.CreatedAt, o.UpdatedAt, nil, nil)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range o.Items {
			item := &o.Items[i]
			item.ID = uuid.New().String()
			item.OrderID = o.ID
			_, err := tx.ExecContext(ctx, `INSERT INTO order_items (`+orderItemColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				item.ID, item.OrderID, item.ProductID, item.SKU, item.Name, item.UnitPrice,
				item.Quantity, item.LineTotal, item.Restock)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetOrder returns an order with its items.
func (db *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return db.getOrderWhere(ctx, `id = ?`, id)
}

// GetOrderByNumber returns an order with its items by its public number.
func (db *DB) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return db.getOrderWhere(ctx, `number = ?`, number)
}

func (db *DB) getOrderWhere(ctx context.Context, where string, args ...interface{}) (_ *models.Order, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "orders", time.Now(), &err)

	o, err := scanOrder(db.conn.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if o.Items, err = db.orderItems(ctx, db.conn, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (db *DB) orderItems(ctx context.Context, q querier, orderID string) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ? ORDER BY sku`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU, &it.Name, &it.UnitPrice,
			&it.Quantity, &it.LineTotal, &it.Restock); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListOrders returns one page of orders, newest first, without items.
func (db *DB) ListOrders(ctx context.Context, f models.OrderFilter) (_ []models.Order, total int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "orders", time.Now(), &err)

	limit, offset := clampPage(f.Limit, f.Offset)
	w := &whereBuilder{}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if f.PaymentStatus != "" {
		w.add("payment_status = ?", string(f.PaymentStatus))
	}
	if f.Gateway != "" {
		w.add("gateway = ?", f.Gateway)
	}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add(`(lower(number) LIKE ? ESCAPE '\' OR lower(email) LIKE ? ESCAPE '\')`, p, p)
	}
	if f.From != nil {
		w.add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("created_at < ?", *f.To)
	}

	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	args := append(append([]interface{}{}, w.args...), limit, offset)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+w.sql()+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	out := make([]models.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

// TransitionOrder applies t only if the order is still in t.From and
// t.FromPayment (empty values match anything). It returns ErrConflict when
// the order moved on, and the updated order otherwise. With t.Restock the
// stock of every restockable item is returned in the same transaction.
func (db *DB) TransitionOrder(ctx context.Context, t models.OrderTransition) (_ *models.Order, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("UPDATE", "orders", time.Now(), &err)

	if t.At.IsZero() {
		t.At = db.now()
	}

	var updated *models.Order
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		set := `updated_at = ?`
		args := []interface{}{t.At}
		if t.To != "" {
			set += `, status = ?`
			args = append(args, string(t.To))
			if t.To == models.OrderCancelled {
				set += `, cancelled_at = ?`
				args = append(args, t.At)
			}
		}
		if t.ToPayment != "" {
			set += `, payment_status = ?`
			args = append(args, string(t.ToPayment))
			if t.ToPayment == models.PaymentPaid {
				set += `, paid_at = COALESCE(paid_at, ?)`
				args = append(args, t.At)
			}
		}
		if t.Reference != "" {
			set += `, payment_reference = ?`
			args = append(args, t.Reference)
		}

		w := &whereBuilder{}
		w.add("id = ?", t.OrderID)
		if t.From != "" {
			w.add("status = ?", string(t.From))
		}
		if t.FromPayment != "" {
			w.add("payment_status = ?", string(t.FromPayment))
		}
		args = append(args, w.args...)

		res, err := tx.ExecContext(ctx, `UPDATE orders SET `+set+w.sql(), args...)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, t.OrderID).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return ErrNotFound
			}
			return ErrConflict
		}

		items, err := db.orderItems(ctx, tx, t.OrderID)
		if err != nil {
			return err
		}
		if t.Restock {
			for _, it := range items {
				if !it.Restock {
					continue
				}
				if _, err := tx.ExecContext(ctx,
					`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ? AND track_stock`,
					it.Quantity, t.At, it.ProductID); err != nil {
					return fmt.Errorf("restock %s: %w", it.SKU, err)
				}
			}
		}

		o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, t.OrderID))
		if err != nil {
			return err
		}
		o.Items = items
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetOrderPaymentReference stores the provider reference (session, order
// or charge ID) created for an order.
func (db *DB) SetOrderPaymentReference(ctx context.Context, orderID, reference string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE orders SET payment_reference = ?, updated_at = ? WHERE id = ?`,
		reference, db.now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}
	return requireRow(res)
}

// ListStalePendingOrders returns pending, unpaid orders created before the
// cutoff. Orders awaiting offline payment (bank transfer, cash on
// delivery) are excluded.
func (db *DB) ListStalePendingOrders(ctx context.Context, before time.Time, offline []string, limit int) (_ []models.Order, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "orders", time.Now(), &err)

	if limit <= 0 {
		limit = 100
	}
	w := &whereBuilder{}
	w.add("status = ?", string(models.OrderPending))
	w.add("payment_status IN (?, ?, ?)", string(models.PaymentUnpaid), string(models.PaymentPending), string(models.PaymentFailed))
	w.add("created_at < ?", before)
	for _, slug := range offline {
		w.add("gateway <> ?", slug)
	}
	args := append(w.args, limit)

	rows, err := db.conn.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+w.sql()+
		` ORDER BY created_at LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// GetOrderByPaymentReference returns the order a provider reference was
// stored for.
func (db *DB) GetOrderByPaymentReference(ctx context.Context, gateway, reference string) (*models.Order, error) {
	if reference == "" {
		return nil, ErrNotFound
	}
	return db.getOrderWhere(ctx, `gateway = ? AND payment_reference = ?`, gateway, reference)
}
