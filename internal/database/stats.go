// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/souq/internal/models"
)

// DailyRevenue is one point of the revenue series.
type DailyRevenue struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
	Orders  int    `json:"orders"`
}

// DashboardStats aggregates the admin dashboard figures. Money values are
// minor units of the store currency.
type DashboardStats struct {
	OrdersByStatus    map[string]int   `json:"orders_by_status"`
	Revenue           int64            `json:"revenue"`
	PaidOrders        int              `json:"paid_orders"`
	AverageOrderValue int64            `json:"average_order_value"`
	DailyRevenue      []DailyRevenue   `json:"daily_revenue"`
	LowStock          []models.Product `json:"low_stock"`
	Subscribers       map[string]int   `json:"subscribers"`
	Customers         int              `json:"customers"`
	RecentOrders      []models.Order   `json:"recent_orders"`
	Since             time.Time        `json:"since"`
}

// GetDashboardStats computes dashboard figures for paid orders since the
// given time. Products whose tracked stock is below lowStock are listed.
func (db *DB) GetDashboardStats(ctx context.Context, since time.Time, lowStock int) (_ *DashboardStats, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "orders", time.Now(), &err)

	stats := &DashboardStats{
		OrdersByStatus: map[string]int{},
		DailyRevenue:   []DailyRevenue{},
		Since:          since,
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			closeQuietly(rows)
			return nil, fmt.Errorf("failed to scan order count: %w", err)
		}
		stats.OrdersByStatus[status] = n
	}
	closeQuietly(rows)

	// SUM and AVG widen to HUGEINT/DOUBLE in DuckDB; cast back to BIGINT.
	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*),
		CAST(COALESCE(SUM(total), 0) AS BIGINT),
		CAST(COALESCE(ROUND(AVG(total)), 0) AS BIGINT)
		FROM orders WHERE payment_status = ? AND paid_at >= ?`,
		string(models.PaymentPaid), since).Scan(&stats.PaidOrders, &stats.Revenue, &stats.AverageOrderValue)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	rows, err = db.conn.QueryContext(ctx, `SELECT strftime(date_trunc('day', paid_at), '%Y-%m-%d') AS day,
		CAST(SUM(total) AS BIGINT), COUNT(*)
		FROM orders WHERE payment_status = ? AND paid_at >= ?
		GROUP BY day ORDER BY day`, string(models.PaymentPaid), since)
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue series: %w", err)
	}
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Date, &d.Revenue, &d.Orders); err != nil {
			closeQuietly(rows)
			return nil, fmt.Errorf("failed to scan revenue point: %w", err)
		}
		stats.DailyRevenue = append(stats.DailyRevenue, d)
	}
	closeQuietly(rows)

	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, models.RoleCustomer).
		Scan(&stats.Customers); err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}

	if lowStock > 0 {
		stats.LowStock, _, err = db.ListProducts(ctx, models.ProductFilter{StockBelow: lowStock, Sort: models.SortSKU, Limit: 20})
		if err != nil {
			return nil, err
		}
	}
	if stats.Subscribers, err = db.CountSubscribersByStatus(ctx); err != nil {
		return nil, err
	}
	if stats.RecentOrders, _, err = db.ListOrders(ctx, models.OrderFilter{Limit: 10}); err != nil {
		return nil, err
	}
	return stats, nil
}
