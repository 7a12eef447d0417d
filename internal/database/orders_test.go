// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/souq/internal/models"
)

func newTestOrder(items ...models.OrderItem) *models.Order {
	var subtotal int64
	for _, it := range items {
		subtotal += it.LineTotal
	}
	return &models.Order{
		Email:         "buyer@example.com",
		Language:      "en",
		Currency:      "USD",
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentUnpaid,
		Gateway:       "stripe",
		Subtotal:      subtotal,
		Total:         subtotal,
		ShippingAddress: models.Address{
			Name: "Buyer", Line1: "1 Main St", City: "Kuwait City", Country: "KW",
		},
		AccessToken: "token-123",
		Items:       items,
	}
}

func lineFor(p *models.Product, qty int) models.OrderItem {
	return models.OrderItem{
		ProductID: p.ID, SKU: p.SKU, Name: p.Translations.Get("en", "name", ""),
		UnitPrice: p.Price, Quantity: qty, LineTotal: p.Price * int64(qty), Restock: p.TrackStock,
	}
}

func TestCreateOrder_ReservesStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := newTestProduct("MUG", 1200, 5)
	if err := db.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}

	o := newTestOrder(lineFor(p, 2))
	if err := db.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !strings.HasPrefix(o.Number, OrderNumberPrefix) {
		t.Errorf("order number = %q, want prefix %q", o.Number, OrderNumberPrefix)
	}

	got, err := db.GetOrderByNumber(ctx, o.Number)
	if err != nil {
		t.Fatalf("GetOrderByNumber() error = %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || !got.Items[0].Restock {
		t.Errorf("items = %+v", got.Items)
	}
	if got.ShippingAddress.City != "Kuwait City" || got.AccessToken != "token-123" {
		t.Errorf("order = %+v", got)
	}

	after, _ := db.GetProduct(ctx, p.ID)
	if after.Stock != 3 {
		t.Errorf("stock = %d, want 3", after.Stock)
	}

	second := newTestOrder(lineFor(p, 1))
	if err := db.CreateOrder(ctx, second); err != nil {
		t.Fatalf("CreateOrder(second) error = %v", err)
	}
	if second.Number == o.Number {
		t.Errorf("order numbers collide: %s", o.Number)
	}
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := newTestProduct("A", 100, 10)
	b := newTestProduct("B", 100, 1)
	for _, p := range []*models.Product{a, b} {
		if err := db.CreateProduct(ctx, p); err != nil {
			t.Fatalf("CreateProduct() error = %v", err)
		}
	}

	o := newTestOrder(lineFor(a, 3), lineFor(b, 2))
	err := db.CreateOrder(ctx, o)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("CreateOrder() error = %v, want ErrInsufficientStock", err)
	}

	got, _ := db.GetProduct(ctx, a.ID)
	if got.Stock != 10 {
		t.Errorf("stock of A = %d, want 10 after rollback", got.Stock)
	}
	_, total, err := db.ListOrders(ctx, models.OrderFilter{})
	if err != nil || total != 0 {
		t.Errorf("ListOrders() total = %d, %v; want 0", total, err)
	}
}

func TestCreateOrder_UntrackedStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := newTestProduct("DIGITAL", 900, 0)
	p.TrackStock = false
	if err := db.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	if err := db.CreateOrder(ctx, newTestOrder(lineFor(p, 4))); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	got, _ := db.GetProduct(ctx, p.ID)
	if got.Stock != 0 {
		t.Errorf("untracked stock changed to %d", got.Stock)
	}
}

func TestTransitionOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := newTestProduct("TEE", 2000, 4)
	if err := db.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	o := newTestOrder(lineFor(p, 3))
	if err := db.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	paid, err := db.TransitionOrder(ctx, models.OrderTransition{
		OrderID: o.ID, From: models.OrderPending, To: models.OrderProcessing,
		ToPayment: models.PaymentPaid, Reference: "pi_123",
	})
	if err != nil {
		t.Fatalf("TransitionOrder(paid) error = %v", err)
	}
	if paid.Status != models.OrderProcessing || paid.PaymentStatus != models.PaymentPaid || paid.PaidAt == nil {
		t.Errorf("after payment = %+v", paid)
	}
	if paid.PaymentReference != "pi_123" {
		t.Errorf("reference = %q", paid.PaymentReference)
	}

	// The same transition again no longer matches.
	_, err = db.TransitionOrder(ctx, models.OrderTransition{OrderID: o.ID, From: models.OrderPending, To: models.OrderProcessing})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("stale transition error = %v, want ErrConflict", err)
	}
	_, err = db.TransitionOrder(ctx, models.OrderTransition{OrderID: "missing", To: models.OrderCancelled})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing order error = %v, want ErrNotFound", err)
	}

	cancelled, err := db.TransitionOrder(ctx, models.OrderTransition{
		OrderID: o.ID, From: models.OrderProcessing, To: models.OrderCancelled,
		ToPayment: models.PaymentRefunded, Restock: true,
	})
	if err != nil {
		t.Fatalf("TransitionOrder(cancel) error = %v", err)
	}
	if cancelled.CancelledAt == nil {
		t.Error("cancelled_at not set")
	}
	got, _ := db.GetProduct(ctx, p.ID)
	if got.Stock != 4 {
		t.Errorf("stock after restock = %d, want 4", got.Stock)
	}
}

func TestListStalePendingOrders(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }

	p := newTestProduct("X", 100, 100)
	if err := db.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	online := newTestOrder(lineFor(p, 1))
	offline := newTestOrder(lineFor(p, 1))
	offline.Gateway = "bank_transfer"
	for _, o := range []*models.Order{online, offline} {
		if err := db.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
	}

	stale, err := db.ListStalePendingOrders(ctx, base.Add(time.Hour), []string{"bank_transfer", "cod"}, 10)
	if err != nil {
		t.Fatalf("ListStalePendingOrders() error = %v", err)
	}
	if len(stale) != 1 || stale[0].ID != online.ID {
		t.Errorf("stale = %+v, want only the online order", stale)
	}

	none, err := db.ListStalePendingOrders(ctx, base.Add(-time.Hour), nil, 10)
	if err != nil || len(none) != 0 {
		t.Errorf("ListStalePendingOrders(before creation) = %d, %v", len(none), err)
	}
}

func TestListOrders_Filters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := newTestProduct("F", 100, 100)
	if err := db.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	mine := newTestOrder(lineFor(p, 1))
	mine.UserID = "user-1"
	mine.Email = "me@example.com"
	theirs := newTestOrder(lineFor(p, 1))
	for _, o := range []*models.Order{mine, theirs} {
		if err := db.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
	}

	got, total, err := db.ListOrders(ctx, models.OrderFilter{UserID: "user-1"})
	if err != nil || total != 1 || got[0].ID != mine.ID {
		t.Errorf("ListOrders(user) = %d, %v", total, err)
	}
	got, total, err = db.ListOrders(ctx, models.OrderFilter{Search: "ME@EXAMPLE"})
	if err != nil || total != 1 || got[0].ID != mine.ID {
		t.Errorf("ListOrders(search) = %d, %v", total, err)
	}
	_, total, err = db.ListOrders(ctx, models.OrderFilter{Search: theirs.Number})
	if err != nil || total != 1 {
		t.Errorf("ListOrders(number) = %d, %v", total, err)
	}
}
