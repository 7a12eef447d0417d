// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tomtom215/souq/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewWithConn(conn), mock
}

func TestMock_GetProductQueryError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM products WHERE id = \?`).
		WithArgs("p1").
		WillReturnError(errors.New("io error"))

	_, err := db.GetProduct(context.Background(), "p1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProduct() error = %v, want wrapped driver error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_CreateOrderRollsBackOnStockFailure(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	o := &models.Order{Items: []models.OrderItem{{ProductID: "p1", SKU: "SKU", Quantity: 2}}}
	err := db.CreateOrder(context.Background(), o)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("CreateOrder() error = %v, want ErrInsufficientStock", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMock_CommitConflictMapsToErrConflict(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO settings`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("TransactionContext Error: Failed to commit: write-write conflict on key"))

	err := db.SaveSettings(context.Background(), map[string]string{"k": "v"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("SaveSettings() error = %v, want ErrConflict", err)
	}
}

func TestMock_RecordPaymentEventDuplicateFromDriver(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO payment_events`).
		WillReturnError(errors.New(`Constraint Error: Duplicate key "gateway: stripe, event_id: evt_1" violates primary key constraint`))

	inserted, err := db.RecordPaymentEvent(context.Background(), "stripe", "evt_1", "x", "")
	if err != nil || inserted {
		t.Errorf("RecordPaymentEvent() = %v, %v; want false, nil", inserted, err)
	}
}

func TestMock_TransitionOrderConflict(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE id = \?`).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := db.TransitionOrder(context.Background(), models.OrderTransition{
		OrderID: "o1", From: models.OrderPending, To: models.OrderProcessing,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("TransitionOrder() error = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMapConflict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg  string
		want error
	}{
		{"Transaction conflict: cannot update a table that has been altered", ErrConflict},
		{"TransactionContext Error: Conflict on tuple deletion", ErrConflict},
		{`Duplicate key "email: a@b.c" violates unique constraint`, ErrDuplicate},
		{"syntax error", nil},
	}
	for _, tt := range tests {
		got := mapConflict(errors.New(tt.msg))
		if tt.want == nil {
			if errors.Is(got, ErrConflict) || errors.Is(got, ErrDuplicate) {
				t.Errorf("mapConflict(%q) = %v, want unmapped", tt.msg, got)
			}
			continue
		}
		if !errors.Is(got, tt.want) {
			t.Errorf("mapConflict(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
