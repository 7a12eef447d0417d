// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/souq/internal/models"
)

func TestRecordPaymentEvent_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inserted, err := db.RecordPaymentEvent(ctx, "stripe", "evt_1", "checkout.session.completed", "o1")
	if err != nil || !inserted {
		t.Fatalf("first RecordPaymentEvent() = %v, %v; want true", inserted, err)
	}
	inserted, err = db.RecordPaymentEvent(ctx, "stripe", "evt_1", "checkout.session.completed", "o1")
	if err != nil || inserted {
		t.Errorf("duplicate RecordPaymentEvent() = %v, %v; want false", inserted, err)
	}
	// Same event ID from another gateway is a different event.
	inserted, err = db.RecordPaymentEvent(ctx, "paypal", "evt_1", "PAYMENT.CAPTURE.COMPLETED", "o1")
	if err != nil || !inserted {
		t.Errorf("other gateway RecordPaymentEvent() = %v, %v; want true", inserted, err)
	}

	if err := db.ForgetPaymentEvent(ctx, "stripe", "evt_1"); err != nil {
		t.Fatalf("ForgetPaymentEvent() error = %v", err)
	}
	inserted, err = db.RecordPaymentEvent(ctx, "stripe", "evt_1", "checkout.session.completed", "o1")
	if err != nil || !inserted {
		t.Errorf("RecordPaymentEvent() after forget = %v, %v; want true", inserted, err)
	}
}

func TestPaymentTransactions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, status := range []models.PaymentStatus{models.PaymentPending, models.PaymentPaid} {
		tx := &models.PaymentTransaction{
			OrderID: "o1", Gateway: "tap", ExternalID: "chg_1", Status: status, Amount: 12500, Currency: "KWD",
		}
		if err := db.RecordPaymentTransaction(ctx, tx); err != nil {
			t.Fatalf("RecordPaymentTransaction() error = %v", err)
		}
	}
	txs, err := db.ListPaymentTransactions(ctx, "o1")
	if err != nil {
		t.Fatalf("ListPaymentTransactions() error = %v", err)
	}
	if len(txs) != 2 || txs[1].Status != models.PaymentPaid {
		t.Errorf("transactions = %+v", txs)
	}
}

func TestGatewaySettings_Save(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	g, err := db.GetGatewaySetting(ctx, "cod")
	if err != nil {
		t.Fatalf("GetGatewaySetting() error = %v", err)
	}
	g.Enabled = false
	g.SortOrder = 0
	g.Translations.Set("en", "instructions", "Pay the courier")
	if err := db.SaveGatewaySetting(ctx, g); err != nil {
		t.Fatalf("SaveGatewaySetting() error = %v", err)
	}

	got, err := db.GetGatewaySetting(ctx, "cod")
	if err != nil {
		t.Fatalf("GetGatewaySetting() error = %v", err)
	}
	if got.Enabled || got.Translations.Get("en", "instructions", "") != "Pay the courier" {
		t.Errorf("saved gateway = %+v", got)
	}
	if got.Translations.Get("ar", "title", "") == "" {
		t.Error("existing translations lost on save")
	}

	all, _ := db.ListGatewaySettings(ctx)
	if all[0].Slug != "cod" {
		t.Errorf("first gateway = %s, want cod after sort change", all[0].Slug)
	}

	if _, err := db.GetGatewaySetting(ctx, "bitcoin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown gateway error = %v, want ErrNotFound", err)
	}
}
