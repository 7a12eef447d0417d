// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("SELECT", "metrics_test"))

	RecordDBQuery("SELECT", "metrics_test", 3*time.Millisecond, nil)
	RecordDBQuery("SELECT", "metrics_test", 3*time.Millisecond, errors.New("boom"))

	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("SELECT", "metrics_test"))
	if after-before != 1 {
		t.Errorf("expected one error recorded, got %v", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	read := func() float64 {
		m := &dto.Metric{}
		if err := APIActiveRequests.Write(m); err != nil {
			t.Fatal(err)
		}
		return m.GetGauge().GetValue()
	}

	start := read()
	TrackActiveRequest(true)
	if read() != start+1 {
		t.Error("gauge should increase")
	}
	TrackActiveRequest(false)
	if read() != start {
		t.Error("gauge should return to start")
	}
}

func TestCommerceCounters(t *testing.T) {
	RecordOrderPlaced("metrics-test-gw", "USD", 12345)
	RecordPayment("metrics-test-gw", "paid")
	RecordWebhook("metrics-test-gw", "duplicate")
	RecordCartOperation("metrics-test-add", errors.New("out of stock"))
	RecordJobRun("metrics-test-job", nil)

	checks := map[string]float64{
		"orders":   testutil.ToFloat64(OrdersPlaced.WithLabelValues("metrics-test-gw")),
		"payments": testutil.ToFloat64(PaymentsTotal.WithLabelValues("metrics-test-gw", "paid")),
		"webhooks": testutil.ToFloat64(WebhooksTotal.WithLabelValues("metrics-test-gw", "duplicate")),
		"cart":     testutil.ToFloat64(CartOperations.WithLabelValues("metrics-test-add", "error")),
		"jobs":     testutil.ToFloat64(JobRuns.WithLabelValues("metrics-test-job", "ok")),
	}
	for name, v := range checks {
		if v != 1 {
			t.Errorf("%s counter = %v, want 1", name, v)
		}
	}
}
