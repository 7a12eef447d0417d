// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestPerformanceMonitor_Window(t *testing.T) {
	pm := NewPerformanceMonitor(3, 0)
	for i := int64(1); i <= 5; i++ {
		pm.RecordRequest(&RequestMetrics{Route: "/a", Method: "GET", DurationMS: i, StatusCode: 200})
	}
	recent := pm.GetRecentMetrics(10)
	if len(recent) != 3 || recent[0].DurationMS != 3 || recent[2].DurationMS != 5 {
		t.Errorf("window = %+v", recent)
	}
	if got := pm.GetRecentMetrics(1); len(got) != 1 || got[0].DurationMS != 5 {
		t.Errorf("GetRecentMetrics(1) = %+v", got)
	}
}

func TestPerformanceMonitor_GetStats(t *testing.T) {
	pm := NewPerformanceMonitor(100, 0)
	for i := int64(1); i <= 10; i++ {
		pm.RecordRequest(&RequestMetrics{Route: "/api/v1/products", Method: "GET", DurationMS: i * 10, StatusCode: 200})
	}
	pm.RecordRequest(&RequestMetrics{Route: "/api/v1/checkout", Method: "POST", DurationMS: 300, StatusCode: 502})

	stats := pm.GetStats()
	if len(stats) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	p := stats[0]
	if p.Endpoint != "GET /api/v1/products" || p.RequestCount != 10 {
		t.Errorf("first = %+v", p)
	}
	if p.AvgDuration != 55 || p.P50Duration != 50 || p.MaxDuration != 100 || p.P99Duration != 90 {
		t.Errorf("durations = %+v", p)
	}
	if stats[1].ErrorCount != 1 {
		t.Errorf("checkout errors = %d", stats[1].ErrorCount)
	}
}

func TestPerformanceMonitor_Middleware(t *testing.T) {
	pm := NewPerformanceMonitor(10, time.Nanosecond)
	r := chi.NewRouter()
	r.Use(pm.Middleware)
	r.Get("/api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/o1", nil))

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatal("request not recorded")
	}
	if recent[0].Route != "/api/v1/orders/{id}" || recent[0].StatusCode != http.StatusNotFound {
		t.Errorf("recorded = %+v", recent[0])
	}
}

func TestPercentile(t *testing.T) {
	if percentile(nil, 0.5) != 0 {
		t.Error("empty slice")
	}
	if got := percentile([]int64{1, 2, 3, 4}, 0.5); got != 2 {
		t.Errorf("p50 = %d", got)
	}
}
