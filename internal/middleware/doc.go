// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

/*
Package middleware provides the infrastructure HTTP middleware of the API.

Every middleware has the chi signature func(http.Handler) http.Handler:

  - RequestID: honours or generates X-Request-ID and seeds the logging context
  - PrometheusMetrics: request counts and latency labelled by chi route pattern
  - Compression: gzip for compressible responses, skipped for websockets
  - PerformanceMonitor: a sliding window of latencies for the admin dashboard

The API router installs them in this order:

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(audit.Middleware)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)
	r.Use(middleware.Compression)

Route patterns rather than raw paths label metrics, so /products/{slug}
stays one series no matter how many products exist.
*/
package middleware
