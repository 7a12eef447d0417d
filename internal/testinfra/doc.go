// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package testinfra provides shared test infrastructure: migrated
// in-memory DuckDB databases, in-memory Badger stores and a capturing
// HTTP server that stands in for payment providers.
//
//	func TestCheckout(t *testing.T) {
//	    db := testinfra.NewDB(t)
//	    kvStore := testinfra.NewKV(t)
//
//	    provider := testinfra.NewProviderServer(t)
//	    provider.Handle("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
//	        testinfra.WriteJSON(w, http.StatusCreated, map[string]any{"id": "ORDER-1"})
//	    })
//	    ...
//	}
//
// DuckDB tests are serialized through a package semaphore because many
// concurrent in-memory databases can hang CGO under CI resource pressure.
package testinfra
