// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthLive handles liveness probe requests. It returns 200 whenever the
// process is serving, regardless of dependencies.
//
// @Summary Liveness check
// @Description Returns 200 while the process is running.
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api/v1/health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests. The service is ready when
// the database answers and at least one language is loaded.
//
// @Summary Readiness check
// @Description Returns 200 when the database answers and a language is loaded, 503 otherwise.
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /api/v1/health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "languages": "ok"}
	ready := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unavailable"
		ready = false
	}
	if len(h.languages.Codes()) == 0 {
		checks["languages"] = "none loaded"
		ready = false
	}

	version, err := h.db.SchemaVersion(ctx)
	if err != nil {
		checks["schema"] = "unknown"
	}

	data := map[string]interface{}{
		"ready":          ready,
		"checks":         checks,
		"schema_version": version,
		"gateways":       h.payments.Configured(),
		"uptime":         time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		data["websocket_clients"] = h.hub.GetClientCount()
	}

	rw := NewResponseWriter(w, r)
	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "service not ready", data)
		return
	}
	rw.Success(data)
}
