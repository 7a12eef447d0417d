// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/orders"
	"github.com/tomtom215/souq/internal/payment"
	"github.com/tomtom215/souq/internal/validation"
)

type langSource []i18n.Language

func (s langSource) ListLanguages(context.Context, bool) ([]i18n.Language, error) {
	return s, nil
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (%s)", err, w.Body.String())
	}
	return response
}

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-1"))

	NewResponseWriter(w, r).Success(map[string]string{"message": "hello"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}

	response := decodeEnvelope(t, w)
	if !response.Success {
		t.Error("Expected Success to be true")
	}
	if response.Error != nil {
		t.Error("Expected Error to be nil")
	}
	if response.Meta == nil {
		t.Fatal("Expected Meta to not be nil")
	}
	if response.Meta.Timestamp.IsZero() {
		t.Error("Expected Timestamp to be set")
	}
	if response.Meta.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", response.Meta.RequestID)
	}
}

func TestResponseWriter_LanguageMeta(t *testing.T) {
	t.Parallel()

	registry := i18n.NewRegistry("en")
	if err := registry.Reload(context.Background(), langSource{
		{Code: "en", Name: "English", NativeName: "English", IsDefault: true, Active: true},
		{Code: "ar", Name: "Arabic", NativeName: "العربية", Active: true, SortOrder: 1},
	}); err != nil {
		t.Fatal(err)
	}
	resolver := i18n.NewResolver(registry, false)

	tests := []struct {
		query     string
		language  string
		direction string
	}{
		{"", "en", i18n.LTR},
		{"?lang=ar", "ar", i18n.RTL},
	}
	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/test"+tt.query, nil)
			resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteSuccess(w, r, nil)
			})).ServeHTTP(w, r)

			response := decodeEnvelope(t, w)
			if response.Meta.Language != tt.language {
				t.Errorf("Language = %q, want %q", response.Meta.Language, tt.language)
			}
			if response.Meta.Direction != tt.direction {
				t.Errorf("Direction = %q, want %q", response.Meta.Direction, tt.direction)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                        string
		total, count, limit, offset int
		hasMore                     bool
	}{
		{"first page", 45, 20, 20, 0, true},
		{"last page", 45, 5, 20, 40, false},
		{"empty", 0, 0, 20, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.total, tt.count, tt.limit, tt.offset)
			if p.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", p.HasMore, tt.hasMore)
			}
			if p.Total != int64(tt.total) || p.Count != tt.count {
				t.Errorf("Total/Count = %d/%d, want %d/%d", p.Total, p.Count, tt.total, tt.count)
			}
		})
	}
}

func TestResponseWriter_SuccessWithPagination(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	NewResponseWriter(w, r).SuccessWithPagination([]string{"a", "b"}, NewPagination(100, 2, 10, 0))

	response := decodeEnvelope(t, w)
	if response.Meta == nil || response.Meta.Pagination == nil {
		t.Fatal("Expected pagination metadata")
	}
	if response.Meta.Pagination.Total != 100 {
		t.Errorf("Expected Total 100, got %d", response.Meta.Pagination.Total)
	}
	if !response.Meta.Pagination.HasMore {
		t.Error("Expected HasMore to be true")
	}
}

func TestResponseWriter_Created(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/test", nil)
	NewResponseWriter(w, r).Created(map[string]string{"id": "p1"})

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if !decodeEnvelope(t, w).Success {
		t.Error("Expected Success to be true")
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-9"))

	WriteError(w, r, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions")

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
	response := decodeEnvelope(t, w)
	if response.Success {
		t.Error("Expected Success to be false")
	}
	if response.Error == nil {
		t.Fatal("Expected Error to be set")
	}
	if response.Error.Code != ErrCodeForbidden {
		t.Errorf("Code = %q, want %q", response.Error.Code, ErrCodeForbidden)
	}
	if response.Error.RequestID != "req-9" {
		t.Errorf("RequestID = %q, want req-9", response.Error.RequestID)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", validation.NewFieldError("sku", "required", "sku is required"), http.StatusBadRequest, ErrCodeValidationFailed},
		{"provider", &payment.ProviderError{Gateway: "stripe", Operation: "create", StatusCode: 500}, http.StatusBadGateway, ErrCodeExternalService},
		{"body too large", errBodyTooLarge, http.StatusRequestEntityTooLarge, ErrCodeBadRequest},
		{"wrapped not found", fmt.Errorf("load: %w", database.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"catalog not found", catalog.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"unknown gateway", payment.ErrUnknownGateway, http.StatusNotFound, ErrCodeNotFound},
		{"cart stock", cart.ErrInsufficientStock, http.StatusConflict, ErrCodeInsufficientStock},
		{"order stock", orders.ErrInsufficientStock, http.StatusConflict, ErrCodeInsufficientStock},
		{"transition", orders.ErrInvalidTransition, http.StatusConflict, ErrCodeInvalidTransition},
		{"email taken", auth.ErrEmailTaken, http.StatusConflict, ErrCodeConflict},
		{"default language", database.ErrDefaultLanguage, http.StatusConflict, ErrCodeConflict},
		{"empty cart", orders.ErrEmptyCart, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad signature", payment.ErrInvalidSignature, http.StatusBadRequest, ErrCodeBadRequest},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"disabled", auth.ErrAccountDisabled, http.StatusForbidden, ErrCodeForbidden},
		{"locked", auth.ErrAccountLocked, http.StatusTooManyRequests, ErrCodeAccountLocked},
		{"payment unavailable", orders.ErrPaymentUnavailable, http.StatusBadGateway, ErrCodeExternalService},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusFor(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("statusFor(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
			}
		})
	}
}

func TestRespondError_HidesInternalDetails(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	respondError(w, r, errors.New("duckdb: connection string has password=secret"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	response := decodeEnvelope(t, w)
	if response.Error.Message != "An internal error occurred" {
		t.Errorf("Message = %q, internal error text leaked", response.Error.Message)
	}
}

func TestRespondError_ValidationDetails(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/test", nil)
	respondError(w, r, validation.NewFieldError("price", "gte", "price must be positive"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	response := decodeEnvelope(t, w)
	if response.Error.Code != ErrCodeValidationFailed {
		t.Errorf("Code = %q, want %q", response.Error.Code, ErrCodeValidationFailed)
	}
	if response.Error.Details == nil {
		t.Error("Expected field details")
	}
}
