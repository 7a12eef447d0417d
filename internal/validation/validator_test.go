// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package validation

import (
	"strings"
	"testing"
)

type sample struct {
	Slug     string `json:"slug" validate:"omitempty,slug,max=20"`
	SKU      string `json:"sku" validate:"required,sku"`
	Lang     string `json:"lang" validate:"required,langcode"`
	Currency string `json:"currency" validate:"omitempty,iso4217"`
	Price    int64  `json:"price" validate:"gte=0"`
	Email    string `json:"email" validate:"omitempty,email"`
	Status   string `json:"status" validate:"omitempty,oneof=draft published"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        sample
		wantField string
		wantMsg   string
	}{
		{"valid", sample{Slug: "red-shoes", SKU: "SH-001", Lang: "ar", Currency: "KWD"}, "", ""},
		{"bad slug", sample{Slug: "Red Shoes", SKU: "A1", Lang: "en"}, "slug", "lowercase"},
		{"long slug", sample{Slug: strings.Repeat("a", 21), SKU: "A1", Lang: "en"}, "slug", "at most 20 characters"},
		{"missing sku", sample{Lang: "en"}, "sku", "is required"},
		{"bad lang", sample{SKU: "A1", Lang: "english please"}, "lang", "language code"},
		{"bad currency", sample{SKU: "A1", Lang: "en", Currency: "DOLLARS"}, "currency", "ISO 4217"},
		{"negative price", sample{SKU: "A1", Lang: "en", Price: -1}, "price", "greater than or equal to 0"},
		{"bad email", sample{SKU: "A1", Lang: "en", Email: "nope"}, "email", "valid email"},
		{"bad status", sample{SKU: "A1", Lang: "en", Status: "archived"}, "status", "one of: draft published"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verr := ValidateStruct(&tt.in)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			f := verr.Fields()[0]
			if f.Field != tt.wantField {
				t.Errorf("field = %q, want %q", f.Field, tt.wantField)
			}
			if !strings.Contains(f.Message, tt.wantMsg) {
				t.Errorf("message %q does not contain %q", f.Message, tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&sample{Lang: "??", Price: -5})
	if verr == nil {
		t.Fatal("expected errors")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %s", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].(map[string]string)
	if !ok {
		t.Fatalf("details.fields has type %T", apiErr.Details["fields"])
	}
	for _, f := range []string{"sku", "lang", "price"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("missing field %s in %v", f, fields)
		}
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	if !IsSlug("summer-sale-2026") || IsSlug("-bad") || IsSlug("bad--slug") {
		t.Error("IsSlug misclassified input")
	}
	if !IsLanguageCode("pt-BR") || IsLanguageCode("") {
		t.Error("IsLanguageCode misclassified input")
	}
	if NewFieldError("translations", "required", "name is required").Error() != "name is required" {
		t.Error("NewFieldError message mismatch")
	}
}
