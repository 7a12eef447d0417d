// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package validation

import "testing"

func TestSlugify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  Crème Brûlée -- 2026! ", "creme-brulee-2026"},
		{"already-a-slug", "already-a-slug"},
		{"قهوة عربية", ""},
		{"Dates & قهوة", "dates"},
	}
	for _, tt := range tests {
		got := Slugify(tt.in)
		if got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got != "" && !IsSlug(got) {
			t.Errorf("Slugify(%q) = %q is not a valid slug", tt.in, got)
		}
	}
}
