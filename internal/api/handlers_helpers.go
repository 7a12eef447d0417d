// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/validation"
)

const (
	maxBodyBytes    = 1 << 20
	defaultPageSize = 20
	maxPageSize     = 100
)

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// lang returns the language resolved for the request.
func lang(r *http.Request) string {
	return i18n.FromContext(r.Context())
}

// principal returns the authenticated caller, or nil.
func principal(r *http.Request) *auth.Principal {
	return auth.PrincipalFromContext(r.Context())
}

// decodeJSON reads a JSON body of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", errInvalidBody)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// isForm reports whether the request carries a form body.
func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// formBinder is implemented by admin inputs that can be posted as HTML
// forms as well as JSON.
type formBinder interface {
	bindForm(f formValues) error
}

// bind decodes a JSON or form body into v.
func bind(w http.ResponseWriter, r *http.Request, v formBinder) error {
	if !isForm(r) {
		return decodeJSON(w, r, v)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return v.bindForm(formValues(r.PostForm))
}

// formValues reads typed values from a posted form.
type formValues url.Values

func (f formValues) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f formValues) str(key string) string {
	return strings.TrimSpace(url.Values(f).Get(key))
}

func (f formValues) int(key string) (int, error) {
	s := f.str(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, validation.NewFieldError(key, "number", key+" must be a whole number")
	}
	return n, nil
}

// bool treats a present checkbox as true unless its value is false or 0.
func (f formValues) bool(key string) bool {
	if !f.has(key) {
		return false
	}
	switch strings.ToLower(f.str(key)) {
	case "0", "false", "off", "no":
		return false
	}
	return true
}

// money parses a major-unit amount such as "12.50" into minor units.
func (f formValues) money(key, currency string) (int64, error) {
	s := f.str(key)
	if s == "" {
		return 0, nil
	}
	v, err := i18n.ParseMajor(s, currency)
	if err != nil {
		return 0, validation.NewFieldError(key, "money", err.Error())
	}
	return v, nil
}

// list returns the non-empty values of key, also splitting on newlines.
func (f formValues) list(key string) []string {
	var out []string
	for _, v := range url.Values(f)[key] {
		for _, part := range strings.Split(v, "\n") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (f formValues) translations(fields []string) (i18n.Translations, error) {
	tr, err := i18n.ParseForm(url.Values(f), fields)
	if err != nil {
		return nil, validation.NewFieldError("translations", "form", err.Error())
	}
	return tr, nil
}

// time parses an RFC 3339 or datetime-local input as UTC. Empty is nil.
func (f formValues) time(key string) (*time.Time, error) {
	s := f.str(key)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, validation.NewFieldError(key, "datetime", key+" must be a date and time")
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getBoolParam returns nil when the parameter is absent or not a boolean.
func getBoolParam(r *http.Request, key string) *bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return &v
}

// page reads limit and offset, clamped to sane bounds.
func page(r *http.Request) (limit, offset int) {
	limit = getIntParam(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// validateRequest validates a struct using go-playground/validator.
func validateRequest(v interface{}) error {
	if verr := validation.ValidateStruct(v); verr != nil {
		return verr
	}
	return nil
}
