// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package i18n implements translatable content and request language
// resolution.
//
// Translatable entities keep every language in one map shaped
// translations[lang][field], persisted as a single JSON column. Reads ask
// for a language and fall back to the store's default language:
//
//	name := p.Translations.Get("ar", "name", registry.Default())
//
// A missing value in both languages yields "" rather than an error.
package i18n

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Translations maps language code -> field name -> value.
type Translations map[string]map[string]string

// Get returns the value of field in lang, falling back to the fallback
// language when lang has no non-empty value. It returns "" when neither
// language has the field.
func (t Translations) Get(lang, field, fallback string) string {
	if v := t.lookup(lang, field); v != "" {
		return v
	}
	if fallback != "" && fallback != lang {
		return t.lookup(fallback, field)
	}
	return ""
}

// Has reports whether lang has a non-empty value for field, without fallback.
func (t Translations) Has(lang, field string) bool {
	return t.lookup(lang, field) != ""
}

func (t Translations) lookup(lang, field string) string {
	if t == nil {
		return ""
	}
	fields, ok := t[lang]
	if !ok {
		for code, f := range t {
			if strings.EqualFold(code, lang) {
				fields = f
				break
			}
		}
	}
	return strings.TrimSpace(fields[field])
}

// Set stores value for lang/field. An empty value removes the field, and a
// language left without fields is removed.
func (t Translations) Set(lang, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		if fields, ok := t[lang]; ok {
			delete(fields, field)
			if len(fields) == 0 {
				delete(t, lang)
			}
		}
		return
	}
	fields, ok := t[lang]
	if !ok {
		fields = make(map[string]string)
		t[lang] = fields
	}
	fields[field] = value
}

// Localize resolves several fields at once.
func (t Translations) Localize(lang, fallback string, fields ...string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f] = t.Get(lang, f, fallback)
	}
	return out
}

// Languages returns the language codes present, sorted.
func (t Translations) Languages() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// SearchText joins every non-empty value in lowercase, one per line, in
// language then field order. Language codes and field names are left out.
func (t Translations) SearchText() string {
	var b strings.Builder
	for _, code := range t.Languages() {
		fields := make([]string, 0, len(t[code]))
		for f := range t[code] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			v := strings.TrimSpace(t[code][f])
			if v == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(strings.ToLower(v))
		}
	}
	return b.String()
}

// Missing lists the required fields that have no value in lang.
func (t Translations) Missing(lang string, required ...string) []string {
	var missing []string
	for _, f := range required {
		if !t.Has(lang, f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Prune removes languages not in langs and fields not in fields. Nil
// filters keep everything.
func (t Translations) Prune(langs, fields []string) {
	allowLang := toSet(langs)
	allowField := toSet(fields)
	for code, values := range t {
		if allowLang != nil && !allowLang[strings.ToLower(code)] {
			delete(t, code)
			continue
		}
		for f, v := range values {
			if (allowField != nil && !allowField[strings.ToLower(f)]) || strings.TrimSpace(v) == "" {
				delete(values, f)
			}
		}
		if len(values) == 0 {
			delete(t, code)
		}
	}
}

// Merge overlays other onto t. Empty values in other delete the field.
func (t Translations) Merge(other Translations) {
	for lang, fields := range other {
		for f, v := range fields {
			t.Set(lang, f, v)
		}
	}
}

// Clone returns a deep copy.
func (t Translations) Clone() Translations {
	out := make(Translations, len(t))
	for lang, fields := range t {
		cp := make(map[string]string, len(fields))
		for f, v := range fields {
			cp[f] = v
		}
		out[lang] = cp
	}
	return out
}

// Value implements driver.Valuer; translations are stored as a JSON string.
func (t Translations) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]map[string]string(t))
	if err != nil {
		return nil, fmt.Errorf("marshal translations: %w", err)
	}
	return string(b), nil
}

// JSON returns the stored form of t. Drivers that bind parameters
// themselves receive this string rather than the map.
func (t Translations) JSON() string {
	v, err := t.Value()
	if err != nil {
		return "{}"
	}
	return v.(string)
}

// Scan implements sql.Scanner.
func (t *Translations) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Translations{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("translations: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*t = Translations{}
		return nil
	}
	m := make(map[string]map[string]string)
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("unmarshal translations: %w", err)
	}
	*t = Translations(m)
	return nil
}

// ErrMissingTranslation is returned when a required default-language field is empty.
var ErrMissingTranslation = errors.New("missing required translation")

// RequireDefault returns ErrMissingTranslation naming the first required
// field that is empty in the default language.
func (t Translations) RequireDefault(defaultLang string, required ...string) error {
	if missing := t.Missing(defaultLang, required...); len(missing) > 0 {
		return fmt.Errorf("%w: %s.%s", ErrMissingTranslation, defaultLang, missing[0])
	}
	return nil
}

func toSet(values []string) map[string]bool {
	if values == nil {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}
