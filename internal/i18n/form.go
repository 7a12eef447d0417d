// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package i18n

import (
	"fmt"
	"net/url"
	"strings"
)

const formPrefix = "translations["

// ParseForm extracts translations[lang][field] inputs from a form body.
// Keys outside that shape are ignored. Fields not listed in allowed are
// rejected so a form cannot write arbitrary keys into the JSON column.
func ParseForm(values url.Values, allowed []string) (Translations, error) {
	allow := toSet(allowed)
	out := make(Translations)
	for key, vals := range values {
		if !strings.HasPrefix(key, formPrefix) {
			continue
		}
		lang, field, ok := splitFormKey(key)
		if !ok {
			return nil, fmt.Errorf("malformed translation key %q", key)
		}
		if allow != nil && !allow[strings.ToLower(field)] {
			return nil, fmt.Errorf("field %q is not translatable", field)
		}
		if len(vals) == 0 {
			continue
		}
		out.Set(lang, field, vals[len(vals)-1])
	}
	return out, nil
}

// splitFormKey parses "translations[ar][name]" into ("ar", "name").
func splitFormKey(key string) (lang, field string, ok bool) {
	rest := strings.TrimPrefix(key, formPrefix)
	end := strings.IndexByte(rest, ']')
	if end <= 0 {
		return "", "", false
	}
	lang = rest[:end]
	rest = rest[end+1:]
	if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") || len(rest) < 3 {
		return "", "", false
	}
	field = rest[1 : len(rest)-1]
	if strings.ContainsAny(field, "[]") || strings.ContainsAny(lang, "[]") {
		return "", "", false
	}
	return lang, field, true
}

// FormKey builds the form input name for lang and field.
func FormKey(lang, field string) string {
	return formPrefix + lang + "][" + field + "]"
}
