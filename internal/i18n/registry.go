// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package i18n

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// LanguageSource loads the configured languages.
type LanguageSource interface {
	ListLanguages(ctx context.Context, activeOnly bool) ([]Language, error)
}

// Registry holds the active languages and the default language. It is
// safe for concurrent use and reloaded after admin changes.
type Registry struct {
	mu        sync.RWMutex
	languages []Language
	byCode    map[string]Language
	def       string
	matcher   language.Matcher
	codes     []string // matcher index -> code
}

// NewRegistry returns a registry containing only the fallback default
// language until Reload is called.
func NewRegistry(defaultCode string) *Registry {
	r := &Registry{}
	r.set([]Language{{
		Code:      Canonical(defaultCode),
		Name:      Canonical(defaultCode),
		Direction: DirectionFor(defaultCode),
		IsDefault: true,
		Active:    true,
	}})
	return r
}

// Reload replaces the language set with the active languages from src.
// An empty result keeps the current set.
func (r *Registry) Reload(ctx context.Context, src LanguageSource) error {
	langs, err := src.ListLanguages(ctx, true)
	if err != nil {
		return fmt.Errorf("load languages: %w", err)
	}
	if len(langs) == 0 {
		return nil
	}
	r.set(langs)
	return nil
}

func (r *Registry) set(langs []Language) {
	sorted := make([]Language, len(langs))
	copy(sorted, langs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsDefault != sorted[j].IsDefault {
			return sorted[i].IsDefault
		}
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].Code < sorted[j].Code
	})

	byCode := make(map[string]Language, len(sorted))
	tags := make([]language.Tag, 0, len(sorted))
	codes := make([]string, 0, len(sorted))
	for i := range sorted {
		if sorted[i].Direction == "" {
			sorted[i].Direction = DirectionFor(sorted[i].Code)
		}
		l := sorted[i]
		byCode[strings.ToLower(l.Code)] = l
		tag, err := language.Parse(l.Code)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		codes = append(codes, l.Code)
	}

	// The first entry is the default: sort placed it there, or the first
	// language wins when none is flagged.
	def := sorted[0].Code

	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages = sorted
	r.byCode = byCode
	r.def = def
	r.codes = codes
	r.matcher = language.NewMatcher(tags)
}

// Default returns the default language code.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Languages returns the active languages, default first.
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Language, len(r.languages))
	copy(out, r.languages)
	return out
}

// Codes returns the active language codes, default first.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.languages))
	for i, l := range r.languages {
		out[i] = l.Code
	}
	return out
}

// Lookup returns the language for code, case-insensitively.
func (r *Registry) Lookup(code string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byCode[strings.ToLower(strings.TrimSpace(code))]
	return l, ok
}

// IsSupported reports whether code is an active language.
func (r *Registry) IsSupported(code string) bool {
	_, ok := r.Lookup(code)
	return ok
}

// Direction returns ltr or rtl for code, using the default language when
// code is unknown.
func (r *Registry) Direction(code string) string {
	if l, ok := r.Lookup(code); ok {
		return l.Direction
	}
	if l, ok := r.Lookup(r.Default()); ok {
		return l.Direction
	}
	return LTR
}

// Match picks the best active language for the given preferences, or the
// default when nothing matches.
func (r *Registry) Match(prefs ...language.Tag) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(prefs) == 0 || r.matcher == nil {
		return r.def
	}
	_, idx, conf := r.matcher.Match(prefs...)
	if conf == language.No || idx < 0 || idx >= len(r.codes) {
		return r.def
	}
	return r.codes[idx]
}
