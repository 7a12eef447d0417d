// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Text directions.
const (
	LTR = "ltr"
	RTL = "rtl"
)

// Language is a storefront language as configured by an admin.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
	Direction  string `json:"direction"`
	IsDefault  bool   `json:"is_default"`
	Active     bool   `json:"active"`
	SortOrder  int    `json:"sort_order"`
}

// IsRTL reports whether the language is written right to left.
func (l Language) IsRTL() bool {
	return l.Direction == RTL
}

// rtlBases are base languages whose default script is right to left.
var rtlBases = map[string]bool{
	"ar": true, "he": true, "fa": true, "ur": true, "ps": true,
	"yi": true, "dv": true, "ckb": true, "sd": true, "ug": true,
}

// rtlScripts catch explicit script subtags such as az-Arab.
var rtlScripts = map[string]bool{
	"Arab": true, "Hebr": true, "Thaa": true, "Syrc": true, "Nkoo": true,
}

// DirectionFor guesses the text direction of a language code. Admins can
// still override it per language.
func DirectionFor(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		if rtlBases[strings.ToLower(code)] {
			return RTL
		}
		return LTR
	}
	if script, conf := tag.Script(); conf == language.Exact && rtlScripts[script.String()] {
		return RTL
	}
	base, _ := tag.Base()
	if rtlBases[base.String()] {
		return RTL
	}
	return LTR
}

// Canonical returns the BCP 47 form of code (for example "PT-br" -> "pt-BR").
// Unparseable input is returned lowercased.
func Canonical(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(code))
	}
	return tag.String()
}
