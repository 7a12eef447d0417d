// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package i18n

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MinorDigits returns the number of decimal places of an ISO 4217
// currency: 2 for USD, 3 for KWD, 0 for JPY. Unknown codes use 2.
func MinorDigits(code string) int {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// FormatMinor renders an amount in minor units as a plain decimal string
// with the currency's precision, as payment providers expect it:
// FormatMinor(1234, "USD") == "12.34", FormatMinor(1234, "KWD") == "1.234".
func FormatMinor(amount int64, code string) string {
	digits := MinorDigits(code)
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if digits == 0 {
		return sign + strconv.FormatInt(amount, 10)
	}
	pow := int64(math.Pow10(digits))
	return fmt.Sprintf("%s%d.%0*d", sign, amount/pow, digits, amount%pow)
}

// ParseMajor converts a provider decimal string such as "12.5" back into
// minor units. Only ASCII digits with at most one leading "-" and one "."
// are accepted. More decimals than the currency allows is an error.
func ParseMajor(s, code string) (int64, error) {
	digits := MinorDigits(code)
	raw := strings.TrimSpace(s)
	neg := strings.HasPrefix(raw, "-")
	whole, frac, _ := strings.Cut(strings.TrimPrefix(raw, "-"), ".")
	if (whole == "" && frac == "") || !asciiDigits(whole) || !asciiDigits(frac) {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > digits {
		if strings.TrimRight(frac[digits:], "0") != "" {
			return 0, fmt.Errorf("amount %q has more than %d decimals", raw, digits)
		}
		frac = frac[:digits]
	}
	frac += strings.Repeat("0", digits-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	var f int64
	if frac != "" {
		if f, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
		}
	}
	pow := int64(math.Pow10(digits))
	if w > (math.MaxInt64-f)/pow {
		return 0, fmt.Errorf("amount %q is out of range", raw)
	}
	v := w*pow + f
	if neg {
		v = -v
	}
	return v, nil
}

func asciiDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Display formats an amount for humans in the given language, for example
// "US$ 12.34" or "KWD 1.234" depending on locale data.
func Display(lang string, amount int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return FormatMinor(amount, code) + " " + code
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	major := float64(amount) / math.Pow10(MinorDigits(code))
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(major)))
}
