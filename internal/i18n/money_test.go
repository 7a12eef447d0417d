// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorDigits(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 2, MinorDigits("USD"))
	assert.Equal(t, 3, MinorDigits("KWD"))
	assert.Equal(t, 3, MinorDigits("BHD"))
	assert.Equal(t, 0, MinorDigits("JPY"))
	assert.Equal(t, 2, MinorDigits("???"))
}

func TestFormatMinor(t *testing.T) {
	t.Parallel()
	cases := []struct {
		amount int64
		code   string
		want   string
	}{
		{1234, "USD", "12.34"},
		{5, "USD", "0.05"},
		{1234, "KWD", "1.234"},
		{1234, "JPY", "1234"},
		{-250, "EUR", "-2.50"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatMinor(c.amount, c.code))
	}
}

func TestParseMajor(t *testing.T) {
	t.Parallel()
	v, err := ParseMajor("12.5", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), v)

	v, err = ParseMajor("1.234", "KWD")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), v)

	v, err = ParseMajor("10.000", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	_, err = ParseMajor("1.234", "USD")
	assert.Error(t, err)
	_, err = ParseMajor("abc", "USD")
	assert.Error(t, err)

	v, err = ParseMajor("-3.5", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(-350), v)
	v, err = ParseMajor(".75", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(75), v)

	for _, bad := range []string{"", "-", ".", "1.-5", "1.+5", "--5", "+5", "-+5", "1.5.0", "1,50", "1 000", "١٢", "99999999999999999999"} {
		_, err := ParseMajor(bad, "USD")
		assert.Error(t, err, "ParseMajor(%q)", bad)
	}

	for _, amount := range []int64{0, 1, 99, 100, 123456} {
		back, err := ParseMajor(FormatMinor(amount, "KWD"), "KWD")
		require.NoError(t, err)
		assert.Equal(t, amount, back)
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()
	assert.Contains(t, Display("en", 1234, "USD"), "12.34")
	assert.NotEmpty(t, Display("ar", 1234, "KWD"))
	assert.Equal(t, "12.34 ???", Display("en", 1234, "???"))
}
