// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package orders

import "github.com/tomtom215/souq/internal/cart"

// Pricing holds the store-wide pricing rules. Amounts are minor units.
type Pricing struct {
	TaxRateBasisPoints    int64 // 500 = 5%
	ShippingFlat          int64
	FreeShippingThreshold int64 // 0 disables free shipping
}

// Totals is the breakdown of an order total.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Fee      int64 `json:"fee"`
	Total    int64 `json:"total"`
}

// Compute prices a subtotal. Tax is charged on the subtotal only and
// rounded half up; fee is the payment gateway's surcharge.
func (p Pricing) Compute(subtotal, fee int64) Totals {
	t := Totals{Subtotal: subtotal, Fee: fee}
	if subtotal > 0 {
		t.Shipping = p.ShippingFlat
		if p.FreeShippingThreshold > 0 && subtotal >= p.FreeShippingThreshold {
			t.Shipping = 0
		}
	}
	if p.TaxRateBasisPoints > 0 {
		t.Tax = (subtotal*p.TaxRateBasisPoints + 5000) / 10000
	}
	t.Total = t.Subtotal + t.Shipping + t.Tax + t.Fee
	return t
}

// Totals prices cart lines for a gateway.
func (s *Service) Totals(lines []cart.Line, gateway string) Totals {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.LineTotal
	}
	var fee int64
	if s.gateways != nil && gateway != "" {
		fee = s.gateways.Fee(gateway)
	}
	return s.cfg.Pricing.Compute(subtotal, fee)
}
