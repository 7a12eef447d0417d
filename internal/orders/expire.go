// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package orders

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/payment"
)

const expireBatch = 100

// offlineGateways await manual payment and never expire.
var offlineGateways = []string{payment.SlugBankTransfer, payment.SlugCOD}

// ExpirePending cancels pending orders of online gateways that were not
// paid within olderThan, returning their stock. Zero uses the configured
// pending order TTL. It returns the number of cancelled orders.
func (s *Service) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = s.cfg.PendingOrderTTL
	}
	cutoff := s.now().Add(-olderThan)

	expired := 0
	for {
		stale, err := s.store.ListStalePendingOrders(ctx, cutoff, offlineGateways, expireBatch)
		if err != nil {
			return expired, err
		}
		progressed := 0
		for i := range stale {
			o := &stale[i]
			updated, err := s.store.TransitionOrder(ctx, models.OrderTransition{
				OrderID:     o.ID,
				From:        models.OrderPending,
				To:          models.OrderCancelled,
				FromPayment: o.PaymentStatus,
				Restock:     true,
			})
			if errors.Is(err, database.ErrConflict) || errors.Is(err, database.ErrNotFound) {
				// Paid or cancelled meanwhile.
				continue
			}
			if err != nil {
				return expired, err
			}
			progressed++
			expired++
			logging.Ctx(ctx).Info().Str("order", o.Number).Str("gateway", o.Gateway).
				Time("created_at", o.CreatedAt).Msg("Expired unpaid order")
			s.statusChanged(ctx, updated, models.OrderPending)
		}
		if len(stale) < expireBatch || progressed == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return expired, err
		}
	}
	return expired, nil
}
