// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
)

// SettingsStore reads the admin-editable gateway presentation.
type SettingsStore interface {
	ListGatewaySettings(ctx context.Context) ([]models.GatewaySetting, error)
	GetGatewaySetting(ctx context.Context, slug string) (*models.GatewaySetting, error)
}

// Option is an enabled gateway as shown at checkout.
type Option struct {
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Instructions string `json:"instructions,omitempty"`
	Offline      bool   `json:"offline"`
	Fee          int64  `json:"fee,omitempty"`
}

// Registry holds the configured gateways.
type Registry struct {
	settings SettingsStore

	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry creates an empty registry.
func NewRegistry(settings SettingsStore) *Registry {
	return &Registry{settings: settings, gateways: make(map[string]Gateway)}
}

// NewRegistryFromConfig registers every gateway enabled in configuration.
func NewRegistryFromConfig(cfg *config.PaymentsConfig, settings SettingsStore) *Registry {
	r := NewRegistry(settings)
	bs := DefaultBreakerSettings()

	if cfg.PayPal.Enabled {
		r.Register(NewPayPal(cfg.PayPal, cfg.Timeout, bs))
	}
	if cfg.Stripe.Enabled {
		r.Register(NewStripe(cfg.Stripe, cfg.Timeout, bs))
	}
	if cfg.Tap.Enabled {
		r.Register(NewTap(cfg.Tap, cfg.Timeout, bs))
	}
	if cfg.BankTransfer.Enabled {
		r.Register(NewBankTransfer(cfg.BankTransfer))
	}
	if cfg.COD.Enabled {
		r.Register(NewCOD(cfg.COD))
	}

	logging.Info().Strs("gateways", r.Configured()).Msg("Payment gateways configured")
	return r
}

// Register adds or replaces a gateway.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Slug()] = g
}

// Configured returns the registered slugs in display order.
func (r *Registry) Configured() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.gateways))
	for _, s := range Slugs {
		if _, ok := r.gateways[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Lookup returns a configured gateway regardless of the admin flag.
// Webhooks use it so late notifications still land after a gateway is
// switched off.
func (r *Registry) Lookup(slug string) (Gateway, error) {
	if !IsKnown(slug) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, slug)
	}
	r.mu.RLock()
	g, ok := r.gateways[slug]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", ErrGatewayDisabled, slug)
	}
	return g, nil
}

// Get returns a gateway that is configured and enabled by an admin.
func (r *Registry) Get(ctx context.Context, slug string) (Gateway, error) {
	g, err := r.Lookup(slug)
	if err != nil {
		return nil, err
	}
	if r.settings == nil {
		return g, nil
	}
	setting, err := r.settings.GetGatewaySetting(ctx, slug)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return g, nil
	case err != nil:
		return nil, fmt.Errorf("load gateway setting: %w", err)
	case !setting.Enabled:
		return nil, fmt.Errorf("%w: %s is switched off", ErrGatewayDisabled, slug)
	}
	return g, nil
}

// Fee returns the fee a gateway adds to an order, or zero.
func (r *Registry) Fee(slug string) int64 {
	r.mu.RLock()
	g, ok := r.gateways[slug]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	if fc, ok := g.(FeeCharger); ok {
		return fc.Fee()
	}
	return 0
}

// Enabled lists the gateways a customer may choose, with titles and
// instructions in lang (falling back to def, then to the slug).
func (r *Registry) Enabled(ctx context.Context, lang, def string) ([]Option, error) {
	stored := map[string]models.GatewaySetting{}
	if r.settings != nil {
		list, err := r.settings.ListGatewaySettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("list gateway settings: %w", err)
		}
		for _, s := range list {
			stored[s.Slug] = s
		}
	}

	type ordered struct {
		Option
		sort int
	}
	var opts []ordered
	r.mu.RLock()
	for slug, g := range r.gateways {
		opt := ordered{Option: Option{Slug: slug, Title: slug, Offline: g.Offline()}, sort: len(Slugs)}
		if s, ok := stored[slug]; ok {
			if !s.Enabled {
				continue
			}
			opt.sort = s.SortOrder
			if title := s.Translations.Get(lang, "title", def); title != "" {
				opt.Title = title
			}
			opt.Instructions = s.Translations.Get(lang, "instructions", def)
		}
		if fc, ok := g.(FeeCharger); ok {
			opt.Fee = fc.Fee()
		}
		opts = append(opts, opt)
	}
	r.mu.RUnlock()

	sort.Slice(opts, func(i, j int) bool {
		if opts[i].sort != opts[j].sort {
			return opts[i].sort < opts[j].sort
		}
		return opts[i].Slug < opts[j].Slug
	})
	out := make([]Option, len(opts))
	for i, o := range opts {
		out[i] = o.Option
	}
	return out, nil
}
