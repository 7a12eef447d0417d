// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// minJWTSecretLength matches HS256 key size.
const minJWTSecretLength = 32

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateStore,
		c.validatePayments,
		c.validateNewsletter,
		c.validateJobs,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.Server.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BASE_URL must use http or https, got %q", u.Scheme)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	if !c.Server.IsDevelopment() && len(s.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	switch s.SessionStore {
	case "badger", "memory":
	default:
		return fmt.Errorf("SESSION_STORE must be badger or memory, got %q", s.SessionStore)
	}
	if s.SessionTimeout <= 0 {
		return errors.New("SESSION_TIMEOUT must be positive")
	}
	if s.MinPasswordLen < 8 {
		return errors.New("MIN_PASSWORD_LENGTH must be at least 8")
	}
	if (s.AdminEmail == "") != (s.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	for _, origin := range s.CORSOrigins {
		if origin == "*" && s.CookieSecure && !c.Server.IsDevelopment() {
			return errors.New("CORS_ORIGINS=* is not allowed with credentialed cookies in production")
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	st := c.Store
	if _, err := currency.ParseISO(st.Currency); err != nil {
		return fmt.Errorf("STORE_CURRENCY %q is not an ISO 4217 code: %w", st.Currency, err)
	}
	if _, err := language.Parse(st.DefaultLanguage); err != nil {
		return fmt.Errorf("STORE_DEFAULT_LANGUAGE %q is not a BCP 47 tag: %w", st.DefaultLanguage, err)
	}
	if st.TaxRateBasisPoints < 0 || st.TaxRateBasisPoints > 10000 {
		return fmt.Errorf("STORE_TAX_RATE_BPS must be between 0 and 10000, got %d", st.TaxRateBasisPoints)
	}
	if st.ShippingFlat < 0 || st.FreeShippingThreshold < 0 {
		return errors.New("shipping amounts must not be negative")
	}
	if st.PendingOrderTTL <= 0 {
		return errors.New("STORE_PENDING_ORDER_TTL must be positive")
	}
	return nil
}

func (c *Config) validatePayments() error {
	p := c.Payments
	if p.PayPal.Enabled && (p.PayPal.ClientID == "" || p.PayPal.ClientSecret == "") {
		return errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required when PayPal is enabled")
	}
	if p.Stripe.Enabled && p.Stripe.SecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required when Stripe is enabled")
	}
	if p.Stripe.Enabled && p.Stripe.WebhookSecret == "" && !c.Server.IsDevelopment() {
		return errors.New("STRIPE_WEBHOOK_SECRET is required when Stripe is enabled")
	}
	if p.Tap.Enabled && p.Tap.SecretKey == "" {
		return errors.New("TAP_SECRET_KEY is required when TAP is enabled")
	}
	if p.BankTransfer.Enabled && p.BankTransfer.IBAN == "" && !c.Server.IsDevelopment() {
		return errors.New("BANK_TRANSFER_IBAN is required when bank transfer is enabled")
	}
	if p.COD.Fee < 0 {
		return errors.New("COD_FEE must not be negative")
	}
	return nil
}

func (c *Config) validateNewsletter() error {
	n := c.Newsletter
	if !n.Enabled {
		return nil
	}
	if n.SMTP.Host == "" || n.SMTP.From == "" {
		return errors.New("SMTP_HOST and SMTP_FROM are required when the newsletter is enabled")
	}
	if !strings.Contains(n.SMTP.From, "@") {
		return fmt.Errorf("SMTP_FROM %q is not an email address", n.SMTP.From)
	}
	if n.SendRatePerSecond <= 0 {
		return errors.New("NEWSLETTER_SEND_RATE must be positive")
	}
	return nil
}

func (c *Config) validateJobs() error {
	for name, spec := range map[string]string{
		"JOBS_EXPIRE_ORDERS_SPEC":   c.Jobs.ExpireOrdersSpec,
		"JOBS_SESSION_CLEANUP_SPEC": c.Jobs.SessionCleanupSpec,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s %q is invalid: %w", name, spec, err)
		}
	}
	return nil
}
