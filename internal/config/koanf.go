// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/souq/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     30 * time.Second,
			BaseURL:     "http://localhost:8080",
			Environment: "production",
		},
		Database: DatabaseConfig{
			Path:      "/data/souq.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		KV: KVConfig{
			Path:       "/data/kv",
			GCInterval: 10 * time.Minute,
		},
		Security: SecurityConfig{
			TokenTTL:        24 * time.Hour,
			SessionTimeout:  7 * 24 * time.Hour,
			SessionStore:    "badger",
			CookieSecure:    true,
			CSRFEnabled:     true,
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
			AuthRateLimit:   10,
			CORSOrigins:     []string{},
			AuthzCacheTTL:   5 * time.Minute,
			MinPasswordLen:  8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Name:                  "Souq",
			Currency:              "USD",
			DefaultLanguage:       "en",
			TaxRateBasisPoints:    0,
			ShippingFlat:          500,
			FreeShippingThreshold: 10000,
			PendingOrderTTL:       2 * time.Hour,
			LowStockThreshold:     5,
			CartTTL:               30 * 24 * time.Hour,
			CacheTTL:              5 * time.Minute,
		},
		Payments: PaymentsConfig{
			Timeout: 20 * time.Second,
			PayPal:  PayPalConfig{Sandbox: true},
			BankTransfer: BankTransferConfig{
				Enabled: true,
			},
			COD: CODConfig{Enabled: true},
		},
		Newsletter: NewsletterConfig{
			Enabled:                 false,
			CheckInterval:           time.Minute,
			MaxConcurrentDeliveries: 2,
			ExecutionTimeout:        30 * time.Minute,
			SendRatePerSecond:       5,
			SMTP: SMTPConfig{
				Port:   587,
				UseTLS: true,
			},
		},
		Events: EventsConfig{
			NATSHost: "127.0.0.1",
			NATSPort: 4222,
		},
		Jobs: JobsConfig{
			ExpireOrdersSpec:   "@every 10m",
			SessionCleanupSpec: "@hourly",
			AuditCleanupSpec:   "@daily",
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 365,
			BufferSize:    1000,
		},
	}
}

// Load reads configuration with precedence env > file > defaults and
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings lists every environment variable Souq reads. Unlisted
// variables are ignored so unrelated process env never leaks into config.
var envMappings = map[string]string{
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"base_url":     "server.base_url",
	"environment":  "server.environment",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"kv_path":        "kv.path",
	"kv_in_memory":   "kv.in_memory",
	"kv_gc_interval": "kv.gc_interval",

	"jwt_secret":          "security.jwt_secret",
	"token_ttl":           "security.token_ttl",
	"session_timeout":     "security.session_timeout",
	"session_store":       "security.session_store",
	"cookie_secure":       "security.cookie_secure",
	"csrf_enabled":        "security.csrf_enabled",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"auth_rate_limit":     "security.auth_rate_limit",
	"cors_origins":        "security.cors_origins",
	"authz_cache_ttl":     "security.authz_cache_ttl",
	"admin_email":         "security.admin_email",
	"admin_password":      "security.admin_password",
	"min_password_length": "security.min_password_length",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"store_name":                    "store.name",
	"store_currency":                "store.currency",
	"store_default_language":        "store.default_language",
	"store_tax_rate_bps":            "store.tax_rate_bps",
	"store_shipping_flat":           "store.shipping_flat",
	"store_free_shipping_threshold": "store.free_shipping_threshold",
	"store_pending_order_ttl":       "store.pending_order_ttl",
	"store_low_stock_threshold":     "store.low_stock_threshold",
	"store_cart_ttl":                "store.cart_ttl",
	"store_cache_ttl":               "store.cache_ttl",

	"payments_timeout":        "payments.timeout",
	"paypal_enabled":          "payments.paypal.enabled",
	"paypal_client_id":        "payments.paypal.client_id",
	"paypal_client_secret":    "payments.paypal.client_secret",
	"paypal_webhook_id":       "payments.paypal.webhook_id",
	"paypal_sandbox":          "payments.paypal.sandbox",
	"paypal_base_url":         "payments.paypal.base_url",
	"stripe_enabled":          "payments.stripe.enabled",
	"stripe_secret_key":       "payments.stripe.secret_key",
	"stripe_publishable_key":  "payments.stripe.publishable_key",
	"stripe_webhook_secret":   "payments.stripe.webhook_secret",
	"stripe_base_url":         "payments.stripe.base_url",
	"tap_enabled":             "payments.tap.enabled",
	"tap_secret_key":          "payments.tap.secret_key",
	"tap_public_key":          "payments.tap.public_key",
	"tap_base_url":            "payments.tap.base_url",
	"bank_transfer_enabled":   "payments.bank_transfer.enabled",
	"bank_transfer_bank_name": "payments.bank_transfer.bank_name",
	"bank_transfer_account":   "payments.bank_transfer.account_name",
	"bank_transfer_iban":      "payments.bank_transfer.iban",
	"bank_transfer_swift":     "payments.bank_transfer.swift",
	"cod_enabled":             "payments.cod.enabled",
	"cod_fee":                 "payments.cod.fee",

	"newsletter_enabled":        "newsletter.enabled",
	"newsletter_check_interval": "newsletter.check_interval",
	"newsletter_max_concurrent": "newsletter.max_concurrent_deliveries",
	"newsletter_exec_timeout":   "newsletter.execution_timeout",
	"newsletter_send_rate":      "newsletter.send_rate_per_second",
	"smtp_host":                 "newsletter.smtp.host",
	"smtp_port":                 "newsletter.smtp.port",
	"smtp_username":             "newsletter.smtp.username",
	"smtp_password":             "newsletter.smtp.password",
	"smtp_from":                 "newsletter.smtp.from",
	"smtp_from_name":            "newsletter.smtp.from_name",
	"smtp_use_tls":              "newsletter.smtp.use_tls",

	"nats_url":      "events.nats_url",
	"nats_embedded": "events.embedded_nats",
	"nats_host":     "events.nats_host",
	"nats_port":     "events.nats_port",

	"jobs_expire_orders_spec":   "jobs.expire_orders_spec",
	"jobs_session_cleanup_spec": "jobs.session_cleanup_spec",
	"jobs_audit_cleanup_spec":   "jobs.audit_cleanup_spec",

	"audit_enabled":        "audit.enabled",
	"audit_retention_days": "audit.retention_days",
	"audit_buffer_size":    "audit.buffer_size",
	"audit_log_to_stdout":  "audit.log_to_stdout",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Examples: DUCKDB_PATH -> database.path, STRIPE_SECRET_KEY -> payments.stripe.secret_key.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
