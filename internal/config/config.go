// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package config loads Souq configuration from struct defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	KV         KVConfig         `koanf:"kv"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Payments   PaymentsConfig   `koanf:"payments"`
	Newsletter NewsletterConfig `koanf:"newsletter"`
	Events     EventsConfig     `koanf:"events"`
	Jobs       JobsConfig       `koanf:"jobs"`
	Audit      AuditConfig      `koanf:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	BaseURL     string        `koanf:"base_url"` // public URL used for payment return links
	Environment string        `koanf:"environment"`
}

// IsDevelopment reports whether the server runs in development mode.
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// KVConfig holds the Badger store shared by carts and sessions.
type KVConfig struct {
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// SecurityConfig holds authentication, authorization and HTTP hardening settings.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	SessionStore    string        `koanf:"session_store"` // badger or memory
	CookieSecure    bool          `koanf:"cookie_secure"`
	CSRFEnabled     bool          `koanf:"csrf_enabled"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	AuthRateLimit   int           `koanf:"auth_rate_limit"` // per minute per IP on login/register
	CORSOrigins     []string      `koanf:"cors_origins"`
	AuthzCacheTTL   time.Duration `koanf:"authz_cache_ttl"`
	AdminEmail      string        `koanf:"admin_email"`
	AdminPassword   string        `koanf:"admin_password"`
	MinPasswordLen  int           `koanf:"min_password_length"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig holds storefront business settings. Amounts are in minor units.
type StoreConfig struct {
	Name                  string        `koanf:"name"`
	Currency              string        `koanf:"currency"`
	DefaultLanguage       string        `koanf:"default_language"`
	TaxRateBasisPoints    int64         `koanf:"tax_rate_bps"`
	ShippingFlat          int64         `koanf:"shipping_flat"`
	FreeShippingThreshold int64         `koanf:"free_shipping_threshold"` // 0 disables free shipping
	PendingOrderTTL       time.Duration `koanf:"pending_order_ttl"`
	LowStockThreshold     int           `koanf:"low_stock_threshold"`
	CartTTL               time.Duration `koanf:"cart_ttl"`
	CacheTTL              time.Duration `koanf:"cache_ttl"`
}

// PaymentsConfig holds gateway credentials. Credentials are read from
// configuration only and never written to the database.
type PaymentsConfig struct {
	Timeout      time.Duration      `koanf:"timeout"`
	PayPal       PayPalConfig       `koanf:"paypal"`
	Stripe       StripeConfig       `koanf:"stripe"`
	Tap          TapConfig          `koanf:"tap"`
	BankTransfer BankTransferConfig `koanf:"bank_transfer"`
	COD          CODConfig          `koanf:"cod"`
}

// PayPalConfig configures the PayPal Orders v2 gateway.
type PayPalConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	WebhookID    string `koanf:"webhook_id"`
	Sandbox      bool   `koanf:"sandbox"`
	BaseURL      string `koanf:"base_url"` // overrides the sandbox/live endpoint
}

// StripeConfig configures the Stripe Checkout gateway.
type StripeConfig struct {
	Enabled        bool   `koanf:"enabled"`
	SecretKey      string `koanf:"secret_key"`
	PublishableKey string `koanf:"publishable_key"`
	WebhookSecret  string `koanf:"webhook_secret"`
	BaseURL        string `koanf:"base_url"`
}

// TapConfig configures the TAP Payments charges gateway.
type TapConfig struct {
	Enabled   bool   `koanf:"enabled"`
	SecretKey string `koanf:"secret_key"`
	PublicKey string `koanf:"public_key"`
	BaseURL   string `koanf:"base_url"`
}

// BankTransferConfig holds the account details shown to customers.
type BankTransferConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BankName    string `koanf:"bank_name"`
	AccountName string `koanf:"account_name"`
	IBAN        string `koanf:"iban"`
	SWIFT       string `koanf:"swift"`
}

// CODConfig configures cash on delivery.
type CODConfig struct {
	Enabled bool  `koanf:"enabled"`
	Fee     int64 `koanf:"fee"`
}

// NewsletterConfig configures campaign delivery.
type NewsletterConfig struct {
	Enabled                 bool          `koanf:"enabled"`
	CheckInterval           time.Duration `koanf:"check_interval"`
	MaxConcurrentDeliveries int           `koanf:"max_concurrent_deliveries"`
	ExecutionTimeout        time.Duration `koanf:"execution_timeout"`
	SendRatePerSecond       float64       `koanf:"send_rate_per_second"`
	SMTP                    SMTPConfig    `koanf:"smtp"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	UseTLS   bool   `koanf:"use_tls"`
}

// EventsConfig selects the domain event transport.
type EventsConfig struct {
	NATSURL      string `koanf:"nats_url"` // empty selects the in-process gochannel bus
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	NATSHost     string `koanf:"nats_host"`
	NATSPort     int    `koanf:"nats_port"`
}

// JobsConfig holds cron specs for maintenance jobs.
type JobsConfig struct {
	ExpireOrdersSpec   string `koanf:"expire_orders_spec"`
	SessionCleanupSpec string `koanf:"session_cleanup_spec"`
	AuditCleanupSpec   string `koanf:"audit_cleanup_spec"`
}

// AuditConfig controls the admin audit trail.
type AuditConfig struct {
	Enabled       bool `koanf:"enabled"`
	RetentionDays int  `koanf:"retention_days"` // 0 keeps events forever
	BufferSize    int  `koanf:"buffer_size"`
	LogToStdout   bool `koanf:"log_to_stdout"`
}
