// Package config loads and validates all environment variables at startup.
// Every other package receives typed values; nothing reads os.Getenv directly.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port    string // default "8080"
	Env     string // "development" | "staging" | "production"
	BaseURL string // origin used for Checkout success/cancel URLs

	// AllowedOrigin is the CORS origin in production. Defaults to BaseURL.
	AllowedOrigin string

	// ── Database ──────────────────────────────────────────────────────────────
	DatabaseURL        string // postgres://user@host:5432/dbname?sslmode=require
	DatabaseServiceKey string // service credential, merged into DatabaseURL as the password
	MigrateOnStart     bool   // default false

	// ── Stripe ────────────────────────────────────────────────────────────────
	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	WebhookTolerance     time.Duration // default 5m

	// ── Pricing ───────────────────────────────────────────────────────────────
	Currency            string        // default "gbp"
	LifetimePriceMinor  int64         // default 4900
	PriceToleranceMinor int64         // default 1
	UpsellDelay         time.Duration // default 5s, served to clients via /api/config

	// ── Entitlement cache ─────────────────────────────────────────────────────
	// Optional. When REDIS_URL is empty, entitlements are read straight from
	// Postgres on every request.
	RedisURL            string
	EntitlementCacheTTL time.Duration // default 10m

	// ── Resend ────────────────────────────────────────────────────────────────
	// Optional. Without RESEND_API_KEY receipts are logged instead of sent.
	ResendAPIKey  string
	EmailFromAddr string // e.g. "receipts@gallery.example"
	EmailFromName string // e.g. "The Gallery"

	// ── Worker ────────────────────────────────────────────────────────────────
	WorkerCount  int           // default 2
	PollInterval time.Duration // default 30s
	JobTimeout   time.Duration // default 30s
	MaxRetries   int           // default 3
}

// Load reads all environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present;
// real environment variables always take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	c := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		BaseURL:              strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		AllowedOrigin:        os.Getenv("ALLOWED_ORIGIN"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DatabaseServiceKey:   os.Getenv("DATABASE_SERVICE_KEY"),
		MigrateOnStart:       getEnvAsBool("MIGRATE_ON_START", false),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		WebhookTolerance:     getEnvAsDuration("WEBHOOK_TOLERANCE", 5*time.Minute),
		Currency:             strings.ToLower(getEnv("CURRENCY", "gbp")),
		LifetimePriceMinor:   getEnvAsInt64("LIFETIME_PRICE_MINOR", 4900),
		PriceToleranceMinor:  getEnvAsInt64("PRICE_TOLERANCE_MINOR", 1),
		UpsellDelay:          getEnvAsDuration("UPSELL_DELAY", 5*time.Second),
		RedisURL:             os.Getenv("REDIS_URL"),
		EntitlementCacheTTL:  getEnvAsDuration("ENTITLEMENT_CACHE_TTL", 10*time.Minute),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		EmailFromAddr:        getEnv("EMAIL_FROM_ADDR", "receipts@gallery.example"),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "The Gallery"),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		PollInterval:         getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		JobTimeout:           getEnvAsDuration("JOB_TIMEOUT", 30*time.Second),
		MaxRetries:           getEnvAsInt("MAX_RETRIES", 3),
	}

	if c.AllowedOrigin == "" {
		c.AllowedOrigin = c.BaseURL
	}

	return c, c.validate()
}

func (c *Config) validate() error {
	var errs []error

	// Ordered so the error lists missing variables deterministically.
	required := []struct{ name, val string }{
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_PUBLISHABLE_KEY", c.StripePublishableKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret},
		{"DATABASE_URL", c.DatabaseURL},
		{"DATABASE_SERVICE_KEY", c.DatabaseServiceKey},
	}
	for _, r := range required {
		if r.val == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", r.name))
		}
	}

	if c.DatabaseURL != "" {
		if _, err := c.DSN(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.LifetimePriceMinor <= 0 {
		errs = append(errs, fmt.Errorf("LIFETIME_PRICE_MINOR must be positive, got %d", c.LifetimePriceMinor))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", c.Currency))
	}
	if c.UpsellDelay < 0 {
		errs = append(errs, fmt.Errorf("UPSELL_DELAY must not be negative"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// DSN returns DatabaseURL with the service key set as the connection
// password. A password already present in DATABASE_URL is replaced.
func (c *Config) DSN() (string, error) {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "", fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("DATABASE_URL must use the postgres:// scheme, got %q", u.Scheme)
	}
	if c.DatabaseServiceKey != "" {
		user := "postgres"
		if u.User != nil && u.User.Username() != "" {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, c.DatabaseServiceKey)
	}
	return u.String(), nil
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration syntax ("5s", "500ms") or a plain
// integer, which is read as milliseconds for *_DELAY keys and seconds otherwise.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		if strings.HasSuffix(key, "_DELAY") {
			return time.Duration(value) * time.Millisecond
		}
		return time.Duration(value) * time.Second
	}
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
