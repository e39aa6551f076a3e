package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port                string
	StripeAPIKey        string
	StripeWebhookSecret string
	StoreDriver         string
	DatabaseURL         string
	StoreTimeout        time.Duration
	PlansFile           string
	PlanPriceMap        string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	AdminJWTSecret      string
	TemporalEnabled     bool
	TemporalHostPort    string
	TemporalNamespace   string
	TemporalTaskQueue   string
	LogLevel            string
	CORSAllowedOrigins  []string
}

// Load reads the environment, after loading a .env file when present.
// All missing or malformed variables are reported together.
func Load() (*Config, error) {
	// Load from .env file if present (optional)
	_ = godotenv.Load()

	e := &env{}
	cfg := &Config{
		Port:                e.get("PORT", "8080"),
		StripeAPIKey:        e.must("STRIPE_API_KEY"),
		StripeWebhookSecret: e.must("STRIPE_WEBHOOK_SECRET"),
		StoreDriver:         strings.ToLower(e.get("STORE_DRIVER", StoreDriverPostgres)),
		StoreTimeout:        e.duration("STORE_TIMEOUT", 5*time.Second),
		PlansFile:           e.get("PLANS_FILE", ""),
		PlanPriceMap:        e.get("PLAN_PRICE_MAP", ""),
		CheckoutSuccessURL:  e.get("CHECKOUT_SUCCESS_URL", "http://localhost:3000/success"),
		CheckoutCancelURL:   e.get("CHECKOUT_CANCEL_URL", "http://localhost:3000/cancel"),
		AdminJWTSecret:      e.get("ADMIN_JWT_SECRET", ""),
		TemporalEnabled:     e.bool("TEMPORAL_ENABLED", false),
		TemporalHostPort:    e.get("TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalNamespace:   e.get("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue:   e.get("TEMPORAL_TASK_QUEUE", "stripe-webhooks"),
		LogLevel:            e.get("LOG_LEVEL", "info"),
		CORSAllowedOrigins:  splitList(e.get("CORS_ALLOWED_ORIGINS", "*")),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DatabaseURL = e.must("DATABASE_URL")
	case StoreDriverMemory:
		cfg.DatabaseURL = e.get("DATABASE_URL", "")
	default:
		e.errs = append(e.errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.StoreDriver))
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseURL is the narrow loader used by the migrate command.
func LoadDatabaseURL() (string, error) {
	_ = godotenv.Load()

	e := &env{}
	url := e.must("DATABASE_URL")
	return url, errors.Join(e.errs...)
}

type env struct {
	errs []error
}

// must returns the value of the env var and records an error if missing.
func (e *env) must(key string) string {
	val := os.Getenv(key)
	if val == "" {
		e.errs = append(e.errs, fmt.Errorf("missing required environment variable: %s", key))
	}
	return val
}

// get returns the env var value or default if unset.
func (e *env) get(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (e *env) duration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, fmt.Errorf("invalid duration in %s: %q", key, val))
		return defaultVal
	}
	return d
}

func (e *env) bool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid boolean in %s: %q", key, val))
		return defaultVal
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
