package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func String(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func RequiredString(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}

func Int(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, v)
	}
	return n, nil
}

func Duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 5s (got %q)", key, v)
	}
	return d, nil
}

func Bool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v != "false" && v != "0"
}

// Config carries everything the API binary needs. Load fails fast on
// malformed values so a bad deploy dies at startup instead of mid-request.
type Config struct {
	ServiceName string
	Port        string

	DatabaseURL   string
	RunMigrations bool
	MigrationsDir string

	KafkaBrokers string
	RedisAddr    string

	JWTSecret           string
	StripeWebhookSecret string

	CommitTimeout       time.Duration
	OpenExceptionPolicy string

	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName:         String("SERVICE_NAME", "pathwaiz-api"),
		KafkaBrokers:        String("KAFKA_BROKERS", ""),
		RedisAddr:           String("REDIS_ADDR", ""),
		StripeWebhookSecret: String("STRIPE_WEBHOOK_SECRET", ""),
		RunMigrations:       Bool("RUN_MIGRATIONS", false),
		MigrationsDir:       String("MIGRATIONS_DIR", "migrations"),
		OpenExceptionPolicy: String("OPEN_EXCEPTION_POLICY", "closed"),
	}

	var err error
	if cfg.Port, err = Port("PORT", "8080"); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL, err = RequiredString("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret, err = RequiredString("JWT_SECRET"); err != nil {
		return Config{}, err
	}
	if cfg.CommitTimeout, err = Duration("BOOKING_COMMIT_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}

	switch cfg.OpenExceptionPolicy {
	case "closed", "inherits_rule":
	default:
		return Config{}, fmt.Errorf("OPEN_EXCEPTION_POLICY must be closed or inherits_rule (got %q)", cfg.OpenExceptionPolicy)
	}

	if raw := String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}
