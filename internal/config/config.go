package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/avstrong/staycheckout/internal/logger"
)

var ErrMissingSetting = errors.New("missing required setting")

type Config struct {
	BackendURL string
	PaymentKey string

	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string

	BackendTimeout time.Duration
	PaymentTimeout time.Duration
	SessionTTL     time.Duration

	CouponsFile string
	ThemeColor  string
	BrandName   string

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	Log logger.Config
}

// Load reads an optional .env file, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var errs []error

	conf := &Config{
		BackendURL: strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		PaymentKey: os.Getenv("PAYMENT_KEY"),

		Host:             getEnv("HOST", "localhost"),
		Port:             getEnv("PORT", "8092"),
		LivenessEndpoint: getEnv("LIVENESS_ENDPOINT", "/liveness"),

		CouponsFile: os.Getenv("COUPONS_FILE"),
		ThemeColor:  getEnv("THEME_COLOR", "#3399cc"),
		BrandName:   getEnv("BRAND_NAME", "Stay"),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		Log: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	conf.ReadHeaderTimeout = getEnvDuration("READ_HEADER_TIMEOUT", 20*time.Second, &errs) //nolint:gomnd
	conf.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 15*time.Second, &errs)        //nolint:gomnd
	conf.PaymentTimeout = getEnvDuration("PAYMENT_TIMEOUT", 15*time.Minute, &errs)        //nolint:gomnd
	conf.SessionTTL = getEnvDuration("SESSION_TTL", 2*time.Hour, &errs)                   //nolint:gomnd
	conf.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", 5, &errs)                           //nolint:gomnd
	conf.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10, &errs)                        //nolint:gomnd
	conf.Log.FileMaxMB = getEnvInt("LOG_FILE_MAX_MB", 10, &errs)                          //nolint:gomnd

	if err := conf.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return conf, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string

	if c.BackendURL == "" {
		missing = append(missing, "BACKEND_URL")
	}

	if c.PaymentKey == "" {
		missing = append(missing, "PAYMENT_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("parse %s: %w", key, err))

		return defaultValue
	}

	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("parse %s: %w", key, err))

		return defaultValue
	}

	return f
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("parse %s: %w", key, err))

		return defaultValue
	}

	return d
}

func splitList(value string) []string {
	var out []string

	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
