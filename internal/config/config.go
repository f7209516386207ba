/**
 * @description
 * This package handles configuration management for the payment-service. It uses
 * Viper to read an optional .env file and environment variables into one struct
 * that is injected into every component at startup.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading.
 * - github.com/shopspring/decimal: fee and rate parsing.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RunMigrations             bool   `mapstructure:"RUN_MIGRATIONS"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	ConfirmRateLimit          int    `mapstructure:"CONFIRM_RATE_LIMIT"`
	ConfirmRateLimitWindowSec int    `mapstructure:"CONFIRM_RATE_LIMIT_WINDOW_SECONDS"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	EventsExchange            string `mapstructure:"EVENTS_EXCHANGE"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	CORSOrigins               string `mapstructure:"CORS_ORIGINS"`
	LogLevel                  string `mapstructure:"LOG_LEVEL"`
	LogFormat                 string `mapstructure:"LOG_FORMAT"`

	UseMockOSP        bool   `mapstructure:"USE_MOCK_OSP"`
	OSPBaseURL        string `mapstructure:"OSP_BASE_URL"`
	OSPAuth           string `mapstructure:"OSP_AUTH"`
	OSPPartner        string `mapstructure:"OSP_PARTNER"`
	OSPTimeoutSeconds int    `mapstructure:"OSP_TIMEOUT_SECONDS"`

	FeeAmountRaw     string `mapstructure:"FEE_AMOUNT"`
	USDToKHRRateRaw  string `mapstructure:"USD_TO_KHR_RATE"`
	RetryAttempts    int    `mapstructure:"GATEWAY_RETRY_ATTEMPTS"`
	RetryDelayMillis int    `mapstructure:"GATEWAY_RETRY_DELAY_MS"`

	ReconciliationSchedule     string `mapstructure:"RECONCILIATION_SCHEDULE"`
	ReconciliationStaleMinutes int    `mapstructure:"RECONCILIATION_STALE_MINUTES"`

	// Parsed from the raw strings above.
	FeeAmount    decimal.Decimal `mapstructure:"-"`
	USDToKHRRate decimal.Decimal `mapstructure:"-"`
}

// OSPTimeout returns the gateway request timeout.
func (c Config) OSPTimeout() time.Duration {
	return time.Duration(c.OSPTimeoutSeconds) * time.Second
}

// RetryDelay returns the constant delay between gateway retries.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// ReconciliationStaleAfter is how long a payment may sit in committed before the
// sweeper reports it.
func (c Config) ReconciliationStaleAfter() time.Duration {
	return time.Duration(c.ReconciliationStaleMinutes) * time.Minute
}

// ConfirmRateLimitWindow is the fixed window the confirm budget applies to.
func (c Config) ConfirmRateLimitWindow() time.Duration {
	return time.Duration(c.ConfirmRateLimitWindowSec) * time.Second
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables and an optional .env
// file in the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "dummybank:rate_limit")
	viper.SetDefault("CONFIRM_RATE_LIMIT", 10)
	viper.SetDefault("CONFIRM_RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("EVENTS_EXCHANGE", "dummybank.events")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("USE_MOCK_OSP", false)
	viper.SetDefault("OSP_PARTNER", "DUMMYBANK")
	viper.SetDefault("OSP_TIMEOUT_SECONDS", 30)
	viper.SetDefault("FEE_AMOUNT", "0.50")
	viper.SetDefault("USD_TO_KHR_RATE", "4000")
	viper.SetDefault("GATEWAY_RETRY_ATTEMPTS", 3)
	viper.SetDefault("GATEWAY_RETRY_DELAY_MS", 2000)
	viper.SetDefault("RECONCILIATION_SCHEDULE", "@every 5m")
	viper.SetDefault("RECONCILIATION_STALE_MINUTES", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RUN_MIGRATIONS")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("CONFIRM_RATE_LIMIT", "CONFIRM_RATE_LIMIT", "CONFIRM_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("CONFIRM_RATE_LIMIT_WINDOW_SECONDS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "SECRET_KEY")
	_ = viper.BindEnv("CORS_ORIGINS")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("LOG_FORMAT")
	_ = viper.BindEnv("USE_MOCK_OSP")
	_ = viper.BindEnv("OSP_BASE_URL")
	_ = viper.BindEnv("OSP_AUTH")
	_ = viper.BindEnv("OSP_PARTNER")
	_ = viper.BindEnv("OSP_TIMEOUT_SECONDS", "OSP_TIMEOUT_SECONDS", "OSP_TIMEOUT")
	_ = viper.BindEnv("FEE_AMOUNT")
	_ = viper.BindEnv("USD_TO_KHR_RATE")
	_ = viper.BindEnv("GATEWAY_RETRY_ATTEMPTS")
	_ = viper.BindEnv("GATEWAY_RETRY_DELAY_MS")
	_ = viper.BindEnv("RECONCILIATION_SCHEDULE")
	_ = viper.BindEnv("RECONCILIATION_STALE_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "dummybank:rate_limit"
	}
	config.OSPBaseURL = strings.TrimRight(strings.TrimSpace(config.OSPBaseURL), "/")

	config.FeeAmount = parseDecimal("FEE_AMOUNT", config.FeeAmountRaw, decimal.RequireFromString("0.50"))
	if config.FeeAmount.IsNegative() {
		log.Printf("level=warn component=config msg=\"negative fee configured; coercing to zero\" fee=%s", config.FeeAmount)
		config.FeeAmount = decimal.Zero
	}

	// A zero or negative rate is kept as-is; the converter rejects it at boot.
	config.USDToKHRRate = parseDecimal("USD_TO_KHR_RATE", config.USDToKHRRateRaw, decimal.Zero)

	if config.OSPTimeoutSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive OSP timeout; using default\" value=%d", config.OSPTimeoutSeconds)
		config.OSPTimeoutSeconds = 30
	}
	if config.RetryAttempts < 1 {
		log.Printf("level=warn component=config msg=\"gateway retry attempts below one; using one\" value=%d", config.RetryAttempts)
		config.RetryAttempts = 1
	}
	if config.RetryDelayMillis < 0 {
		config.RetryDelayMillis = 0
	}
	if config.ConfirmRateLimit < 0 {
		config.ConfirmRateLimit = 0
	}
	if config.ConfirmRateLimitWindowSec <= 0 {
		config.ConfirmRateLimitWindowSec = 60
	}
	if config.ReconciliationStaleMinutes <= 0 {
		config.ReconciliationStaleMinutes = 10
	}
	if !config.UseMockOSP && config.OSPBaseURL == "" {
		log.Printf("level=warn component=config msg=\"OSP_BASE_URL is empty and USE_MOCK_OSP is false; gateway calls will fail\"")
	}

	return
}

func parseDecimal(name, raw string, fallback decimal.Decimal) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("level=warn component=config msg=\"invalid %s\" value=%q err=%v", name, raw, err)
		return fallback
	}
	return value
}
