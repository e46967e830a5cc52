package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Amadeus     AmadeusConfig   `mapstructure:"amadeus"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Cleanup     CleanupConfig   `mapstructure:"cleanup"`
	Security    SecurityConfig  `mapstructure:"security"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AmadeusConfig configures the external quote provider. An empty APIKey means
// the provider is not configured; the forecast pipeline then skips live
// sampling entirely instead of treating it as an error.
type AmadeusConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Timeout   int    `mapstructure:"timeout"`
}

// ForecastConfig holds the tunables of the forecasting pipeline. Alpha and
// Band are calibration candidates, not domain truths.
type ForecastConfig struct {
	ModelEnabled    bool    `mapstructure:"model_enabled"`
	SeasonalityMode string  `mapstructure:"seasonality_mode"`
	MinTrainingDays int     `mapstructure:"min_training_days"`
	LookbackDays    int     `mapstructure:"lookback_days"`
	SmoothingWindow int     `mapstructure:"smoothing_window"`
	BackfillAlpha   float64 `mapstructure:"backfill_alpha"`
	SimpleBand      float64 `mapstructure:"simple_band"`
	DefaultMonths   int     `mapstructure:"default_months"`
	MaxMonths       int     `mapstructure:"max_months"`
	CurrencyCode    string  `mapstructure:"currency_code"`
	CacheTTL        string  `mapstructure:"cache_ttl"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type CleanupConfig struct {
	InvalidFareRetentionHours int `mapstructure:"invalid_fare_retention_hours"`
	ForecastRunRetentionHours int `mapstructure:"forecast_run_retention_hours"`
	CleanupIntervalMinutes    int `mapstructure:"cleanup_interval_minutes"`
}

type SecurityConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry  string `mapstructure:"jwt_expiry"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("amadeus.api_key", "AMADEUS_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind AMADEUS_API_KEY environment variable: %w", err)
	}
	if err := viper.BindEnv("amadeus.api_secret", "AMADEUS_API_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind AMADEUS_API_SECRET environment variable: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	environment := strings.ToLower(config.Environment)

	if environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return nil, fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	if config.Security.BcryptCost < bcrypt.MinCost || config.Security.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, config.Security.BcryptCost)
	}

	if err := validateForecast(config.Forecast); err != nil {
		return nil, err
	}

	config.Environment = environment

	return &config, nil
}

func validateForecast(fc ForecastConfig) error {
	if fc.BackfillAlpha < 0 || fc.BackfillAlpha > 1 {
		return fmt.Errorf("forecast backfill alpha must be within [0, 1], got %f", fc.BackfillAlpha)
	}
	if fc.SimpleBand < 0 || fc.SimpleBand >= 1 {
		return fmt.Errorf("forecast simple band must be within [0, 1), got %f", fc.SimpleBand)
	}
	if fc.SeasonalityMode != "additive" && fc.SeasonalityMode != "multiplicative" {
		return fmt.Errorf("forecast seasonality mode must be additive or multiplicative, got %q", fc.SeasonalityMode)
	}
	if fc.DefaultMonths < 1 || fc.DefaultMonths > fc.MaxMonths {
		return fmt.Errorf("forecast default months %d outside [1, %d]", fc.DefaultMonths, fc.MaxMonths)
	}
	if fc.CacheTTL != "" {
		if _, err := time.ParseDuration(fc.CacheTTL); err != nil {
			return fmt.Errorf("invalid forecast cache TTL: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "smartlipad")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Amadeus
	viper.SetDefault("amadeus.base_url", "https://test.api.amadeus.com")
	viper.SetDefault("amadeus.api_key", "")
	viper.SetDefault("amadeus.api_secret", "")
	viper.SetDefault("amadeus.timeout", 30)

	// Forecast
	viper.SetDefault("forecast.model_enabled", true)
	viper.SetDefault("forecast.seasonality_mode", "multiplicative")
	viper.SetDefault("forecast.min_training_days", 30)
	viper.SetDefault("forecast.lookback_days", 730)
	viper.SetDefault("forecast.smoothing_window", 7)
	viper.SetDefault("forecast.backfill_alpha", 0.7)
	viper.SetDefault("forecast.simple_band", 0.10)
	viper.SetDefault("forecast.default_months", 12)
	viper.SetDefault("forecast.max_months", 24)
	viper.SetDefault("forecast.currency_code", "PHP")
	viper.SetDefault("forecast.cache_ttl", "10m")

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)

	// Cleanup
	viper.SetDefault("cleanup.invalid_fare_retention_hours", 720)
	viper.SetDefault("cleanup.forecast_run_retention_hours", 168)
	viper.SetDefault("cleanup.cleanup_interval_minutes", 60)

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.service_name", "smartlipad-api")
}
