package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Extractor ExtractorConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Pricing   PricingConfig
	Gate      GateConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
}

// ExtractorConfig holds extraction API configuration
type ExtractorConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig holds the listings store configuration
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

// CacheConfig holds web-price cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// PricingConfig holds the reconciliation engine's tunables. These are
// consumed, never re-derived; each component receives them at construction.
type PricingConfig struct {
	MinMarketSamples      int     `mapstructure:"min_market_samples"`
	ActiveBidFloor        float64 `mapstructure:"active_bid_floor"`
	StartingBidFloor      float64 `mapstructure:"starting_bid_floor"`
	BundleDiscount        float64 `mapstructure:"bundle_discount"`
	MaxBundleResaleRatio  float64 `mapstructure:"max_bundle_resale_ratio"`
	MaxComponentUnitValue float64 `mapstructure:"max_component_unit_value"`
	SoftCapSafetyFactor   float64 `mapstructure:"soft_cap_safety_factor"`
	BatchWorkers          int     `mapstructure:"batch_workers"`
	RunBudgetEUR          float64 `mapstructure:"run_budget_eur"`
}

// GateConfig holds the escalation thresholds
type GateConfig struct {
	InitialThreshold     float64 `mapstructure:"initial_threshold"`
	AfterDetailThreshold float64 `mapstructure:"after_detail_threshold"`
	AfterVisionThreshold float64 `mapstructure:"after_vision_threshold"`
	HardFloor            float64 `mapstructure:"hard_floor"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	FilePath string `mapstructure:"file_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/flipscout/")

	v.SetEnvPrefix("FLIPSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 10.0)

	// Extractor defaults
	v.SetDefault("extractor.base_url", "http://localhost:9090")

	// Database defaults
	v.SetDefault("database.enabled", false)

	// Cache defaults
	v.SetDefault("cache.ttl", "168h") // 7 days

	// Pricing defaults
	v.SetDefault("pricing.min_market_samples", 2)
	v.SetDefault("pricing.active_bid_floor", 5.0)
	v.SetDefault("pricing.starting_bid_floor", 20.0)
	v.SetDefault("pricing.bundle_discount", 0.10)
	v.SetDefault("pricing.max_bundle_resale_ratio", 0.85)
	v.SetDefault("pricing.max_component_unit_value", 1000.0)
	v.SetDefault("pricing.soft_cap_safety_factor", 1.10)
	v.SetDefault("pricing.batch_workers", 4)
	v.SetDefault("pricing.run_budget_eur", 0.0) // unlimited

	// Gate defaults
	v.SetDefault("gate.initial_threshold", 0.70)
	v.SetDefault("gate.after_detail_threshold", 0.60)
	v.SetDefault("gate.after_vision_threshold", 0.50)
	v.SetDefault("gate.hard_floor", 0.50)

	// Log defaults
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Extractor.APIKey == "" {
		return fmt.Errorf("extraction API key is required (set FLIPSCOUT_EXTRACTOR_API_KEY)")
	}
	if config.Database.Enabled && config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when database is enabled")
	}
	if config.Pricing.MinMarketSamples < 1 {
		return fmt.Errorf("pricing.min_market_samples must be at least 1, got: %d", config.Pricing.MinMarketSamples)
	}
	if config.Pricing.StartingBidFloor < config.Pricing.ActiveBidFloor {
		return fmt.Errorf("pricing.starting_bid_floor must not be below pricing.active_bid_floor")
	}
	if config.Pricing.SoftCapSafetyFactor < 1.0 {
		return fmt.Errorf("pricing.soft_cap_safety_factor must be >= 1.0, got: %v", config.Pricing.SoftCapSafetyFactor)
	}
	if config.Gate.HardFloor > config.Gate.AfterVisionThreshold {
		return fmt.Errorf("gate.hard_floor must not exceed gate.after_vision_threshold")
	}
	return nil
}
