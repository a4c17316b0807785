package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the consent-ledger gateway
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Ledger configuration
	Ledger LedgerConfig `mapstructure:"ledger"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Known organizations: tag -> display name. Injected into the
	// consent engine rather than read from a package-level table.
	Organizations map[string]string `mapstructure:"organizations"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// LedgerConfig holds durable store configuration
type LedgerConfig struct {
	// Path of the LevelDB database backing the standalone gateway.
	Path string `mapstructure:"path"`
	// InMemory replaces the on-disk database with in-memory storage.
	InMemory bool `mapstructure:"in_memory"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
	Issuer         string `mapstructure:"issuer"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medledger")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	viper.SetDefault("ledger.path", "./data/ledger")
	viper.SetDefault("ledger.in_memory", false)

	// Registered empty so the env override is visible to Unmarshal.
	viper.SetDefault("jwt.secret_key", "")
	viper.SetDefault("jwt.access_token_ttl", 3600)
	viper.SetDefault("jwt.issuer", "medledger-gateway")

	viper.SetDefault("organizations", map[string]string{
		"hospital": "Hospital Org",
		"clinic":   "Clinic Org",
	})

	viper.SetDefault("log_level", "info")

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")
}

// validate checks required configuration values
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("jwt secret_key is required")
	}
	if !cfg.Ledger.InMemory && cfg.Ledger.Path == "" {
		return fmt.Errorf("ledger path is required")
	}
	return nil
}
