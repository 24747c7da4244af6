// Package config loads and validates the shared lists configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the SLS_ prefix (e.g., SLS_DATABASE_HOST
// overrides database.host in the YAML), so the same binary runs from a config.yaml
// locally and from pure environment variables in a container.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`

	// source is kept so Watch can follow the config file after Load
	source *viper.Viper
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// AuthConfig holds credential configuration
type AuthConfig struct {
	APIKeys APIKeyConfig `mapstructure:"api_keys"`
	// AdminSecret guards admin routes. When empty, admin routes answer ServiceUnavailable.
	AdminSecret string `mapstructure:"admin_secret"`
}

// APIKeyConfig holds API key issuance configuration
type APIKeyConfig struct {
	Prefix string `mapstructure:"prefix"`
	// TTL applies to every issued key, whether from login or explicit issuance
	TTL time.Duration `mapstructure:"ttl"`
	// SweepInterval is how often the server deletes invalid and expired keys; 0 disables it
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LimitsConfig caps per-account and per-list growth
type LimitsConfig struct {
	MaxListsPerAccount int `mapstructure:"max_lists_per_account"`
	MaxItemsPerList    int `mapstructure:"max_items_per_list"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// RedisURL switches from the in-process limiter to a Redis-backed one shared by all replicas
	RedisURL string `mapstructure:"redis_url"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// LogFailedRequests also records mutations answered with 4xx/5xx
	LogFailedRequests bool `mapstructure:"log_failed_requests"`
	// File and Webhook export each entry in addition to the database; empty disables them
	File    AuditFileConfig    `mapstructure:"file"`
	Webhook AuditWebhookConfig `mapstructure:"webhook"`
}

// AuditFileConfig appends audit entries as JSON lines to a local file
type AuditFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// AuditWebhookConfig posts audit entries to an HTTP endpoint
type AuditWebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Headers       map[string]string `mapstructure:"headers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval time.Duration     `mapstructure:"flush_interval"`
}

// bindEnvVars explicitly binds environment variables to config keys, because
// AutomaticEnv alone is not consulted by Unmarshal for nested keys.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",

		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		"auth.api_keys.prefix",
		"auth.api_keys.ttl",
		"auth.api_keys.sweep_interval",
		"auth.admin_secret",

		"limits.max_lists_per_account",
		"limits.max_items_per_list",

		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.redis_url",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		"logging.level",
		"logging.format",

		"telemetry.metrics.enabled",
		"telemetry.metrics.port",

		"audit.enabled",
		"audit.log_failed_requests",
		"audit.file.path",
		"audit.file.max_size_mb",
		"audit.file.max_backups",
		"audit.webhook.url",
		"audit.webhook.timeout",
		"audit.webhook.batch_size",
		"audit.webhook.flush_interval",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/sharedlists")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.source = v
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Secrets may reference other variables, e.g. admin_secret: ${ADMIN_SECRET}
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Auth.AdminSecret = expandEnv(cfg.Auth.AdminSecret)
	cfg.Security.RateLimiting.RedisURL = expandEnv(cfg.Security.RateLimiting.RedisURL)
	cfg.Audit.Webhook.URL = expandEnv(cfg.Audit.Webhook.URL)
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "sharedlists")
	v.SetDefault("database.user", "sharedlists")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	v.SetDefault("auth.api_keys.prefix", "sl")
	v.SetDefault("auth.api_keys.ttl", "6h")
	v.SetDefault("auth.api_keys.sweep_interval", "0s")
	v.SetDefault("auth.admin_secret", "")

	v.SetDefault("limits.max_lists_per_account", 50)
	v.SetDefault("limits.max_items_per_list", 500)

	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 120)
	v.SetDefault("security.rate_limiting.burst", 20)
	v.SetDefault("security.rate_limiting.redis_url", "")
	v.SetDefault("security.tls.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.port", 9090)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.log_failed_requests", false)
	v.SetDefault("audit.file.max_size_mb", 100)
	v.SetDefault("audit.file.max_backups", 5)
	v.SetDefault("audit.webhook.timeout", "10s")
	v.SetDefault("audit.webhook.batch_size", 0)
	v.SetDefault("audit.webhook.flush_interval", "5s")
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Auth.APIKeys.TTL <= 0 {
		return fmt.Errorf("auth.api_keys.ttl must be positive, got %s", c.Auth.APIKeys.TTL)
	}
	if c.Auth.APIKeys.SweepInterval < 0 {
		return fmt.Errorf("auth.api_keys.sweep_interval must not be negative")
	}
	if strings.ContainsAny(c.Auth.APIKeys.Prefix, " _") {
		return fmt.Errorf("auth.api_keys.prefix must not contain spaces or underscores: %q", c.Auth.APIKeys.Prefix)
	}

	if c.Limits.MaxListsPerAccount < 1 {
		return fmt.Errorf("limits.max_lists_per_account must be at least 1")
	}
	if c.Limits.MaxItemsPerList < 1 {
		return fmt.Errorf("limits.max_items_per_list must be at least 1")
	}

	if c.Security.RateLimiting.Enabled && c.Security.RateLimiting.RequestsPerMinute < 1 {
		return fmt.Errorf("security.rate_limiting.requests_per_minute must be at least 1 when rate limiting is enabled")
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
