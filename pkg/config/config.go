package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Authentication configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// AllowedOrigins lists origins allowed to call the API from a
	// browser. The embedded client surface is served cross-origin from
	// tenant sites, so the default is the wildcard.
	AllowedOrigins []string

	// Debug controls whether internal error details are returned in
	// 500 response bodies. Keep off in production.
	Debug bool
}

// AuthConfig holds token issuance and login throttle settings
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	ThrottleMaxAttempts int
	ThrottleWindow      time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// fileConfig mirrors Config with yaml tags and pointer fields so a
// config file only overrides the values it sets. Environment variables
// take precedence over file values.
// Durations are strings in time.ParseDuration form ("15m", "30s").
type fileConfig struct {
	Server struct {
		Host            *string  `yaml:"host"`
		Port            *string  `yaml:"port"`
		ReadTimeout     *string  `yaml:"read_timeout"`
		WriteTimeout    *string  `yaml:"write_timeout"`
		IdleTimeout     *string  `yaml:"idle_timeout"`
		ShutdownTimeout *string  `yaml:"shutdown_timeout"`
		HealthPort      *string  `yaml:"health_port"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
		Debug           *bool    `yaml:"debug"`
	} `yaml:"server"`
	Storage struct {
		PostgresURL      *string `yaml:"postgres_url"`
		PostgresMaxConns *int    `yaml:"postgres_max_conns"`
		PostgresMinConns *int    `yaml:"postgres_min_conns"`
		PostgresTimeout  *string `yaml:"postgres_timeout"`
		RedisURL         *string `yaml:"redis_url"`
		RedisPassword    *string `yaml:"redis_password"`
		RedisDB          *int    `yaml:"redis_db"`
		RedisMaxRetries  *int    `yaml:"redis_max_retries"`
		RedisPoolSize    *int    `yaml:"redis_pool_size"`
	} `yaml:"storage"`
	Auth struct {
		AccessTokenTTL      *string `yaml:"access_token_ttl"`
		RefreshTokenTTL     *string `yaml:"refresh_token_ttl"`
		ThrottleMaxAttempts *int    `yaml:"throttle_max_attempts"`
		ThrottleWindow      *string `yaml:"throttle_window"`
	} `yaml:"auth"`
	Observability struct {
		LogLevel       *string `yaml:"log_level"`
		MetricsEnabled *bool   `yaml:"metrics_enabled"`
	} `yaml:"observability"`
}

// LoadConfig loads configuration from an optional YAML file (path taken
// from PARLEY_CONFIG_FILE) overlaid with environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        defaultServerConfig(),
		Storage:       storage.DefaultConfig(),
		Auth:          defaultAuthConfig(),
		Observability: defaultObservabilityConfig(),
	}

	if path := getEnv("PARLEY_CONFIG_FILE", ""); path != "" {
		if err := applyConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            "8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		HealthPort:      "9090",
		AllowedOrigins:  []string{"*"},
	}
}

func defaultAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     30 * 24 * time.Hour,
		ThrottleMaxAttempts: 5,
		ThrottleWindow:      15 * time.Minute,
	}
}

func defaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.InfoLevel,
		MetricsEnabled: true,
	}
}

// applyConfigFile reads a YAML config file and overlays the values it
// sets onto cfg.
func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}

	setString(&cfg.Server.Host, fc.Server.Host)
	setString(&cfg.Server.Port, fc.Server.Port)
	if err := setDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.IdleTimeout, fc.Server.IdleTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout); err != nil {
		return err
	}
	setString(&cfg.Server.HealthPort, fc.Server.HealthPort)
	if fc.Server.AllowedOrigins != nil {
		cfg.Server.AllowedOrigins = fc.Server.AllowedOrigins
	}
	setBool(&cfg.Server.Debug, fc.Server.Debug)

	setString(&cfg.Storage.PostgresURL, fc.Storage.PostgresURL)
	setInt(&cfg.Storage.PostgresMaxConns, fc.Storage.PostgresMaxConns)
	setInt(&cfg.Storage.PostgresMinConns, fc.Storage.PostgresMinConns)
	if err := setDuration(&cfg.Storage.PostgresTimeout, fc.Storage.PostgresTimeout); err != nil {
		return err
	}
	setString(&cfg.Storage.RedisURL, fc.Storage.RedisURL)
	setString(&cfg.Storage.RedisPassword, fc.Storage.RedisPassword)
	setInt(&cfg.Storage.RedisDB, fc.Storage.RedisDB)
	setInt(&cfg.Storage.RedisMaxRetries, fc.Storage.RedisMaxRetries)
	setInt(&cfg.Storage.RedisPoolSize, fc.Storage.RedisPoolSize)

	if err := setDuration(&cfg.Auth.AccessTokenTTL, fc.Auth.AccessTokenTTL); err != nil {
		return err
	}
	if err := setDuration(&cfg.Auth.RefreshTokenTTL, fc.Auth.RefreshTokenTTL); err != nil {
		return err
	}
	setInt(&cfg.Auth.ThrottleMaxAttempts, fc.Auth.ThrottleMaxAttempts)
	if err := setDuration(&cfg.Auth.ThrottleWindow, fc.Auth.ThrottleWindow); err != nil {
		return err
	}

	if fc.Observability.LogLevel != nil {
		cfg.Observability.LogLevel = parseLogLevel(*fc.Observability.LogLevel)
	}
	setBool(&cfg.Observability.MetricsEnabled, fc.Observability.MetricsEnabled)

	return nil
}

// applyEnv overlays environment variables onto cfg. Env vars win over
// both defaults and file values.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("PARLEY_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("PARLEY_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("PARLEY_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("PARLEY_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("PARLEY_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("PARLEY_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("PARLEY_HEALTH_PORT", cfg.Server.HealthPort)
	if origins := getEnv("PARLEY_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = splitAndTrim(origins)
	}
	cfg.Server.Debug = getEnvBool("PARLEY_DEBUG", cfg.Server.Debug)

	cfg.Storage.PostgresURL = getEnv("PARLEY_POSTGRES_URL", cfg.Storage.PostgresURL)
	if maxConns := getEnvInt("PARLEY_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.Storage.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("PARLEY_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.Storage.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("PARLEY_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Storage.PostgresTimeout = timeout
	}

	cfg.Storage.RedisURL = getEnv("PARLEY_REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.RedisPassword = getEnv("PARLEY_REDIS_PASSWORD", cfg.Storage.RedisPassword)
	if redisDB := getEnvInt("PARLEY_REDIS_DB", -1); redisDB >= 0 {
		cfg.Storage.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("PARLEY_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.Storage.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("PARLEY_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.Storage.RedisPoolSize = redisPoolSize
	}

	cfg.Auth.AccessTokenTTL = getEnvDuration("PARLEY_ACCESS_TOKEN_TTL", cfg.Auth.AccessTokenTTL)
	cfg.Auth.RefreshTokenTTL = getEnvDuration("PARLEY_REFRESH_TOKEN_TTL", cfg.Auth.RefreshTokenTTL)
	if maxAttempts := getEnvInt("PARLEY_THROTTLE_MAX_ATTEMPTS", 0); maxAttempts > 0 {
		cfg.Auth.ThrottleMaxAttempts = maxAttempts
	}
	if window := getEnvDuration("PARLEY_THROTTLE_WINDOW", 0); window > 0 {
		cfg.Auth.ThrottleWindow = window
	}

	if level := getEnv("PARLEY_LOG_LEVEL", ""); level != "" {
		cfg.Observability.LogLevel = parseLogLevel(level)
	}
	cfg.Observability.MetricsEnabled = getEnvBool("PARLEY_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Auth.ThrottleMaxAttempts <= 0 {
		return fmt.Errorf("throttle max attempts must be positive")
	}
	if c.Auth.ThrottleWindow <= 0 {
		return fmt.Errorf("throttle window must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", *src, err)
	}
	*dst = d
	return nil
}

// splitAndTrim splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
