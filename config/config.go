// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
}

// DatabaseConfig holds PostgreSQL database connection details.
type DatabaseConfig struct {
	Host         string `mapstructure:"HOST" yaml:"host"`
	Port         int    `mapstructure:"PORT" yaml:"port"`
	User         string `mapstructure:"USER" yaml:"user"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	Name         string `mapstructure:"NAME" yaml:"name"`
	SSLMode      string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"MAX_OPEN_CONNS" yaml:"max_open_conns"`
}

// URL returns a postgres:// connection URL for pgxpool.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// RedisConfig holds Redis connection details for the search cache.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS" yaml:"address"`
	Password string `mapstructure:"PASSWORD" yaml:"password"`
	DB       int    `mapstructure:"DB" yaml:"db"`
	PoolSize int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
}

// ReviewConfig holds the review session tuning knobs.
type ReviewConfig struct {
	// ManualProcessingEnabled gates the on-demand extraction path when a case
	// has no processed documents.
	ManualProcessingEnabled bool `mapstructure:"MANUAL_PROCESSING_ENABLED" yaml:"manual_processing_enabled"`
	// SaveErrorClearSeconds is how long inline save failures stay visible.
	SaveErrorClearSeconds int `mapstructure:"SAVE_ERROR_CLEAR_SECONDS" yaml:"save_error_clear_seconds"`
}

// CaseAPIConfig holds the case management backend endpoint.
type CaseAPIConfig struct {
	APIUrl string `mapstructure:"API_URL" yaml:"api_url"`
	APIKey string `mapstructure:"API_KEY" yaml:"api_key"`
}

// CoverageConfig holds the external coverage computation endpoint.
type CoverageConfig struct {
	APIUrl string `mapstructure:"API_URL" yaml:"api_url"`
	APIKey string `mapstructure:"API_KEY" yaml:"api_key"`
}

// ProcessingConfig holds the extraction pipeline endpoint.
type ProcessingConfig struct {
	APIUrl string `mapstructure:"API_URL" yaml:"api_url"`
	APIKey string `mapstructure:"API_KEY" yaml:"api_key"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server     ServerConfig     `mapstructure:"SERVER" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"DATABASE" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"REDIS" yaml:"redis"`
	Review     ReviewConfig     `mapstructure:"REVIEW" yaml:"review"`
	CaseAPI    CaseAPIConfig    `mapstructure:"CASE_API" yaml:"case_api"`
	Coverage   CoverageConfig   `mapstructure:"COVERAGE" yaml:"coverage"`
	Processing ProcessingConfig `mapstructure:"PROCESSING" yaml:"processing"`
	LogLevel   string           `mapstructure:"LOG_LEVEL" yaml:"log_level"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables using Viper, sets
// default values, unmarshals, and validates.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "ticket_review_dev")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_OPEN_CONNS", 5)
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.POOL_SIZE", 3)
	v.SetDefault("REVIEW.MANUAL_PROCESSING_ENABLED", true)
	v.SetDefault("REVIEW.SAVE_ERROR_CLEAR_SECONDS", 8)
	v.SetDefault("CASE_API.API_URL", "")
	v.SetDefault("CASE_API.API_KEY", "")
	v.SetDefault("COVERAGE.API_URL", "")
	v.SetDefault("COVERAGE.API_KEY", "")
	v.SetDefault("PROCESSING.API_URL", "")
	v.SetDefault("PROCESSING.API_KEY", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"DATABASE.HOST", "DB_HOST"},
		{"DATABASE.PORT", "DB_PORT"},
		{"DATABASE.USER", "DB_USER"},
		{"DATABASE.PASSWORD", "DB_PASSWORD"},
		{"DATABASE.NAME", "DB_NAME"},
		{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
		{"DATABASE.MAX_OPEN_CONNS", "DB_MAX_OPEN_CONNS"},
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.POOL_SIZE", "REDIS_POOL_SIZE"},
		{"REVIEW.MANUAL_PROCESSING_ENABLED", "REVIEW_MANUAL_PROCESSING_ENABLED"},
		{"REVIEW.SAVE_ERROR_CLEAR_SECONDS", "REVIEW_SAVE_ERROR_CLEAR_SECONDS"},
		{"CASE_API.API_URL", "CASE_API_URL"},
		{"CASE_API.API_KEY", "CASE_API_KEY"},
		{"COVERAGE.API_URL", "COVERAGE_API_URL"},
		{"COVERAGE.API_KEY", "COVERAGE_API_KEY"},
		{"PROCESSING.API_URL", "PROCESSING_API_URL"},
		{"PROCESSING.API_KEY", "PROCESSING_API_KEY"},
		{"LOG_LEVEL", "LOG_LEVEL"},
	}
	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"manualProcessing", cfg.Review.ManualProcessingEnabled,
	)
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction {
		return fmt.Errorf("invalid SERVER_ENVIRONMENT: %s", c.Server.Environment)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.IsProduction() {
		if c.CaseAPI.APIUrl == "" {
			return fmt.Errorf("CASE_API_URL is required in production")
		}
		if c.Coverage.APIUrl == "" {
			return fmt.Errorf("COVERAGE_API_URL is required in production")
		}
		if c.Processing.APIUrl == "" && c.Review.ManualProcessingEnabled {
			return fmt.Errorf("PROCESSING_API_URL is required when manual processing is enabled")
		}
	}
	if c.Review.SaveErrorClearSeconds <= 0 {
		return fmt.Errorf("REVIEW_SAVE_ERROR_CLEAR_SECONDS must be positive")
	}
	return nil
}
