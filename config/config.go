// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Config holds runtime configuration for the server.
type Config struct {
	Env    string `envconfig:"APP_ENV" default:"development"`
	Port   int    `envconfig:"PORT" default:"8080"`
	DBPath string `envconfig:"DB_PATH" default:"installments.db"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	RateLimit      int           `envconfig:"RATE_LIMIT" default:"300"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`

	RefreshSchedule    string `envconfig:"REFRESH_SCHEDULE" default:"@daily"`
	RefreshConcurrency int    `envconfig:"REFRESH_CONCURRENCY" default:"4"`
	RefreshEnabled     bool   `envconfig:"REFRESH_ENABLED" default:"true"`
	Timezone           string `envconfig:"TIMEZONE" default:"UTC"`
}

// Load reads .env (if any) and the environment into a validated Config.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.RefreshConcurrency <= 0 {
		return fmt.Errorf("REFRESH_CONCURRENCY must be positive, got %d", c.RefreshConcurrency)
	}
	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		return fmt.Errorf("REFRESH_SCHEDULE: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// IsProduction returns true when the server runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// Location resolves Timezone; "today" for overdue checks is taken there.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds the process logger: JSON in production or when asked
// for, text otherwise.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if c.IsProduction() || strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
