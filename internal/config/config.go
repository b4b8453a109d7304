// Package config loads csp configuration from an optional YAML file overlaid
// by CSP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when none is named and it exists.
const DefaultPath = "csp.yaml"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the complete csp configuration.
type Config struct {
	// Catalog is the path of the tag catalog used by post-validation.
	Catalog string      `yaml:"catalog"`
	Store   StoreConfig `yaml:"store"`
	Log     LogConfig   `yaml:"log"`
}

// StoreConfig selects and configures the node store.
type StoreConfig struct {
	Kind      string `yaml:"kind" validate:"oneof=memory redis"`
	Path      string `yaml:"path" validate:"required_if=Kind memory"`
	RedisURL  string `yaml:"redisUrl" validate:"required_if=Kind redis"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Kind:      StoreMemory,
			Path:      "csnodes.yaml",
			KeyPrefix: "csp:",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies the
// environment. The result is not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays CSP_* environment variables.
func (c *Config) applyEnv() error {
	c.Catalog = envOr("CSP_CATALOG", c.Catalog)
	c.Store.Kind = envOr("CSP_STORE_KIND", c.Store.Kind)
	c.Store.Path = envOr("CSP_STORE_PATH", c.Store.Path)
	c.Store.RedisURL = envOr("CSP_REDIS_URL", c.Store.RedisURL)
	c.Store.KeyPrefix = envOr("CSP_REDIS_PREFIX", c.Store.KeyPrefix)
	c.Log.Level = strings.ToLower(envOr("CSP_LOG_LEVEL", c.Log.Level))

	if v := os.Getenv("CSP_LOG_DEVELOPMENT"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CSP_LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = dev
	}
	return nil
}

var validate = validator.New()

// Validate checks the configuration's struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required when %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// NewLogger builds the zap logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var zc zap.Config
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
