// Package config loads the x402-gate server configuration.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/viper"

	"github.com/darkhorseone/x402-gate"
)

// Config holds the x402-gate server configuration
type Config struct {
	Listen   string             `mapstructure:"listen"`
	LogLevel string             `mapstructure:"log_level"`
	Backend  x402.BackendConfig `mapstructure:"backend"`
	Auth     AuthConfig         `mapstructure:"auth"`
	Routes   []RouteConfig      `mapstructure:"routes"`
}

// AuthConfig selects a signed-token authorizer for the facilitator.
// It takes precedence over backend.authorization when KeyID is set.
type AuthConfig struct {
	KeyID   string `mapstructure:"key_id"`
	KeyFile string `mapstructure:"key_file"`
}

// RouteConfig prices one path of the demo API.
type RouteConfig struct {
	Method      string `mapstructure:"method"`
	Path        string `mapstructure:"path"`
	Price       string `mapstructure:"price"`
	Asset       string `mapstructure:"asset"`
	Network     string `mapstructure:"network"`
	Description string `mapstructure:"description"`
}

// Pricing returns the pricing config for the route.
func (r RouteConfig) Pricing() x402.PricingConfig {
	return x402.PricingConfig{
		Price:       r.Price,
		Asset:       r.Asset,
		Network:     r.Network,
		Description: r.Description,
	}
}

// Load reads path, or x402-gate.yaml from the working directory when path is
// empty. Environment variables prefixed with X402GATE_ override file values,
// e.g. X402GATE_BACKEND_SELLER_ADDRESS.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("x402-gate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("X402GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("backend.facilitator_url", "https://x402.org/facilitator")
	v.SetDefault("backend.seller_address", "")
	v.SetDefault("backend.default_asset", x402.DefaultAsset)
	v.SetDefault("backend.default_network", x402.DefaultNetwork)
	v.SetDefault("backend.requirement_ttl", x402.DefaultRequirementTTL)
	v.SetDefault("backend.verify_timeout", x402.DefaultVerifyTimeout)
	v.SetDefault("backend.max_retries", 2)
	v.SetDefault("backend.authorization", "")
	v.SetDefault("auth.key_id", "")
	v.SetDefault("auth.key_file", "")

	// Read config file (ignore if not found - use defaults)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for i := range cfg.Routes {
		if cfg.Routes[i].Method == "" {
			cfg.Routes[i].Method = http.MethodGet
		}
		cfg.Routes[i].Method = strings.ToUpper(cfg.Routes[i].Method)
	}

	return &cfg, nil
}

// Validate checks the backend and every route's pricing.
func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if c.Auth.KeyID != "" && c.Auth.KeyFile == "" {
		return &x402.ConfigError{Field: "auth.key_file", Err: errors.New("required when auth.key_id is set")}
	}
	for i, r := range c.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return &x402.ConfigError{Field: fmt.Sprintf("routes[%d].path", i), Err: fmt.Errorf("must start with /, got %q", r.Path)}
		}
		if err := r.Pricing().Validate(); err != nil {
			return fmt.Errorf("routes[%d]: %w", i, err)
		}
	}
	return nil
}
