package api

import (
	"os"
	"time"

	"github.com/cfdpgo/entity/internal/logger"
)

// EnvJWTSecret is the environment variable holding the control
// plane's JWT signing secret, taking precedence over Config.JWT.Secret.
const EnvJWTSecret = "CFDPD_CONTROLPLANE_SECRET"

// Config configures the control-plane REST API HTTP server.
type Config struct {
	// Port is the HTTP port for the API. Default: 8080.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout bounds reading the entire request. Default: 10s.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. Default: 10s.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive idle time. Default: 60s.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// JWTConfig configures token issuance and validation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	// Overridden by the CFDPD_CONTROLPLANE_SECRET environment variable.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// TokenDuration is the bearer token lifetime. Default: 1h.
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration"`
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.JWT.TokenDuration == 0 {
		c.JWT.TokenDuration = time.Hour
	}
}

// JWTSecret returns the configured secret, preferring the environment
// variable over the config file value.
func (c *Config) JWTSecret() string {
	if envSecret := os.Getenv(EnvJWTSecret); envSecret != "" {
		if c.JWT.Secret != "" && c.JWT.Secret != envSecret {
			logger.Warn("JWT secret from environment variable overrides config file value",
				"env_var", EnvJWTSecret)
		}
		return envSecret
	}
	return c.JWT.Secret
}
