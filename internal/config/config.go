// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the service.
type Config struct {
	OIDC `mapstructure:",squash"`

	Addr             string        `mapstructure:"addr"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	DatabaseURL      string        `mapstructure:"database_url"`
	RedisURL         string        `mapstructure:"redis_url"`
	LogLevel         string        `mapstructure:"log_level"`
	JWTSigningKey    string        `mapstructure:"jwt_signing_key"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	SessionSweep     time.Duration `mapstructure:"session_sweep_interval"`
	DetailsCacheTTL  time.Duration `mapstructure:"user_details_cache_ttl"`
	TrustForwardAuth bool          `mapstructure:"trust_forward_auth"`
}

// OIDC holds single sign-on settings. SSO is enabled when Issuer is set.
type OIDC struct {
	Issuer       string `mapstructure:"oidc_issuer"`
	ClientID     string `mapstructure:"oidc_client_id"`
	ClientSecret string `mapstructure:"oidc_client_secret"`
	RedirectURL  string `mapstructure:"oidc_redirect_url"`
}

// Enabled reports whether SSO is configured.
func (o OIDC) Enabled() bool {
	return o.Issuer != "" && o.ClientID != ""
}

// MinSigningKeyLen is the shortest JWT signing key serve accepts.
const MinSigningKeyLen = 32

// ErrSigningKey reports a missing or short JWT signing key.
var ErrSigningKey = errors.New("config: JWT_SIGNING_KEY must be set")

// ValidateSigningKey fails unless a signing key of at least MinSigningKeyLen
// bytes is configured.
func (c *Config) ValidateSigningKey() error {
	if len(c.JWTSigningKey) < MinSigningKeyLen {
		return fmt.Errorf("%w to at least %d bytes", ErrSigningKey, MinSigningKeyLen)
	}
	return nil
}

var keys = []string{
	"addr", "metrics_addr", "database_url", "redis_url", "log_level",
	"jwt_signing_key", "token_ttl", "session_ttl", "session_sweep_interval",
	"user_details_cache_ttl", "trust_forward_auth",
	"oidc_issuer", "oidc_client_id", "oidc_client_secret", "oidc_redirect_url",
}

// Load reads envFile (if present) into the process environment and then
// resolves the configuration from environment variables over defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so bind each one explicitly.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("session_sweep_interval", 15*time.Minute)
	v.SetDefault("user_details_cache_ttl", 10*time.Minute)
	v.SetDefault("trust_forward_auth", false)
}
