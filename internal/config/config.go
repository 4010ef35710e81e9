// Package config loads SoilSense settings from defaults, an optional YAML file
// and SOILSENSE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. SOILSENSE_DATABASE_URL.
const EnvPrefix = "SOILSENSE"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Model    ModelConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// ModelConfig locates the fertility model. Both fields empty selects the
// rule engine.
type ModelConfig struct {
	Path          string
	RemoteURL     string
	RemoteTimeout time.Duration
	RemoteRPS     float64
}

type AuthConfig struct {
	JWTSecret  string
	JWKSDomain string
	Audience   string
	TokenTTL   time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("model.path", "")
	v.SetDefault("model.remote_url", "")
	v.SetDefault("model.remote_timeout", "5s")
	v.SetDefault("model.remote_rps", 20)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwks_domain", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the configuration. path may be empty; a named file that cannot
// be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			IdleTimeout:  v.GetDuration("server.idle_timeout"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
		Model: ModelConfig{
			Path:          v.GetString("model.path"),
			RemoteURL:     v.GetString("model.remote_url"),
			RemoteTimeout: v.GetDuration("model.remote_timeout"),
			RemoteRPS:     v.GetFloat64("model.remote_rps"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("auth.jwt_secret"),
			JWKSDomain: v.GetString("auth.jwks_domain"),
			Audience:   v.GetString("auth.audience"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings shared by every binary.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, errors.New("database.max_conns must not be negative"))
	}
	if c.Model.RemoteTimeout <= 0 {
		errs = append(errs, errors.New("model.remote_timeout must be positive"))
	}
	if c.Model.RemoteRPS <= 0 {
		errs = append(errs, errors.New("model.remote_rps must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateServer checks the settings the API server cannot start without.
func (c *Config) ValidateServer() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required (SOILSENSE_DATABASE_URL)")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSDomain == "" {
		return errors.New("one of auth.jwt_secret or auth.jwks_domain is required")
	}
	return nil
}
