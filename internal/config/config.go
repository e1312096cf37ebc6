// Package config loads server settings from defaults, an optional config
// file, a .env file and FLATBLOG_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable: server.port is read
// from FLATBLOG_SERVER_PORT.
const EnvPrefix = "FLATBLOG"

// DevSessionSecret is used when no secret is configured. Cookies signed with
// it can be forged by anyone who has read this file, so Load logs a warning.
const DevSessionSecret = "flatblog-dev-secret-change-me"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Password PasswordConfig `mapstructure:"password"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StorageConfig selects where posts and users live.
type StorageConfig struct {
	// Backend is one of "file", "sqlite" or "memory".
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type SessionConfig struct {
	Secret       string        `mapstructure:"secret"`
	TTL          time.Duration `mapstructure:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PasswordConfig struct {
	Cost int `mapstructure:"cost"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Load reads the configuration. configFile may be empty; when set, it must
// exist and be in a format viper understands (YAML, TOML, JSON...).
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.sqlite_path", "data/flatblog.db")

	v.SetDefault("session.secret", DevSessionSecret)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("password.cost", 12)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the file backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q (want file, sqlite or memory)", c.Storage.Backend)
	}

	if len(c.Session.Secret) < 16 {
		return errors.New("session.secret must be at least 16 characters")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q (want text or json)", c.Log.Format)
	}

	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return fmt.Errorf("password.cost %d outside [4, 31]", c.Password.Cost)
	}
	return nil
}

// UsesDevSecret reports whether the built-in session secret is in use.
func (c *Config) UsesDevSecret() bool {
	return c.Session.Secret == DevSessionSecret
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown log.level %q", l.Level)
	}
	return level, nil
}
