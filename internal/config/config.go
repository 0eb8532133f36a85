// Package config loads server configuration from an optional YAML
// file, PUTBOX_* environment variables, and bound command-line flags,
// in increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	// Listen is the host:port the HTTP server binds.
	Listen string `mapstructure:"listen" validate:"required"`

	// Root is the directory served and written. Resolved to an
	// absolute path during Load.
	Root string `mapstructure:"root" validate:"required"`

	// ChunkSize bounds the buffer used per upload write step.
	ChunkSize int `mapstructure:"chunk_size" validate:"gt=0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// flagKeys maps CLI flag names onto config keys. Flag names follow the
// original command line (--listen, --chunk, --level).
var flagKeys = map[string]string{
	"listen": "listen",
	"root":   "root",
	"chunk":  "chunk_size",
	"level":  "log_level",
}

var validate = validator.New()

// Load builds the effective configuration. configPath may be empty (no
// file, defaults + env + flags only); flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", "127.0.0.1:9999")
	v.SetDefault("root", ".")
	v.SetDefault("chunk_size", 4<<20)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("PUTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	cfg.Root = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config: %s failed %q validation (value: %v)", e.Field(), e.Tag(), e.Value())
		}
		return err
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("config: listen %q is not host:port: %w", c.Listen, err)
	}
	return nil
}

// Level maps the configured log level onto slog.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
