package server

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/skywriter/internal/auth"
	"github.com/openmined/skywriter/internal/server/store"
)

const (
	DefaultAddr      = "127.0.0.1:8000"
	DefaultRateLimit = "50-S"
)

type Config struct {
	HTTP     HTTPConfig   `mapstructure:"http"`
	Storage  store.Config `mapstructure:"storage"`
	Auth     auth.Config  `mapstructure:"auth"`
	LogLevel string       `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
	RateLimit string `mapstructure:"rate_limit"`
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return fmt.Errorf("http `cert_file` and `key_file` must be set together")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel accepts debug, info, warn and error. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid `log_level` %q", level)
	}
	return l, nil
}
