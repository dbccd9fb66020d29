package auth

import (
	"fmt"
	"time"
)

const (
	DefaultIssuer   = "skywriter"
	DefaultTokenTTL = time.Minute
	minSecretLength = 16
)

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Secret == "" {
		return fmt.Errorf("auth `secret` is required when auth is enabled")
	}
	if len(c.Secret) < minSecretLength {
		return fmt.Errorf("auth `secret` must be at least %d characters", minSecretLength)
	}
	return nil
}
