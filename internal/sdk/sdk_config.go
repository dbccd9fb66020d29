package sdk

import (
	"fmt"
	"net/url"
	"time"

	"github.com/openmined/skywriter/internal/utils"
)

const DefaultServerURL = "http://127.0.0.1:8000"

type Config struct {
	ServerURL string        // ServerURL is required
	Secret    string        // Secret is optional, requests go unsigned without it
	DeviceID  string        // DeviceID defaults to the machine id
	TokenTTL  time.Duration // TokenTTL defaults to one minute
	Timeout   time.Duration // Timeout is optional, zero leaves it to the context
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServerURL
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("sdk: invalid server url %q: %w", c.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("sdk: server url %q must be http or https", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("sdk: server url %q has no host", c.ServerURL)
	}

	if c.DeviceID == "" {
		c.DeviceID = utils.HWID
	}
	return nil
}
