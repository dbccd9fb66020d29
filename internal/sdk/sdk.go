// Package sdk is the client side of the remote store's HTTP interface.
package sdk

import (
	"log/slog"
	"strings"

	"github.com/imroc/req/v3"
	"github.com/openmined/skywriter/internal/auth"
	"github.com/openmined/skywriter/internal/utils"
	"github.com/openmined/skywriter/internal/version"
)

// Client exposes the four remote operations. It never retries; a failed
// call fails that one file.
type Client struct {
	client *req.Client
	config *Config
}

func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(strings.TrimRight(config.ServerURL, "/")).
		SetCommonRetryCount(0).
		SetUserAgent(UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonHeader(HeaderDevice, config.DeviceID).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}

	if config.Secret != "" {
		client.OnBeforeRequest(func(c *req.Client, r *req.Request) error {
			token, err := auth.NewToken(config.Secret, config.DeviceID, config.TokenTTL)
			if err != nil {
				return err
			}
			r.SetBearerAuthToken(token)
			return nil
		})
	} else {
		slog.Warn("sdk: no secret configured, requests are unauthenticated")
	}

	slog.Debug("sdk client", "server", config.ServerURL, "device", config.DeviceID, "secret", utils.MaskSecret(config.Secret))

	return &Client{
		client: client,
		config: config,
	}, nil
}

func (c *Client) ServerURL() string {
	return c.config.ServerURL
}
