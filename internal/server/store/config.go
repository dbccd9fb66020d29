package store

import (
	"fmt"
	"net/url"
)

type Backend string

const (
	BackendFS Backend = "fs"
	BackendS3 Backend = "s3"
)

type Config struct {
	Backend Backend  `mapstructure:"backend"`
	Root    string   `mapstructure:"root"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "":
		c.Backend = BackendFS
		fallthrough
	case BackendFS:
		if c.Root == "" {
			return fmt.Errorf("storage `root` is required for the fs backend")
		}
	case BackendS3:
		return c.S3.Validate()
	default:
		return fmt.Errorf("storage `backend` must be %q or %q, got %q", BackendFS, BackendS3, c.Backend)
	}
	return nil
}

func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 `bucket` required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 `region` required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("s3 `access_key` and `secret_key` must be set together")
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid s3 endpoint URL %q", c.Endpoint)
		}
	}
	return nil
}
