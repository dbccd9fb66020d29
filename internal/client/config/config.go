// Package config is the client configuration: where the remote store lives,
// how passes run and which paths are mapped.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/mapping"
	"github.com/openmined/skywriter/internal/reconcile"
	"github.com/openmined/skywriter/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServerURL = "http://127.0.0.1:8000"
	DefaultWorkers   = 4
	DefaultTieBreak  = reconcile.LocalWins
	DefaultProbe     = fileinfo.ProbeStrict
	maxWorkers       = 64
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigDir   = filepath.Join(home, ".skywriter")
	DefaultConfigPath  = filepath.Join(DefaultConfigDir, "config.yaml")
	DefaultHistoryPath = filepath.Join(DefaultConfigDir, "history.db")
	DefaultLogPath     = filepath.Join(DefaultConfigDir, "logs", "skywriter.log")
	DefaultIgnorePath  = filepath.Join(DefaultConfigDir, "ignore")
)

var ErrNoMappings = errors.New("config: no mappings configured")

type Mappings struct {
	Files       []mapping.Entry `mapstructure:"files" yaml:"files" json:"files"`
	Directories []mapping.Entry `mapstructure:"directories" yaml:"directories" json:"directories"`
}

type Config struct {
	ServerURL    string               `mapstructure:"server_url" yaml:"server_url" json:"server_url"`
	Secret       string               `mapstructure:"secret" yaml:"secret" json:"secret"`
	SyncInterval time.Duration        `mapstructure:"sync_interval" yaml:"sync_interval" json:"sync_interval"`
	Workers      int                  `mapstructure:"workers" yaml:"workers" json:"workers"`
	TieBreak     reconcile.TieBreak   `mapstructure:"tie_break" yaml:"tie_break" json:"tie_break"`
	ProbePolicy  fileinfo.ProbePolicy `mapstructure:"probe_policy" yaml:"probe_policy" json:"probe_policy"`
	HistoryPath  string               `mapstructure:"history_path" yaml:"history_path" json:"history_path"`
	IgnoreFile   string               `mapstructure:"ignore_file" yaml:"ignore_file,omitempty" json:"ignore_file,omitempty"`
	Ignore       []string             `mapstructure:"ignore" yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Mappings     Mappings             `mapstructure:"mappings" yaml:"mappings" json:"mappings"`

	// Path is where the config was read from, never persisted
	Path string `mapstructure:"-" yaml:"-" json:"-"`
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		ServerURL:   DefaultServerURL,
		Workers:     DefaultWorkers,
		TieBreak:    DefaultTieBreak,
		ProbePolicy: DefaultProbe,
		HistoryPath: DefaultHistoryPath,
		IgnoreFile:  DefaultIgnorePath,
		Path:        DefaultConfigPath,
	}
}

// Validate fills defaults, normalizes paths and checks every field.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if err := validateURL(c.ServerURL); err != nil {
		return fmt.Errorf("config: server url: %w", err)
	}

	if c.SyncInterval < 0 {
		return fmt.Errorf("config: sync interval must not be negative, got %s", c.SyncInterval)
	}

	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		return fmt.Errorf("config: workers must be between 1 and %d, got %d", maxWorkers, c.Workers)
	}

	if c.TieBreak == "" {
		c.TieBreak = DefaultTieBreak
	}
	if err := c.TieBreak.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.ProbePolicy == "" {
		c.ProbePolicy = DefaultProbe
	}
	if err := c.ProbePolicy.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.HistoryPath != "" {
		p, err := utils.ResolvePath(c.HistoryPath)
		if err != nil {
			return fmt.Errorf("config: history path: %w", err)
		}
		c.HistoryPath = p
	}

	if c.IgnoreFile != "" {
		p, err := utils.ResolvePath(c.IgnoreFile)
		if err != nil {
			return fmt.Errorf("config: ignore file: %w", err)
		}
		c.IgnoreFile = p
	}

	if c.Path != "" {
		p, err := utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("config: path: %w", err)
		}
		c.Path = p
	}

	if _, err := c.Table(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Table builds the mapping table. It fails with ErrNoMappings when nothing
// is mapped.
func (c *Config) Table() (*mapping.Table, error) {
	table, err := mapping.NewTable(c.Mappings.Files, c.Mappings.Directories)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, ErrNoMappings
	}
	return table, nil
}

// IgnoreList compiles the ignore file and inline rules.
func (c *Config) IgnoreList() *mapping.IgnoreList {
	if c.IgnoreFile == "" {
		return mapping.NewIgnoreList(c.Ignore...)
	}
	return mapping.LoadIgnoreFile(c.IgnoreFile, c.Ignore...)
}

// Save writes the config as YAML to its Path.
func (c *Config) Save() error {
	if c.Path == "" {
		return errors.New("config: no path to save to")
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	// the file carries the shared secret
	return os.WriteFile(c.Path, data, 0o600)
}

// LoadFromFile reads a YAML config without validating it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
