// Package client wires configuration, the remote SDK, the sync engine and
// the pass history into a runnable client.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/openmined/skywriter/internal/client/config"
	"github.com/openmined/skywriter/internal/client/history"
	"github.com/openmined/skywriter/internal/client/sync"
	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/sdk"
	"github.com/openmined/skywriter/internal/utils"
)

// historyKeep bounds how many passes the history database retains.
const historyKeep = 1000

var ErrPassFailures = errors.New("client: pass finished with failures")

type Client struct {
	config  *config.Config
	sdk     *sdk.Client
	engine  *sync.Engine
	history *history.History
}

// New validates cfg and builds a client. History is optional; an empty
// HistoryPath disables it.
func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}

	remote, err := sdk.New(&sdk.Config{
		ServerURL: cfg.ServerURL,
		Secret:    cfg.Secret,
	})
	if err != nil {
		return nil, fmt.Errorf("create sdk: %w", err)
	}

	engine, err := sync.NewEngine(table, remote, fileinfo.New(osfs.New("/"), cfg.ProbePolicy), sync.Options{
		Workers:  cfg.Workers,
		TieBreak: cfg.TieBreak,
		Ignore:   cfg.IgnoreList(),
	})
	if err != nil {
		return nil, fmt.Errorf("create sync engine: %w", err)
	}

	c := &Client{
		config: cfg,
		sdk:    remote,
		engine: engine,
	}

	if cfg.HistoryPath != "" {
		h, err := history.Open(cfg.HistoryPath)
		if err != nil {
			// history is informational, a pass runs without it
			slog.Warn("history disabled", "path", cfg.HistoryPath, "error", err)
		} else {
			c.history = h
		}
	}

	return c, nil
}

// Run executes a single pass, or passes on the configured interval until ctx
// is done.
func (c *Client) Run(ctx context.Context) error {
	slog.Info("skywriter client start",
		"server", c.config.ServerURL,
		"secret", utils.MaskSecret(c.config.Secret),
		"workers", c.config.Workers,
		"interval", c.config.SyncInterval,
	)

	if c.config.SyncInterval <= 0 {
		report, err := c.RunOnce(ctx)
		if err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("%w: %d failed", ErrPassFailures, report.Failed())
		}
		return nil
	}

	if _, err := c.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("sync pass", "error", err)
	}

	// a timer and not a ticker, a slow pass must not queue up the next ones
	timer := time.NewTimer(c.config.SyncInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("skywriter client stop")
			return nil
		case <-timer.C:
			if _, err := c.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("sync pass", "error", err)
			}
			timer.Reset(c.config.SyncInterval)
		}
	}
}

// RunOnce runs one pass and records it in the history.
func (c *Client) RunOnce(ctx context.Context) (*sync.PassReport, error) {
	report, err := c.engine.RunPass(ctx)
	if report != nil && c.history != nil {
		if _, herr := c.history.Record(ToHistory(report)); herr != nil {
			slog.Warn("history record", "error", herr)
		} else if _, herr := c.history.Prune(historyKeep); herr != nil {
			slog.Warn("history prune", "error", herr)
		}
	}
	return report, err
}

func (c *Client) Close() error {
	if c.history != nil {
		return c.history.Close()
	}
	return nil
}

// ToHistory converts a pass report into its history row.
func ToHistory(r *sync.PassReport) *history.Pass {
	p := &history.Pass{
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Pushed:    r.Pushed,
		Pulled:    r.Pulled,
		Unchanged: r.Unchanged,
		Skipped:   r.Skipped,
		Failed:    r.Failed(),
		Bytes:     r.Bytes,
	}
	for _, f := range r.Failures {
		p.Failures = append(p.Failures, history.Failure{
			Action:     string(f.Stage),
			LocalPath:  f.LocalPath,
			RemotePath: f.RemotePath,
			Error:      f.Err.Error(),
		})
	}
	return p
}
