// Package sync runs reconciliation passes over a mapping table: fingerprint
// both sides, decide per file, then push or pull.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/mapping"
	"github.com/openmined/skywriter/internal/reconcile"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

var ErrPassRunning = errors.New("sync: pass already running")

type Options struct {
	Workers  int
	TieBreak reconcile.TieBreak
	Ignore   *mapping.IgnoreList
}

// Engine holds everything a pass needs. It keeps no state between passes.
type Engine struct {
	table   *mapping.Table
	remote  Remote
	fp      *fileinfo.Fingerprinter
	decider reconcile.Decider
	ignore  *mapping.IgnoreList
	workers int
	locks   *keyLock
	muPass  sync.Mutex
	skipped atomic.Int64
}

func NewEngine(table *mapping.Table, remote Remote, fp *fileinfo.Fingerprinter, opts Options) (*Engine, error) {
	if table == nil || remote == nil || fp == nil {
		return nil, errors.New("sync: engine needs a mapping table, a remote and a fingerprinter")
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.TieBreak == "" {
		opts.TieBreak = reconcile.LocalWins
	}
	if err := opts.TieBreak.Validate(); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	if opts.Ignore == nil {
		opts.Ignore = mapping.NewIgnoreList()
	}

	e := &Engine{
		table:   table,
		remote:  remote,
		fp:      fp,
		decider: reconcile.Decider{TieBreak: opts.TieBreak},
		ignore:  opts.Ignore,
		workers: opts.Workers,
		locks:   newKeyLock(),
	}

	fp.OnSkip = func(path string, err error) {
		e.skipped.Add(1)
		slog.Warn("sync skip", "path", path, "error", err)
	}
	return e, nil
}

// RunPass fingerprints every mapping, decides and executes the transfers.
// Failures of single mappings or files land in the report; the returned error
// is only set when the pass itself could not complete.
func (e *Engine) RunPass(ctx context.Context) (*PassReport, error) {
	if !e.muPass.TryLock() {
		return nil, ErrPassRunning
	}
	defer e.muPass.Unlock()

	e.skipped.Store(0)
	report := &PassReport{StartedAt: time.Now()}

	tPlan := time.Now()
	outcomes := e.plan(ctx, report)
	tsPlan := time.Since(tPlan)

	tExec := time.Now()
	e.execute(ctx, outcomes, report)
	tsExec := time.Since(tExec)

	report.Outcomes = outcomes
	report.Skipped += int(e.skipped.Load())
	report.Duration = time.Since(report.StartedAt)

	slog.Info("sync pass",
		"mappings", e.table.Len(),
		"pushed", report.Pushed,
		"pulled", report.Pulled,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"failed", report.Failed(),
		"bytes", humanize.Bytes(uint64(report.Bytes)),
		"tsPlan", tsPlan,
		"tsExec", tsExec,
		"tsTotal", report.Duration,
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// plan fingerprints all mappings concurrently and returns the outcomes in
// mapping order.
func (e *Engine) plan(ctx context.Context, report *PassReport) []reconcile.Outcome {
	all := e.table.All()
	planned := make([][]reconcile.Outcome, len(all))
	failures := make([]*Failure, len(all))

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, m := range all {
		g.Go(func() error {
			if ctx.Err() != nil {
				failures[i] = &Failure{Stage: StagePlan, LocalPath: m.Local, RemotePath: m.Remote, Err: ctx.Err()}
				return nil
			}

			var outcomes []reconcile.Outcome
			var err error
			switch m.Kind {
			case mapping.KindFile:
				outcomes, err = e.planFile(ctx, m)
			case mapping.KindDirectory:
				outcomes, err = e.planDirectory(ctx, m)
			}

			if err != nil {
				var probeErr *fileinfo.ProbeError
				if errors.As(err, &probeErr) {
					e.skipped.Add(1)
					slog.Warn("sync skip", "mapping", m, "error", err)
					return nil
				}
				slog.Error("sync plan", "mapping", m, "error", err)
				failures[i] = &Failure{Stage: StagePlan, LocalPath: m.Local, RemotePath: m.Remote, Err: err}
				return nil
			}
			planned[i] = outcomes
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	var outcomes []reconcile.Outcome
	for i := range all {
		if failures[i] != nil {
			report.Failures = append(report.Failures, *failures[i])
			continue
		}
		outcomes = append(outcomes, planned[i]...)
	}
	return outcomes
}

func (e *Engine) planFile(ctx context.Context, m mapping.Mapping) ([]reconcile.Outcome, error) {
	local, err := e.fp.FromPath(m.Local)
	if err != nil {
		return nil, err
	}

	remote, err := e.remote.FileInfo(ctx, m.Remote)
	if err != nil {
		return nil, err
	}

	// both sides are keyed by the remote identity
	local = local.WithPath(m.Remote)
	remote = remote.WithPath(m.Remote)

	return []reconcile.Outcome{e.decider.File(m.Local, m.Remote, local, remote)}, nil
}

func (e *Engine) planDirectory(ctx context.Context, m mapping.Mapping) ([]reconcile.Outcome, error) {
	local, err := e.fp.FromDirectory(m.Local)
	if err != nil {
		return nil, err
	}
	local = local.Rebase(m.Local)

	remote, err := e.remote.DirInfo(ctx, m.Remote)
	if err != nil {
		return nil, err
	}
	if len(remote.Skipped) > 0 {
		e.skipped.Add(int64(len(remote.Skipped)))
		slog.Warn("sync skip", "mapping", m, "remote", remote.Skipped)
	}

	// a file one side could not fingerprint is unknown, not absent
	unknown := mapset.NewThreadUnsafeSet(local.Skipped...)
	unknown.Append(remote.Skipped...)

	keep := func(id string) bool {
		return !unknown.Contains(id) && !fileinfo.IsTemp(id) && !e.ignore.ShouldIgnore(id) && m.Includes(id)
	}
	return e.decider.Directory(m.Local, m.Remote, local.Files, remote.Files, keep), nil
}

// execute runs every push and pull with at most e.workers in flight.
func (e *Engine) execute(ctx context.Context, outcomes []reconcile.Outcome, report *PassReport) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.workers)

	for _, o := range outcomes {
		if o.Action == reconcile.NoOp {
			report.Unchanged++
			continue
		}

		g.Go(func() error {
			n, stage, err := e.transfer(ctx, o)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("sync", "op", stage, "local", o.LocalPath, "remote", o.RemotePath, "error", err)
				report.Failures = append(report.Failures, Failure{Stage: stage, LocalPath: o.LocalPath, RemotePath: o.RemotePath, Err: err})
				return nil
			}

			report.Bytes += n
			if o.Action == reconcile.Push {
				report.Pushed++
			} else {
				report.Pulled++
			}
			slog.Info("sync", "op", stage, "local", o.LocalPath, "remote", o.RemotePath, "size", humanize.Bytes(uint64(n)))
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

func (e *Engine) transfer(ctx context.Context, o reconcile.Outcome) (int64, Stage, error) {
	stage := StagePush
	if o.Action == reconcile.Pull {
		stage = StagePull
	}

	if err := ctx.Err(); err != nil {
		return 0, stage, err
	}

	unlock := e.locks.Lock("local:"+o.LocalPath, "remote:"+o.RemotePath)
	defer unlock()

	if o.Action == reconcile.Push {
		n, err := Push(ctx, e.remote, o.LocalPath, o.RemotePath)
		return n, stage, err
	}
	n, err := Pull(ctx, e.remote, o.RemotePath, o.LocalPath, o.Remote.Digest)
	return n, stage, err
}
