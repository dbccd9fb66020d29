// Package db opens the SQLite databases used for local bookkeeping.
package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/skywriter/internal/utils"
)

const MemoryPath = ":memory:"

const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA synchronous=NORMAL;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

type options struct {
	path         string
	schema       []string
	maxOpenConns int
}

type Option func(*options)

// WithPath sets the database file. MemoryPath keeps everything in memory.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithSchema adds statements run once after the connection is configured.
// They must be idempotent (CREATE ... IF NOT EXISTS).
func WithSchema(stmts ...string) Option {
	return func(o *options) {
		o.schema = append(o.schema, stmts...)
	}
}

func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

// Open connects to SQLite with the configured pragmas and schema applied.
func Open(opts ...Option) (*sqlx.DB, error) {
	o := &options{path: MemoryPath}
	for _, opt := range opts {
		opt(o)
	}

	dsn := MemoryPath
	if o.path != MemoryPath {
		path, err := utils.ResolvePath(o.path)
		if err != nil {
			return nil, fmt.Errorf("db: resolve path: %w", err)
		}
		if err := utils.EnsureParent(path); err != nil {
			return nil, fmt.Errorf("db: ensure parent directory: %w", err)
		}
		o.path = path
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", path)
	} else {
		// every connection to :memory: is a separate database
		o.maxOpenConns = 1
	}

	slog.Debug("db open", "driver", driverID, "path", o.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}

	if _, err := db.Exec(defaultPragma); err != nil {
		db.Close()
		return nil, fmt.Errorf("db: set pragmas: %w", err)
	}

	for _, stmt := range o.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("db: apply schema: %w", err)
		}
	}

	return db, nil
}
