//go:build !(cgo && sqlite3_cgo)

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// pure Go build, sqlite compiled to wasm
const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)
