//go:build cgo_sqlite

package storage

// This file is compiled with the cgo_sqlite tag. It links the C SQLite
// library through mattn/go-sqlite3, which is faster on large catalogs.
//
// Build command:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
