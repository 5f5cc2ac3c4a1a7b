//go:build sqlite_vec

package storage

// The cgo build links mattn/go-sqlite3 and ranks chunk embeddings with SQL
// cosine distance. Build with:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./cmd/patentsearch
//
// Prefer it when indexing full USPTO weekly archives.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverName               = "sqlite3"
	VectorExtensionAvailable = true
	BuildMode                = "cgo"
)
