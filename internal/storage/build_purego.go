//go:build !sqlite_vec

package storage

// The default build uses modernc.org/sqlite, needs no C toolchain, and scores
// chunk embeddings in Go after loading candidate vectors.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite
	DriverName = "sqlite"
	// VectorExtensionAvailable reports whether similarity runs inside SQLite
	VectorExtensionAvailable = false
	// BuildMode is reported by the version command and index status
	BuildMode = "purego"
)
