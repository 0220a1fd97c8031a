// Package sqlite provides the durable VectorStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Documents and their embeddings live in
// two tables joined 1:1, with embeddings removed by cascade when their document
// is deleted.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.mima/data/mima.db
//
// # Dimensions
//
// The store is opened for one embedding dimension. Embeddings stored with a
// different dimension (from a previously configured model) are reported as
// absent, so those documents show up as pending and are re-embedded by backfill.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
