// Package migrations holds the numbered SQL scripts applied by the SQLite store.
// Files are named NNN_name.up.sql and NNN_name.down.sql.
package migrations

import "embed"

// FS is read by the store at open time.
//
//go:embed *.sql
var FS embed.FS
