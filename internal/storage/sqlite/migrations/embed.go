// Package migrations embeds the schema migration files for the document
// metadata store.
package migrations

import "embed"

// FS holds the versioned .up.sql migration files.
//
//go:embed *.sql
var FS embed.FS
