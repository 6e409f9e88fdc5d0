// Package migrations embeds the SQLite schema migrations.
package migrations

import "embed"

// FS holds every *.sql migration shipped with the binary
//
//go:embed *.sql
var FS embed.FS
