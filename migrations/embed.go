// Package migrations embeds the money index schema into the binary.
package migrations

import "embed"

// FS holds the SQL migration files, at its root.
//
//go:embed *.sql
var FS embed.FS
