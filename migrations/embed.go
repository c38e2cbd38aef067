// Package migrations embeds the SQL schema so it can be applied at boot
// regardless of working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory (e.g. 001_initial.sql).
//
//go:embed *.sql
var FS embed.FS
