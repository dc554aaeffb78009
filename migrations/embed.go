// Package migrations embeds the portal's schema migrations.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files applied by cmd/portal migrate.
//
//go:embed *.sql
var FS embed.FS
