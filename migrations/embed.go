// Package migrations holds the SQL schema applied by cmd/migrate.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
