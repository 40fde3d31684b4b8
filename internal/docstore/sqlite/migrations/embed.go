// Package migrations embeds the SQLite document store schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
