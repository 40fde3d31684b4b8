// Package migrations embeds the PostgreSQL document store schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
