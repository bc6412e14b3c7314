// Package migrations holds the Givehub schema, embedded so a fresh
// database can be migrated without the files on disk.
//
//	db.Migrate(ctx, migrations.FS)
package migrations

import "embed"

// FS contains the *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
