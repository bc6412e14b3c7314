// Package database opens the Givehub SQLite store and applies its schema.
//
// Users, role assignments, direct permissions, per-device access tokens and
// password reset tokens all live in one file. Only hashes of passwords and
// token secrets are written to it.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are YYYYMMDD_HHMMSS_name.up.sql files with an optional
// .down.sql partner. Each runs in its own transaction and its checksum is
// recorded, so an edited migration is refused on the next start.
package database
