package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrMigrationModified is returned when an applied migration's up SQL no
// longer matches the checksum recorded when it ran.
var ErrMigrationModified = errors.New("applied migration was modified")

// Migration is one up/down pair named YYYYMMDD_HHMMSS_name.{up,down}.sql.
type Migration struct {
	Version  string
	Name     string
	Up       string
	Down     string
	Checksum string
}

// MigrationState pairs a migration with when it was applied.
type MigrationState struct {
	Migration
	AppliedAt time.Time // zero while pending
}

// Applied reports whether the migration has run.
func (s MigrationState) Applied() bool {
	return !s.AppliedAt.IsZero()
}

type appliedRow struct {
	checksum  string
	appliedAt time.Time
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		checksum   TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`

// Migrate applies every pending migration in src, oldest first, each in
// its own transaction. A failed migration is rolled back and stops the
// run; earlier ones stay committed.
func (db *DB) Migrate(ctx context.Context, src fs.FS) error {
	states, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return err
	}
	for _, s := range states {
		if s.Applied() {
			continue
		}
		if err := db.apply(ctx, s.Migration); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", s.Version, s.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration. It is a no-op on
// an empty database.
func (db *DB) Rollback(ctx context.Context, src fs.FS) error {
	states, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return err
	}

	var latest *Migration
	for i := range states {
		if states[i].Applied() {
			latest = &states[i].Migration
		}
	}
	if latest == nil {
		return nil
	}
	if latest.Down == "" {
		return fmt.Errorf("migration %s has no down SQL", latest.Version)
	}

	return db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, latest.Down); err != nil {
			return fmt.Errorf("rolling back %s: %w", latest.Version, err)
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", latest.Version)
		return err
	})
}

// MigrationStatus lists every migration in src with its applied time. It
// fails if an applied migration is missing from src or was edited.
func (db *DB) MigrationStatus(ctx context.Context, src fs.FS) ([]MigrationState, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := LoadMigrations(src)
	if err != nil {
		return nil, err
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		s := MigrationState{Migration: m}
		if row, ok := applied[m.Version]; ok {
			if row.checksum != m.Checksum {
				return nil, fmt.Errorf("%w: %s (%s)", ErrMigrationModified, m.Version, m.Name)
			}
			s.AppliedAt = row.appliedAt
			delete(applied, m.Version)
		}
		states = append(states, s)
	}
	if len(applied) > 0 {
		missing := slices.Sorted(maps.Keys(applied))
		return nil, fmt.Errorf("applied migrations missing from the migration files: %s", strings.Join(missing, ", "))
	}
	return states, nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]appliedRow, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, checksum, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]appliedRow)
	for rows.Next() {
		var version, at string
		var row appliedRow
		if err := rows.Scan(&version, &row.checksum, &at); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		row.appliedAt, _ = time.Parse(time.RFC3339, at) //nolint:errcheck // written by apply
		applied[version] = row
	}
	return applied, rows.Err()
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	return db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
			m.Version, m.Name, m.Checksum, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("recording migration: %w", err)
		}
		return nil
	})
}

// LoadMigrations reads the *.sql files at the root of src. Files that do
// not follow the naming scheme are ignored; a down file without an up
// file is an error.
func LoadMigrations(src fs.FS) ([]Migration, error) {
	if src == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, up, ok := ParseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(src, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.Up = string(body)
			sum := sha256.Sum256(body)
			m.Checksum = hex.EncodeToString(sum[:])
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// ParseMigrationFilename splits "20260301_090100_access_tokens.up.sql"
// into version "20260301_090100", name "access_tokens" and up=true.
func ParseMigrationFilename(filename string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}
	if b, isUp := strings.CutSuffix(base, ".up"); isUp {
		base, up = b, true
	} else if b, isDown := strings.CutSuffix(base, ".down"); isDown {
		base = b
	} else {
		return "", "", false, false
	}

	date, rest, found := strings.Cut(base, "_")
	if !found || len(date) != 8 || !isDigits(date) {
		return "", "", false, false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if len(clock) != 6 || !isDigits(clock) {
		return "", "", false, false
	}
	if name == "" {
		name = date + "_" + clock
	}
	return date + "_" + clock, name, up, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
