// Package migrations holds the embedded SQLite schema for the wellness ledger.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var files embed.FS

// ErrNotMigrated is returned by Check for a database that has never been migrated.
var ErrNotMigrated = errors.New("database has no schema version")

// schemaObject is a table or trigger the ledger cannot run without.
type schemaObject struct {
	kind, name string
}

var required = []schemaObject{
	{"table", "wellness_records"},
	{"table", "xp_balances"},
	{"table", "xp_events"},
	{"table", "insight_cache"},
	{"trigger", "wellness_records_no_update"},
}

// Check reports whether db is at the newest embedded version and still has
// every required object, including the trigger that keeps records append-only.
// The caller keeps ownership of db.
func Check(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return ErrNotMigrated
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty; a previous migration failed", version)
	}

	latest, err := latestVersion()
	if err != nil {
		return err
	}
	switch {
	case version < latest:
		return fmt.Errorf("schema version %d is behind %d", version, latest)
	case version > latest:
		return fmt.Errorf("schema version %d is newer than this binary (%d)", version, latest)
	}

	return verifyObjects(db)
}

// Up applies every pending migration. Running it on an up-to-date database
// is a no-op.
func Up(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return verifyObjects(db)
}

func verifyObjects(db *sql.DB) error {
	var missing []string
	for _, o := range required {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", o.kind, o.name).Scan(&n)
		if err != nil {
			return fmt.Errorf("looking up %s %s: %w", o.kind, o.name, err)
		}
		if n == 0 {
			missing = append(missing, o.kind+" "+o.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema is missing %v", missing)
	}
	return nil
}

// open does not close the returned Migrate: that would close db.
func open(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("wrapping sqlite connection: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("preparing migrations: %w", err)
	}
	return m, nil
}

func latestVersion() (uint, error) {
	src, err := iofs.New(files, "files")
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}
	defer src.Close()
	return lastVersion(src)
}

// lastVersion walks src to its final migration.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("finding first migration: %w", err)
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
