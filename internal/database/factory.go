package database

import (
	"fmt"
	"os"
	"path/filepath"

	"well-go/internal/config"
	"well-go/internal/well"
)

// Store is a ledger database that also holds the insight cache and owns its schema.
type Store interface {
	well.Database
	well.CacheStore

	// Migrate brings the schema up to date.
	Migrate() error

	// CheckMigrations returns an error if the schema is not current.
	CheckMigrations() error
}

var (
	_ Store = (*SQLiteDatabase)(nil)
	_ Store = (*PostgresDatabase)(nil)
)

// NewDatabaseFromConfig creates a Store implementation based on the database config type.
// In-memory databases are migrated on creation since nothing else could have done it.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, "well.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return db, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres database")
		}
		db, err := NewPostgresDatabase(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
