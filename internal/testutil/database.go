package testutil

import (
	"testing"

	"well-go/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// It serves as both the ledger and the insight cache store.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
