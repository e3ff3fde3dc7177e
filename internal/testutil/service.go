package testutil

import (
	"testing"

	"well-go/internal/database"
	"well-go/internal/well"
)

// ServiceFixture bundles a WellService with the stubs behind it.
type ServiceFixture struct {
	Service   *well.WellService
	DB        *database.SQLiteDatabase
	Clock     *StubClock
	Completer *StubCompleter
}

// NewTestService creates a WellService on an in-memory database with a fixed
// clock, sequential IDs and a completer answering InsightJSON. The database
// doubles as the insight cache store.
func NewTestService(t *testing.T, opts ...well.Option) *ServiceFixture {
	t.Helper()

	db := NewTestDatabase(t)
	clock := FixedClock()
	completer := NewStubCompleter(InsightJSON)
	svc := well.NewWellService(db, db, completer, well.NewNopLogger(), clock, NewStubIDGenerator(), opts...)

	return &ServiceFixture{Service: svc, DB: db, Clock: clock, Completer: completer}
}
