package well

import (
	"context"
	"time"
)

// Database is the durable per-user persistence layer for the ledger and XP state.
// Implementations must make CreditXP atomic: the balance increment and the
// XP event insert commit together or not at all.
type Database interface {
	// Ledger operations

	// AppendRecord stores a validated record. The record's ID must already be set.
	// Returns ErrDuplicateRecord if a record with the same ID exists.
	AppendRecord(ctx context.Context, record *Record) error

	// QueryRecords returns the user's records matching filter, ordered by
	// timestamp ascending and by insertion order for equal timestamps.
	QueryRecords(ctx context.Context, userID string, filter RecordFilter) ([]*Record, error)

	// XP operations

	// GetXP returns the user's total XP, or 0 if the user has never been credited.
	GetXP(ctx context.Context, userID string) (int64, error)

	// CreditXP adds event.Awarded to the user's balance, stores the event with
	// TotalXP set to the new balance, and returns the new balance.
	CreditXP(ctx context.Context, event *XPEvent) (int64, error)

	// ListXPEvents returns up to limit XP events for the user, newest first.
	ListXPEvents(ctx context.Context, userID string, limit int) ([]*XPEvent, error)

	// Close closes the database connection.
	Close() error
}

// XPEvent records one XP credit.
type XPEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Base       int64     `json:"base"`
	Multiplier float64   `json:"multiplier"`
	Awarded    int64     `json:"awarded"`
	Label      string    `json:"label,omitempty"`
	TotalXP    int64     `json:"total_xp"`
	CreatedAt  time.Time `json:"created_at"`
}
