package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"well-go/internal/database/migrations"
	"well-go/internal/well"
)

// SQLiteDatabase implements well.Database and well.CacheStore using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var (
	_ well.Database   = (*SQLiteDatabase)(nil)
	_ well.CacheStore = (*SQLiteDatabase)(nil)
)

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	return db, nil
}

// Migrate brings the schema up to date.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.Up(s.db)
}

// CheckMigrations returns an error if the schema is not at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Ledger operations

func (s *SQLiteDatabase) AppendRecord(ctx context.Context, r *well.Record) error {
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wellness_records (id, user_id, recorded_at, type, category, metrics, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, unixNanos(r.Timestamp), string(r.Type), r.Category,
		string(metrics), string(metadata), time.Now().UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("record %s: %w", r.ID, well.ErrDuplicateRecord)
		}
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) QueryRecords(ctx context.Context, userID string, filter well.RecordFilter) ([]*well.Record, error) {
	query := `SELECT id, user_id, recorded_at, type, category, metrics, metadata
		FROM wellness_records WHERE user_id = ?`
	args := []any{userID}

	if len(filter.Types) > 0 {
		query += " AND type IN (?" + strings.Repeat(", ?", len(filter.Types)-1) + ")"
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if !filter.From.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, unixNanos(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND recorded_at < ?"
		args = append(args, unixNanos(filter.To))
	}
	query += " ORDER BY recorded_at, seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []*well.Record
	for rows.Next() {
		var (
			r                 well.Record
			recordedAt        int64
			typ               string
			metrics, metadata string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &recordedAt, &typ, &r.Category, &metrics, &metadata); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Timestamp = time.Unix(0, recordedAt).UTC()
		r.Type = well.RecordType(typ)
		if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics of record %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of record %s: %w", r.ID, err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// XP operations

func (s *SQLiteDatabase) GetXP(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, "SELECT total_xp FROM xp_balances WHERE user_id = ?", userID).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading xp balance: %w", err)
	}
	return total, nil
}

func (s *SQLiteDatabase) CreditXP(ctx context.Context, event *well.XPEvent) (int64, error) {
	if event.Awarded <= 0 {
		return 0, fmt.Errorf("xp credit must be positive, got %d", event.Awarded)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := event.CreatedAt.UnixNano()
	var total int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO xp_balances (user_id, total_xp, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET total_xp = total_xp + excluded.total_xp, updated_at = excluded.updated_at
		RETURNING total_xp`,
		event.UserID, event.Awarded, now).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("updating xp balance: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO xp_events (id, user_id, base, multiplier, awarded, label, total_xp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.UserID, event.Base, event.Multiplier, event.Awarded, event.Label, total, now)
	if err != nil {
		return 0, fmt.Errorf("inserting xp event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing xp credit: %w", err)
	}
	event.TotalXP = total
	return total, nil
}

func (s *SQLiteDatabase) ListXPEvents(ctx context.Context, userID string, limit int) ([]*well.XPEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, base, multiplier, awarded, label, total_xp, created_at
		FROM xp_events WHERE user_id = ? ORDER BY seq DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying xp events: %w", err)
	}
	defer rows.Close()

	var events []*well.XPEvent
	for rows.Next() {
		var e well.XPEvent
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Base, &e.Multiplier, &e.Awarded, &e.Label, &e.TotalXP, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning xp event: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating xp events: %w", err)
	}
	return events, nil
}

// Insight cache operations

func (s *SQLiteDatabase) GetEntry(ctx context.Context, key well.CacheKey) (*well.CacheEntry, error) {
	var payload []byte
	var storedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, stored_at FROM insight_cache WHERE user_id = ? AND period = ?",
		key.UserID, string(key.Period)).Scan(&payload, &storedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	return &well.CacheEntry{Key: key, Payload: payload, StoredAt: time.Unix(0, storedAt).UTC()}, nil
}

func (s *SQLiteDatabase) PutEntry(ctx context.Context, entry *well.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insight_cache (user_id, period, payload, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, period) DO UPDATE
		SET payload = excluded.payload, stored_at = excluded.stored_at`,
		entry.Key.UserID, string(entry.Key.Period), entry.Payload, entry.StoredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteEntry(ctx context.Context, key well.CacheKey) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM insight_cache WHERE user_id = ? AND period = ?",
		key.UserID, string(key.Period))
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// unixNanos converts t for the recorded_at column, clamping to the record
// timestamp range so filter bounds far in the past or future stay ordered.
func unixNanos(t time.Time) int64 {
	switch {
	case t.Before(well.MinTimestamp):
		return well.MinTimestamp.UnixNano()
	case t.After(well.MaxTimestamp):
		return well.MaxTimestamp.UnixNano()
	}
	return t.UnixNano()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
