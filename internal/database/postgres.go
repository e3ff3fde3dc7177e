package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"well-go/internal/well"
)

// recordRow is the PostgreSQL row for a wellness record. Seq orders records
// that share a timestamp by insertion.
type recordRow struct {
	Seq        int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	ID         string         `gorm:"column:id;size:64;uniqueIndex;not null"`
	UserID     string         `gorm:"column:user_id;size:255;not null;index:idx_records_user_time,priority:1"`
	RecordedAt time.Time      `gorm:"column:recorded_at;not null;index:idx_records_user_time,priority:2"`
	Type       string         `gorm:"column:type;size:32;not null"`
	Category   string         `gorm:"column:category;size:64;not null;default:''"`
	Metrics    datatypes.JSON `gorm:"column:metrics;type:jsonb;not null"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
}

func (recordRow) TableName() string { return "wellness_records" }

type xpBalanceRow struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:255"`
	TotalXP   int64     `gorm:"column:total_xp;not null;default:0;check:total_xp >= 0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (xpBalanceRow) TableName() string { return "xp_balances" }

type xpEventRow struct {
	Seq        int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID         string    `gorm:"column:id;size:64;uniqueIndex;not null"`
	UserID     string    `gorm:"column:user_id;size:255;not null;index"`
	Base       int64     `gorm:"column:base;not null"`
	Multiplier float64   `gorm:"column:multiplier;not null"`
	Awarded    int64     `gorm:"column:awarded;not null"`
	Label      string    `gorm:"column:label;not null;default:''"`
	TotalXP    int64     `gorm:"column:total_xp;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (xpEventRow) TableName() string { return "xp_events" }

type cacheRow struct {
	UserID   string    `gorm:"column:user_id;primaryKey;size:255"`
	Period   string    `gorm:"column:period;primaryKey;size:16"`
	Payload  []byte    `gorm:"column:payload;not null"`
	StoredAt time.Time `gorm:"column:stored_at;not null"`
}

func (cacheRow) TableName() string { return "insight_cache" }

var postgresModels = []any{&recordRow{}, &xpBalanceRow{}, &xpEventRow{}, &cacheRow{}}

// PostgresDatabase implements well.Database and well.CacheStore on PostgreSQL through GORM.
type PostgresDatabase struct {
	db *gorm.DB
}

var (
	_ well.Database   = (*PostgresDatabase)(nil)
	_ well.CacheStore = (*PostgresDatabase)(nil)
)

// NewPostgresDatabase connects to the PostgreSQL server at dsn.
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	dsn = strings.TrimSpace(dsn)
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("dsn must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt keeps the migrator off the simple protocol.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &PostgresDatabase{db: db}, nil
}

// Migrate creates or updates the tables.
func (p *PostgresDatabase) Migrate() error {
	if err := p.db.AutoMigrate(postgresModels...); err != nil {
		return fmt.Errorf("migrating postgres schema: %w", err)
	}
	return nil
}

// CheckMigrations returns an error if any table is missing.
func (p *PostgresDatabase) CheckMigrations() error {
	m := p.db.Migrator()
	for _, model := range postgresModels {
		if !m.HasTable(model) {
			return fmt.Errorf("table for %T is missing (needs migration)", model)
		}
	}
	return nil
}

// Ledger operations

func (p *PostgresDatabase) AppendRecord(ctx context.Context, r *well.Record) error {
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	row := &recordRow{
		ID:         r.ID,
		UserID:     r.UserID,
		RecordedAt: r.Timestamp.UTC(),
		Type:       string(r.Type),
		Category:   r.Category,
		Metrics:    datatypes.JSON(metrics),
		Metadata:   datatypes.JSON(metadata),
	}
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("record %s: %w", r.ID, well.ErrDuplicateRecord)
		}
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) QueryRecords(ctx context.Context, userID string, filter well.RecordFilter) ([]*well.Record, error) {
	q := p.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		q = q.Where("type IN ?", types)
	}
	if !filter.From.IsZero() {
		q = q.Where("recorded_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("recorded_at < ?", filter.To.UTC())
	}

	var rows []recordRow
	if err := q.Order("recorded_at, seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}

	records := make([]*well.Record, 0, len(rows))
	for _, row := range rows {
		r := &well.Record{
			ID:        row.ID,
			UserID:    row.UserID,
			Timestamp: row.RecordedAt.UTC(),
			Type:      well.RecordType(row.Type),
			Category:  row.Category,
		}
		if err := json.Unmarshal(row.Metrics, &r.Metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics of record %s: %w", r.ID, err)
		}
		if err := json.Unmarshal(row.Metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of record %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// XP operations

func (p *PostgresDatabase) GetXP(ctx context.Context, userID string) (int64, error) {
	var bal xpBalanceRow
	err := p.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&bal).Error
	if err != nil {
		return 0, fmt.Errorf("reading xp balance: %w", err)
	}
	return bal.TotalXP, nil
}

func (p *PostgresDatabase) CreditXP(ctx context.Context, event *well.XPEvent) (int64, error) {
	if event.Awarded <= 0 {
		return 0, fmt.Errorf("xp credit must be positive, got %d", event.Awarded)
	}

	var total int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal := &xpBalanceRow{UserID: event.UserID, TotalXP: event.Awarded, UpdatedAt: event.CreatedAt}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"total_xp":   gorm.Expr("xp_balances.total_xp + EXCLUDED.total_xp"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).Create(bal).Error
		if err != nil {
			return fmt.Errorf("updating xp balance: %w", err)
		}

		var current xpBalanceRow
		if err := tx.Where("user_id = ?", event.UserID).Take(&current).Error; err != nil {
			return fmt.Errorf("reading xp balance: %w", err)
		}
		total = current.TotalXP

		row := &xpEventRow{
			ID:         event.ID,
			UserID:     event.UserID,
			Base:       event.Base,
			Multiplier: event.Multiplier,
			Awarded:    event.Awarded,
			Label:      event.Label,
			TotalXP:    total,
			CreatedAt:  event.CreatedAt,
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("inserting xp event: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	event.TotalXP = total
	return total, nil
}

func (p *PostgresDatabase) ListXPEvents(ctx context.Context, userID string, limit int) ([]*well.XPEvent, error) {
	var rows []xpEventRow
	err := p.db.WithContext(ctx).Where("user_id = ?", userID).Order("seq DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying xp events: %w", err)
	}
	events := make([]*well.XPEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, &well.XPEvent{
			ID:         row.ID,
			UserID:     row.UserID,
			Base:       row.Base,
			Multiplier: row.Multiplier,
			Awarded:    row.Awarded,
			Label:      row.Label,
			TotalXP:    row.TotalXP,
			CreatedAt:  row.CreatedAt.UTC(),
		})
	}
	return events, nil
}

// Insight cache operations

func (p *PostgresDatabase) GetEntry(ctx context.Context, key well.CacheKey) (*well.CacheEntry, error) {
	var rows []cacheRow
	err := p.db.WithContext(ctx).
		Where("user_id = ? AND period = ?", key.UserID, string(key.Period)).
		Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil // Not found
	}
	return &well.CacheEntry{Key: key, Payload: rows[0].Payload, StoredAt: rows[0].StoredAt.UTC()}, nil
}

func (p *PostgresDatabase) PutEntry(ctx context.Context, entry *well.CacheEntry) error {
	row := &cacheRow{
		UserID:   entry.Key.UserID,
		Period:   string(entry.Key.Period),
		Payload:  entry.Payload,
		StoredAt: entry.StoredAt.UTC(),
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) DeleteEntry(ctx context.Context, key well.CacheKey) error {
	err := p.db.WithContext(ctx).
		Where("user_id = ? AND period = ?", key.UserID, string(key.Period)).
		Delete(&cacheRow{}).Error
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *PostgresDatabase) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("getting connection pool: %w", err)
	}
	return sqlDB.Close()
}
