package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// AuditConfig holds ClickHouse connection settings for the query audit
// trail.
type AuditConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// AuditDB records every proximity and flight-plan query for analytics. The
// sink is optional; the service runs without it.
type AuditDB struct {
	conn driver.Conn
}

// OpenAudit opens a connection to ClickHouse and ensures the audit schema.
func OpenAudit(ctx context.Context, cfg AuditConfig) (*AuditDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	db := &AuditDB{conn: conn}
	if err := db.createSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// Close closes the ClickHouse connection.
func (d *AuditDB) Close() error {
	return d.conn.Close()
}

// createSchema creates the audit table.
func (d *AuditDB) createSchema(ctx context.Context) error {
	return d.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS query_audit (
			device_id       LowCardinality(String),
			kind            LowCardinality(String),
			latitude        Float64,
			longitude       Float64,
			radius_nm       Float64,
			result_count    UInt32,
			duration_us     UInt64,
			recorded_at     DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(recorded_at)
		ORDER BY (kind, recorded_at)
		SETTINGS index_granularity = 8192
	`)
}

// AuditRecord is one audited query. Kind names the operation: within,
// nearest, validate or route. Latitude, Longitude and RadiusNM are zero for
// operations without a spatial argument.
type AuditRecord struct {
	DeviceID    string
	Kind        string
	Latitude    float64
	Longitude   float64
	RadiusNM    float64
	ResultCount uint32
	DurationUS  uint64
	RecordedAt  time.Time
}

// Insert stores a single audit record.
func (d *AuditDB) Insert(ctx context.Context, r AuditRecord) error {
	err := d.conn.Exec(ctx, `
		INSERT INTO query_audit (device_id, kind, latitude, longitude, radius_nm, result_count, duration_us, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.DeviceID, r.Kind, r.Latitude, r.Longitude, r.RadiusNM, r.ResultCount, r.DurationUS, r.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// InsertBatch stores multiple audit records efficiently.
func (d *AuditDB) InsertBatch(ctx context.Context, records []AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO query_audit (device_id, kind, latitude, longitude, radius_nm, result_count, duration_us, recorded_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err := batch.Append(r.DeviceID, r.Kind, r.Latitude, r.Longitude,
			r.RadiusNM, r.ResultCount, r.DurationUS, r.RecordedAt)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CountByKind returns audit record counts grouped by operation kind.
func (d *AuditDB) CountByKind(ctx context.Context) (map[string]uint64, error) {
	counts := make(map[string]uint64)
	rows, err := d.conn.Query(ctx, `SELECT kind, count() FROM query_audit GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count uint64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan count by kind: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count by kind: %w", err)
	}
	return counts, nil
}

// Recent returns the most recent audit records, newest first.
func (d *AuditDB) Recent(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(ctx, fmt.Sprintf(`
		SELECT device_id, kind, latitude, longitude, radius_nm, result_count, duration_us, recorded_at
		FROM query_audit ORDER BY recorded_at DESC LIMIT %d
	`, limit))
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		err := rows.Scan(&r.DeviceID, &r.Kind, &r.Latitude, &r.Longitude,
			&r.RadiusNM, &r.ResultCount, &r.DurationUS, &r.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
