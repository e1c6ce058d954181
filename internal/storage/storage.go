// Package storage provides persistent storage for navigational reference
// data and registered devices. SQLite is the default embedded backend;
// PostgreSQL is available for shared deployments, and ClickHouse records the
// query audit trail.
package storage

import (
	"context"
	"fmt"

	"aerobase/internal/nav"
)

// Backend selects the primary database engine.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config holds connection settings for the primary database and the
// optional audit sink.
type Config struct {
	Backend    Backend
	SQLitePath string
	Postgres   PostgresConfig
	Audit      AuditConfig
}

// DefaultConfig returns a configuration with default local development
// settings: an embedded SQLite file next to the binary.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendSQLite,
		SQLitePath: "aerobase.db",
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "aerobase",
			User:     "aerobase",
			Password: "aerobase",
		},
		Audit: AuditConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "aerobase",
			User:     "default",
			Password: "",
		},
	}
}

// Gateway is the persistence surface the rest of the system depends on.
// Both backends implement it; it also satisfies the spatial engine's Loader.
type Gateway interface {
	ListAirports(ctx context.Context) ([]nav.Airport, error)
	ListWaypoints(ctx context.Context) ([]nav.Waypoint, error)
	ListNavaids(ctx context.Context) ([]nav.Navaid, error)

	GetAirportByICAO(ctx context.Context, icao string) (*nav.Airport, error)
	UpsertAirport(ctx context.Context, a nav.Airport) error
	UpsertWaypoint(ctx context.Context, w nav.Waypoint) error
	UpsertNavaid(ctx context.Context, n nav.Navaid) error

	UpsertAirway(ctx context.Context, a nav.Airway) error
	UpsertAirwaySegment(ctx context.Context, s nav.AirwaySegment) error
	ListAirwaySegments(ctx context.Context, airwayID string) ([]nav.AirwaySegment, error)

	UpsertAirspace(ctx context.Context, a nav.Airspace) error
	GetAirspace(ctx context.Context, id string) (*nav.Airspace, error)

	GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*nav.Device, error)
	UpsertDevice(ctx context.Context, d nav.Device) error

	SetSyncMetadata(ctx context.Context, table string, lastSync int64, recordCount int) error
	GetSyncMetadata(ctx context.Context, table string) (lastSync int64, recordCount int, err error)

	Close() error
}

// Open opens the configured primary backend.
func Open(ctx context.Context, cfg Config) (Gateway, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return db, nil
	case BackendPostgres:
		db, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
