package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool. It implements the same
// Gateway as SQLiteDB for deployments where the navigational corpus is
// shared between hosts.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL and ensures the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &PostgresDB{pool: pool}
	if err := db.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() error {
	d.pool.Close()
	return nil
}

// createSchema creates the PostgreSQL tables.
func (d *PostgresDB) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id              TEXT PRIMARY KEY,
		fingerprint     TEXT UNIQUE NOT NULL,
		hardware_info   TEXT,
		created_at      BIGINT NOT NULL,
		last_seen       BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS airports (
		id              TEXT PRIMARY KEY,
		icao            TEXT UNIQUE NOT NULL,
		iata            TEXT,
		name            TEXT NOT NULL,
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		elevation       INTEGER,
		country         TEXT,
		region          TEXT,
		created_at      BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_airports_location ON airports(latitude, longitude);

	CREATE TABLE IF NOT EXISTS waypoints (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		region          TEXT,
		type            TEXT,
		created_at      BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_waypoints_location ON waypoints(latitude, longitude);

	CREATE TABLE IF NOT EXISTS navaids (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		type            TEXT NOT NULL,
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		frequency       DOUBLE PRECISION,
		range_nm        INTEGER,
		elevation       INTEGER,
		region          TEXT,
		created_at      BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_navaids_location ON navaids(latitude, longitude);

	CREATE TABLE IF NOT EXISTS airways (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		type            TEXT NOT NULL,
		min_altitude    INTEGER,
		max_altitude    INTEGER,
		created_at      BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS airway_segments (
		id                  TEXT PRIMARY KEY,
		airway_id           TEXT NOT NULL REFERENCES airways(id) ON DELETE CASCADE,
		from_waypoint_id    TEXT NOT NULL,
		to_waypoint_id      TEXT NOT NULL,
		sequence            INTEGER NOT NULL,
		distance            DOUBLE PRECISION,
		created_at          BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_airway_segments_airway ON airway_segments(airway_id);

	CREATE TABLE IF NOT EXISTS airspaces (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		type            TEXT NOT NULL,
		class           TEXT,
		lower_limit     INTEGER,
		upper_limit     INTEGER,
		created_at      BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS airspace_boundaries (
		id              TEXT PRIMARY KEY,
		airspace_id     TEXT NOT NULL REFERENCES airspaces(id) ON DELETE CASCADE,
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		sequence        INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_airspace_boundaries_airspace ON airspace_boundaries(airspace_id);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		table_name      TEXT PRIMARY KEY,
		last_sync       BIGINT NOT NULL,
		record_count    INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := d.pool.Exec(ctx, schema)
	return err
}

// ListAirports returns all airports.
func (d *PostgresDB) ListAirports(ctx context.Context) ([]nav.Airport, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, icao, iata, name, latitude, longitude, elevation, country, region, created_at
		FROM airports ORDER BY icao
	`)
	if err != nil {
		return nil, fmt.Errorf("list airports: %w", err)
	}
	defer rows.Close()

	var airports []nav.Airport
	for rows.Next() {
		var a nav.Airport
		err := rows.Scan(&a.ID, &a.ICAO, &a.IATA, &a.Name,
			&a.Coordinate.Latitude, &a.Coordinate.Longitude,
			&a.Elevation, &a.Country, &a.Region, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan airport: %w", err)
		}
		airports = append(airports, a)
	}
	return airports, rows.Err()
}

// GetAirportByICAO returns the airport with the given ICAO code, or nil.
func (d *PostgresDB) GetAirportByICAO(ctx context.Context, icao string) (*nav.Airport, error) {
	var a nav.Airport
	err := d.pool.QueryRow(ctx, `
		SELECT id, icao, iata, name, latitude, longitude, elevation, country, region, created_at
		FROM airports WHERE icao = $1
	`, icao).Scan(&a.ID, &a.ICAO, &a.IATA, &a.Name,
		&a.Coordinate.Latitude, &a.Coordinate.Longitude,
		&a.Elevation, &a.Country, &a.Region, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get airport %s: %w", icao, err)
	}
	return &a, nil
}

// UpsertAirport inserts or updates an airport, keyed by ICAO.
func (d *PostgresDB) UpsertAirport(ctx context.Context, a nav.Airport) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO airports (id, icao, iata, name, latitude, longitude, elevation, country, region, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (icao) DO UPDATE SET
			iata = EXCLUDED.iata,
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			elevation = EXCLUDED.elevation,
			country = EXCLUDED.country,
			region = EXCLUDED.region
	`, a.ID, a.ICAO, a.IATA, a.Name, a.Coordinate.Latitude, a.Coordinate.Longitude,
		a.Elevation, a.Country, a.Region, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airport %s: %w", a.ICAO, err)
	}
	return nil
}

// ListWaypoints returns all waypoints.
func (d *PostgresDB) ListWaypoints(ctx context.Context) ([]nav.Waypoint, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, latitude, longitude, region, type, created_at
		FROM waypoints ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list waypoints: %w", err)
	}
	defer rows.Close()

	var waypoints []nav.Waypoint
	for rows.Next() {
		var w nav.Waypoint
		var typ *string
		err := rows.Scan(&w.ID, &w.Name, &w.Coordinate.Latitude, &w.Coordinate.Longitude,
			&w.Region, &typ, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		if typ != nil {
			w.Type = nav.ParseWaypointType(*typ)
		} else {
			w.Type = nav.WaypointOther
		}
		waypoints = append(waypoints, w)
	}
	return waypoints, rows.Err()
}

// UpsertWaypoint inserts or updates a waypoint.
func (d *PostgresDB) UpsertWaypoint(ctx context.Context, w nav.Waypoint) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO waypoints (id, name, latitude, longitude, region, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			region = EXCLUDED.region,
			type = EXCLUDED.type
	`, w.ID, w.Name, w.Coordinate.Latitude, w.Coordinate.Longitude,
		w.Region, string(w.Type), w.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert waypoint %s: %w", w.ID, err)
	}
	return nil
}

// ListNavaids returns all navaids.
func (d *PostgresDB) ListNavaids(ctx context.Context) ([]nav.Navaid, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, type, latitude, longitude, frequency, range_nm, elevation, region, created_at
		FROM navaids ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list navaids: %w", err)
	}
	defer rows.Close()

	var navaids []nav.Navaid
	for rows.Next() {
		var n nav.Navaid
		var typ string
		err := rows.Scan(&n.ID, &n.Name, &typ, &n.Coordinate.Latitude, &n.Coordinate.Longitude,
			&n.Frequency, &n.RangeNM, &n.Elevation, &n.Region, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan navaid: %w", err)
		}
		n.Type = nav.ParseNavaidType(typ)
		navaids = append(navaids, n)
	}
	return navaids, rows.Err()
}

// UpsertNavaid inserts or updates a navaid.
func (d *PostgresDB) UpsertNavaid(ctx context.Context, n nav.Navaid) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO navaids (id, name, type, latitude, longitude, frequency, range_nm, elevation, region, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			frequency = EXCLUDED.frequency,
			range_nm = EXCLUDED.range_nm,
			elevation = EXCLUDED.elevation,
			region = EXCLUDED.region
	`, n.ID, n.Name, string(n.Type), n.Coordinate.Latitude, n.Coordinate.Longitude,
		n.Frequency, n.RangeNM, n.Elevation, n.Region, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert navaid %s: %w", n.ID, err)
	}
	return nil
}

// UpsertAirway inserts or updates an airway.
func (d *PostgresDB) UpsertAirway(ctx context.Context, a nav.Airway) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO airways (id, name, type, min_altitude, max_altitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			min_altitude = EXCLUDED.min_altitude,
			max_altitude = EXCLUDED.max_altitude
	`, a.ID, a.Name, a.Type, a.MinAltitude, a.MaxAltitude, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airway %s: %w", a.ID, err)
	}
	return nil
}

// UpsertAirwaySegment inserts or updates a single airway leg.
func (d *PostgresDB) UpsertAirwaySegment(ctx context.Context, s nav.AirwaySegment) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO airway_segments (id, airway_id, from_waypoint_id, to_waypoint_id, sequence, distance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			airway_id = EXCLUDED.airway_id,
			from_waypoint_id = EXCLUDED.from_waypoint_id,
			to_waypoint_id = EXCLUDED.to_waypoint_id,
			sequence = EXCLUDED.sequence,
			distance = EXCLUDED.distance
	`, s.ID, s.AirwayID, s.FromWaypointID, s.ToWaypointID, s.Sequence, s.DistanceNM, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airway segment %s: %w", s.ID, err)
	}
	return nil
}

// ListAirwaySegments returns the legs of an airway in sequence order.
func (d *PostgresDB) ListAirwaySegments(ctx context.Context, airwayID string) ([]nav.AirwaySegment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, airway_id, from_waypoint_id, to_waypoint_id, sequence, distance, created_at
		FROM airway_segments WHERE airway_id = $1 ORDER BY sequence
	`, airwayID)
	if err != nil {
		return nil, fmt.Errorf("list airway segments: %w", err)
	}
	defer rows.Close()

	var segments []nav.AirwaySegment
	for rows.Next() {
		var s nav.AirwaySegment
		err := rows.Scan(&s.ID, &s.AirwayID, &s.FromWaypointID, &s.ToWaypointID,
			&s.Sequence, &s.DistanceNM, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan airway segment: %w", err)
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// UpsertAirspace inserts or updates an airspace and replaces its boundary
// polygon in one transaction.
func (d *PostgresDB) UpsertAirspace(ctx context.Context, a nav.Airspace) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var class *string
	if a.Class != nil {
		s := string(*a.Class)
		class = &s
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO airspaces (id, name, type, class, lower_limit, upper_limit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			class = EXCLUDED.class,
			lower_limit = EXCLUDED.lower_limit,
			upper_limit = EXCLUDED.upper_limit
	`, a.ID, a.Name, string(a.Type), class, a.LowerLimit, a.UpperLimit, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airspace %s: %w", a.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM airspace_boundaries WHERE airspace_id = $1`, a.ID); err != nil {
		return fmt.Errorf("clear boundary %s: %w", a.ID, err)
	}
	for i, v := range a.Boundary {
		_, err := tx.Exec(ctx, `
			INSERT INTO airspace_boundaries (id, airspace_id, latitude, longitude, sequence)
			VALUES ($1, $2, $3, $4, $5)
		`, fmt.Sprintf("%s-%d", a.ID, i), a.ID, v.Latitude, v.Longitude, i)
		if err != nil {
			return fmt.Errorf("insert boundary vertex %s/%d: %w", a.ID, i, err)
		}
	}

	return tx.Commit(ctx)
}

// GetAirspace returns an airspace with its boundary polygon, or nil.
func (d *PostgresDB) GetAirspace(ctx context.Context, id string) (*nav.Airspace, error) {
	var a nav.Airspace
	var typ string
	var class *string

	err := d.pool.QueryRow(ctx, `
		SELECT id, name, type, class, lower_limit, upper_limit, created_at
		FROM airspaces WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &typ, &class, &a.LowerLimit, &a.UpperLimit, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get airspace %s: %w", id, err)
	}

	a.Type = nav.AirspaceType(typ)
	if class != nil {
		c := nav.AirspaceClass(*class)
		a.Class = &c
	}

	rows, err := d.pool.Query(ctx, `
		SELECT latitude, longitude FROM airspace_boundaries
		WHERE airspace_id = $1 ORDER BY sequence
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get boundary %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var v geo.Coordinate
		if err := rows.Scan(&v.Latitude, &v.Longitude); err != nil {
			return nil, fmt.Errorf("scan boundary vertex: %w", err)
		}
		a.Boundary = append(a.Boundary, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDeviceByFingerprint returns the device with the given fingerprint, or nil.
func (d *PostgresDB) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*nav.Device, error) {
	var dev nav.Device
	err := d.pool.QueryRow(ctx, `
		SELECT id, fingerprint, hardware_info, created_at, last_seen
		FROM devices WHERE fingerprint = $1
	`, fingerprint).Scan(&dev.ID, &dev.Fingerprint, &dev.HardwareInfo, &dev.CreatedAt, &dev.LastSeen)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &dev, nil
}

// UpsertDevice inserts a device or refreshes an existing registration.
func (d *PostgresDB) UpsertDevice(ctx context.Context, dev nav.Device) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO devices (id, fingerprint, hardware_info, created_at, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE SET
			hardware_info = COALESCE(EXCLUDED.hardware_info, devices.hardware_info),
			last_seen = EXCLUDED.last_seen
	`, dev.ID, dev.Fingerprint, dev.HardwareInfo, dev.CreatedAt, dev.LastSeen)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// SetSyncMetadata records the last sync time and record count for a table.
func (d *PostgresDB) SetSyncMetadata(ctx context.Context, table string, lastSync int64, recordCount int) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO sync_metadata (table_name, last_sync, record_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (table_name) DO UPDATE SET
			last_sync = EXCLUDED.last_sync,
			record_count = EXCLUDED.record_count
	`, table, lastSync, recordCount)
	if err != nil {
		return fmt.Errorf("set sync metadata %s: %w", table, err)
	}
	return nil
}

// GetSyncMetadata returns the last sync time and record count for a table.
func (d *PostgresDB) GetSyncMetadata(ctx context.Context, table string) (int64, int, error) {
	var lastSync int64
	var recordCount int

	err := d.pool.QueryRow(ctx, `
		SELECT last_sync, record_count FROM sync_metadata WHERE table_name = $1
	`, table).Scan(&lastSync, &recordCount)
	if err == pgx.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get sync metadata %s: %w", table, err)
	}
	return lastSync, recordCount, nil
}
