package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aerobase/internal/geo"
	"aerobase/internal/nav"

	_ "modernc.org/sqlite"
)

// schemaVersion is bumped whenever the table layout changes; migrateSchema
// upgrades older databases in place.
const schemaVersion = 1

// SQLiteDB wraps an embedded SQLite database. This is the default backend:
// a single file, no server.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path. Use
// ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

// createSchema creates the database tables and indices.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		fingerprint TEXT UNIQUE NOT NULL,
		hardware_info TEXT,
		created_at INTEGER NOT NULL,
		last_seen INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS airports (
		id TEXT PRIMARY KEY,
		icao TEXT UNIQUE NOT NULL,
		iata TEXT,
		name TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		elevation INTEGER,
		country TEXT,
		region TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_airports_location ON airports(latitude, longitude);

	CREATE TABLE IF NOT EXISTS waypoints (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		region TEXT,
		type TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_waypoints_location ON waypoints(latitude, longitude);

	CREATE TABLE IF NOT EXISTS navaids (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		frequency REAL,
		range_nm INTEGER,
		elevation INTEGER,
		region TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_navaids_location ON navaids(latitude, longitude);

	CREATE TABLE IF NOT EXISTS airways (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		min_altitude INTEGER,
		max_altitude INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS airway_segments (
		id TEXT PRIMARY KEY,
		airway_id TEXT NOT NULL,
		from_waypoint_id TEXT NOT NULL,
		to_waypoint_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		distance REAL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (airway_id) REFERENCES airways(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_airway_segments_airway ON airway_segments(airway_id);

	CREATE TABLE IF NOT EXISTS airspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		class TEXT,
		lower_limit INTEGER,
		upper_limit INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS airspace_boundaries (
		id TEXT PRIMARY KEY,
		airspace_id TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		sequence INTEGER NOT NULL,
		FOREIGN KEY (airspace_id) REFERENCES airspaces(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_airspace_boundaries_airspace ON airspace_boundaries(airspace_id);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		table_name TEXT PRIMARY KEY,
		last_sync INTEGER NOT NULL,
		record_count INTEGER DEFAULT 0
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return err
	}

	return migrateSchema(db)
}

// migrateSchema upgrades existing databases to the current schema version.
func migrateSchema(db *sql.DB) error {
	var current sql.NullInt64
	err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&current)
	if err != nil {
		return err
	}

	if !current.Valid || current.Int64 < schemaVersion {
		// Version 1 is the baseline; later migrations slot in here.
		_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
			schemaVersion, time.Now().Unix())
		return err
	}

	return nil
}

// ListAirports returns all airports.
func (d *SQLiteDB) ListAirports(ctx context.Context) ([]nav.Airport, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, icao, iata, name, latitude, longitude, elevation, country, region, created_at
		FROM airports ORDER BY icao
	`)
	if err != nil {
		return nil, fmt.Errorf("list airports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var airports []nav.Airport
	for rows.Next() {
		a, err := scanAirport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan airport: %w", err)
		}
		airports = append(airports, a)
	}
	return airports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAirport(row rowScanner) (nav.Airport, error) {
	var a nav.Airport
	var iata, country, region sql.NullString
	var elevation sql.NullInt64

	err := row.Scan(&a.ID, &a.ICAO, &iata, &a.Name,
		&a.Coordinate.Latitude, &a.Coordinate.Longitude,
		&elevation, &country, &region, &a.CreatedAt)
	if err != nil {
		return nav.Airport{}, err
	}

	if iata.Valid {
		a.IATA = &iata.String
	}
	if elevation.Valid {
		v := int(elevation.Int64)
		a.Elevation = &v
	}
	if country.Valid {
		a.Country = &country.String
	}
	if region.Valid {
		a.Region = &region.String
	}
	return a, nil
}

// GetAirportByICAO returns the airport with the given ICAO code, or nil.
func (d *SQLiteDB) GetAirportByICAO(ctx context.Context, icao string) (*nav.Airport, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, icao, iata, name, latitude, longitude, elevation, country, region, created_at
		FROM airports WHERE icao = ?
	`, icao)

	a, err := scanAirport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get airport %s: %w", icao, err)
	}
	return &a, nil
}

// UpsertAirport inserts or updates an airport, keyed by ICAO.
func (d *SQLiteDB) UpsertAirport(ctx context.Context, a nav.Airport) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO airports (id, icao, iata, name, latitude, longitude, elevation, country, region, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (icao) DO UPDATE SET
			iata = excluded.iata,
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			country = excluded.country,
			region = excluded.region
	`, a.ID, a.ICAO, a.IATA, a.Name, a.Coordinate.Latitude, a.Coordinate.Longitude,
		a.Elevation, a.Country, a.Region, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airport %s: %w", a.ICAO, err)
	}
	return nil
}

// ListWaypoints returns all waypoints.
func (d *SQLiteDB) ListWaypoints(ctx context.Context) ([]nav.Waypoint, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, latitude, longitude, region, type, created_at
		FROM waypoints ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list waypoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var waypoints []nav.Waypoint
	for rows.Next() {
		var w nav.Waypoint
		var region, typ sql.NullString

		err := rows.Scan(&w.ID, &w.Name, &w.Coordinate.Latitude, &w.Coordinate.Longitude,
			&region, &typ, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}

		if region.Valid {
			w.Region = &region.String
		}
		w.Type = nav.ParseWaypointType(typ.String)
		waypoints = append(waypoints, w)
	}
	return waypoints, rows.Err()
}

// UpsertWaypoint inserts or updates a waypoint.
func (d *SQLiteDB) UpsertWaypoint(ctx context.Context, w nav.Waypoint) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO waypoints (id, name, latitude, longitude, region, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			region = excluded.region,
			type = excluded.type
	`, w.ID, w.Name, w.Coordinate.Latitude, w.Coordinate.Longitude,
		w.Region, string(w.Type), w.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert waypoint %s: %w", w.ID, err)
	}
	return nil
}

// ListNavaids returns all navaids.
func (d *SQLiteDB) ListNavaids(ctx context.Context) ([]nav.Navaid, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, type, latitude, longitude, frequency, range_nm, elevation, region, created_at
		FROM navaids ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list navaids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var navaids []nav.Navaid
	for rows.Next() {
		var n nav.Navaid
		var typ string
		var frequency sql.NullFloat64
		var rangeNM, elevation sql.NullInt64
		var region sql.NullString

		err := rows.Scan(&n.ID, &n.Name, &typ, &n.Coordinate.Latitude, &n.Coordinate.Longitude,
			&frequency, &rangeNM, &elevation, &region, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan navaid: %w", err)
		}

		n.Type = nav.ParseNavaidType(typ)
		if frequency.Valid {
			n.Frequency = &frequency.Float64
		}
		if rangeNM.Valid {
			v := int(rangeNM.Int64)
			n.RangeNM = &v
		}
		if elevation.Valid {
			v := int(elevation.Int64)
			n.Elevation = &v
		}
		if region.Valid {
			n.Region = &region.String
		}
		navaids = append(navaids, n)
	}
	return navaids, rows.Err()
}

// UpsertNavaid inserts or updates a navaid.
func (d *SQLiteDB) UpsertNavaid(ctx context.Context, n nav.Navaid) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO navaids (id, name, type, latitude, longitude, frequency, range_nm, elevation, region, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			frequency = excluded.frequency,
			range_nm = excluded.range_nm,
			elevation = excluded.elevation,
			region = excluded.region
	`, n.ID, n.Name, string(n.Type), n.Coordinate.Latitude, n.Coordinate.Longitude,
		n.Frequency, n.RangeNM, n.Elevation, n.Region, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert navaid %s: %w", n.ID, err)
	}
	return nil
}

// UpsertAirway inserts or updates an airway.
func (d *SQLiteDB) UpsertAirway(ctx context.Context, a nav.Airway) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO airways (id, name, type, min_altitude, max_altitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			min_altitude = excluded.min_altitude,
			max_altitude = excluded.max_altitude
	`, a.ID, a.Name, a.Type, a.MinAltitude, a.MaxAltitude, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airway %s: %w", a.ID, err)
	}
	return nil
}

// UpsertAirwaySegment inserts or updates a single airway leg.
func (d *SQLiteDB) UpsertAirwaySegment(ctx context.Context, s nav.AirwaySegment) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO airway_segments (id, airway_id, from_waypoint_id, to_waypoint_id, sequence, distance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			airway_id = excluded.airway_id,
			from_waypoint_id = excluded.from_waypoint_id,
			to_waypoint_id = excluded.to_waypoint_id,
			sequence = excluded.sequence,
			distance = excluded.distance
	`, s.ID, s.AirwayID, s.FromWaypointID, s.ToWaypointID, s.Sequence, s.DistanceNM, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airway segment %s: %w", s.ID, err)
	}
	return nil
}

// ListAirwaySegments returns the legs of an airway in sequence order.
func (d *SQLiteDB) ListAirwaySegments(ctx context.Context, airwayID string) ([]nav.AirwaySegment, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, airway_id, from_waypoint_id, to_waypoint_id, sequence, distance, created_at
		FROM airway_segments WHERE airway_id = ? ORDER BY sequence
	`, airwayID)
	if err != nil {
		return nil, fmt.Errorf("list airway segments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var segments []nav.AirwaySegment
	for rows.Next() {
		var s nav.AirwaySegment
		var distance sql.NullFloat64

		err := rows.Scan(&s.ID, &s.AirwayID, &s.FromWaypointID, &s.ToWaypointID,
			&s.Sequence, &distance, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan airway segment: %w", err)
		}
		if distance.Valid {
			s.DistanceNM = &distance.Float64
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// UpsertAirspace inserts or updates an airspace and replaces its boundary
// polygon in one transaction.
func (d *SQLiteDB) UpsertAirspace(ctx context.Context, a nav.Airspace) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var class *string
	if a.Class != nil {
		s := string(*a.Class)
		class = &s
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO airspaces (id, name, type, class, lower_limit, upper_limit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			class = excluded.class,
			lower_limit = excluded.lower_limit,
			upper_limit = excluded.upper_limit
	`, a.ID, a.Name, string(a.Type), class, a.LowerLimit, a.UpperLimit, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert airspace %s: %w", a.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM airspace_boundaries WHERE airspace_id = ?`, a.ID); err != nil {
		return fmt.Errorf("clear boundary %s: %w", a.ID, err)
	}
	for i, v := range a.Boundary {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO airspace_boundaries (id, airspace_id, latitude, longitude, sequence)
			VALUES (?, ?, ?, ?, ?)
		`, fmt.Sprintf("%s-%d", a.ID, i), a.ID, v.Latitude, v.Longitude, i)
		if err != nil {
			return fmt.Errorf("insert boundary vertex %s/%d: %w", a.ID, i, err)
		}
	}

	return tx.Commit()
}

// GetAirspace returns an airspace with its boundary polygon, or nil.
func (d *SQLiteDB) GetAirspace(ctx context.Context, id string) (*nav.Airspace, error) {
	var a nav.Airspace
	var typ string
	var class sql.NullString
	var lower, upper sql.NullInt64

	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, type, class, lower_limit, upper_limit, created_at
		FROM airspaces WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &typ, &class, &lower, &upper, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get airspace %s: %w", id, err)
	}

	a.Type = nav.AirspaceType(typ)
	if class.Valid {
		c := nav.AirspaceClass(class.String)
		a.Class = &c
	}
	if lower.Valid {
		v := int(lower.Int64)
		a.LowerLimit = &v
	}
	if upper.Valid {
		v := int(upper.Int64)
		a.UpperLimit = &v
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT latitude, longitude FROM airspace_boundaries
		WHERE airspace_id = ? ORDER BY sequence
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get boundary %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

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
func (d *SQLiteDB) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*nav.Device, error) {
	var dev nav.Device
	var hardwareInfo sql.NullString

	err := d.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, hardware_info, created_at, last_seen
		FROM devices WHERE fingerprint = ?
	`, fingerprint).Scan(&dev.ID, &dev.Fingerprint, &hardwareInfo, &dev.CreatedAt, &dev.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	if hardwareInfo.Valid {
		dev.HardwareInfo = &hardwareInfo.String
	}
	return &dev, nil
}

// UpsertDevice inserts a device or, when the fingerprint is already known,
// refreshes last_seen and hardware info while preserving id and created_at.
func (d *SQLiteDB) UpsertDevice(ctx context.Context, dev nav.Device) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO devices (id, fingerprint, hardware_info, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			hardware_info = COALESCE(excluded.hardware_info, devices.hardware_info),
			last_seen = excluded.last_seen
	`, dev.ID, dev.Fingerprint, dev.HardwareInfo, dev.CreatedAt, dev.LastSeen)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// SetSyncMetadata records the last sync time and record count for a table.
func (d *SQLiteDB) SetSyncMetadata(ctx context.Context, table string, lastSync int64, recordCount int) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (table_name, last_sync, record_count)
		VALUES (?, ?, ?)
		ON CONFLICT (table_name) DO UPDATE SET
			last_sync = excluded.last_sync,
			record_count = excluded.record_count
	`, table, lastSync, recordCount)
	if err != nil {
		return fmt.Errorf("set sync metadata %s: %w", table, err)
	}
	return nil
}

// GetSyncMetadata returns the last sync time and record count for a table.
// A table never synced reports zero values.
func (d *SQLiteDB) GetSyncMetadata(ctx context.Context, table string) (int64, int, error) {
	var lastSync int64
	var recordCount int

	err := d.db.QueryRowContext(ctx, `
		SELECT last_sync, record_count FROM sync_metadata WHERE table_name = ?
	`, table).Scan(&lastSync, &recordCount)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get sync metadata %s: %w", table, err)
	}
	return lastSync, recordCount, nil
}
