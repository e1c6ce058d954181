package storage

import (
	"context"
	"path/filepath"
	"testing"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestAirportRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := nav.Airport{
		ID:         "apt-jfk",
		ICAO:       "KJFK",
		IATA:       strPtr("JFK"),
		Name:       "John F Kennedy Intl",
		Coordinate: geo.Coordinate{Latitude: 40.6413, Longitude: -73.7781},
		Elevation:  intPtr(13),
		Country:    strPtr("US"),
		Region:     strPtr("US-NY"),
		CreatedAt:  1700000000,
	}
	if err := db.UpsertAirport(ctx, a); err != nil {
		t.Fatalf("UpsertAirport: %v", err)
	}

	// Minimal record: every nullable field absent.
	bare := nav.Airport{
		ID:         "apt-bare",
		ICAO:       "ZZZZ",
		Name:       "Nowhere Field",
		Coordinate: geo.Coordinate{Latitude: 1, Longitude: 2},
		CreatedAt:  1700000001,
	}
	if err := db.UpsertAirport(ctx, bare); err != nil {
		t.Fatalf("UpsertAirport bare: %v", err)
	}

	got, err := db.GetAirportByICAO(ctx, "KJFK")
	if err != nil {
		t.Fatalf("GetAirportByICAO: %v", err)
	}
	if got == nil {
		t.Fatal("KJFK not found")
	}
	if got.Name != a.Name || got.ICAO != a.ICAO {
		t.Errorf("got %+v, want %+v", got, a)
	}
	if got.IATA == nil || *got.IATA != "JFK" {
		t.Errorf("IATA = %v, want JFK", got.IATA)
	}
	if got.Elevation == nil || *got.Elevation != 13 {
		t.Errorf("Elevation = %v, want 13", got.Elevation)
	}

	gotBare, err := db.GetAirportByICAO(ctx, "ZZZZ")
	if err != nil {
		t.Fatalf("GetAirportByICAO bare: %v", err)
	}
	if gotBare.IATA != nil || gotBare.Elevation != nil || gotBare.Country != nil || gotBare.Region != nil {
		t.Errorf("bare airport grew values: %+v", gotBare)
	}

	missing, err := db.GetAirportByICAO(ctx, "KLAX")
	if err != nil {
		t.Fatalf("GetAirportByICAO missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown ICAO, got %+v", missing)
	}

	list, err := db.ListAirports(ctx)
	if err != nil {
		t.Fatalf("ListAirports: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListAirports = %d rows, want 2", len(list))
	}
	if list[0].ICAO != "KJFK" || list[1].ICAO != "ZZZZ" {
		t.Errorf("order = [%s %s], want ICAO ascending", list[0].ICAO, list[1].ICAO)
	}
}

func TestAirportUpsertReplaces(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := nav.Airport{
		ID:         "apt-1",
		ICAO:       "KLAX",
		Name:       "Los Angeles",
		Coordinate: geo.Coordinate{Latitude: 33.9, Longitude: -118.4},
		CreatedAt:  100,
	}
	if err := db.UpsertAirport(ctx, a); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	a.Name = "Los Angeles Intl"
	a.IATA = strPtr("LAX")
	if err := db.UpsertAirport(ctx, a); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.GetAirportByICAO(ctx, "KLAX")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Los Angeles Intl" || got.IATA == nil || *got.IATA != "LAX" {
		t.Errorf("update not applied: %+v", got)
	}

	list, _ := db.ListAirports(ctx)
	if len(list) != 1 {
		t.Errorf("upsert created duplicate rows: %d", len(list))
	}
}

func TestWaypointAndNavaidRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	w := nav.Waypoint{
		ID:         "MERIT",
		Name:       "MERIT",
		Coordinate: geo.Coordinate{Latitude: 41.3817, Longitude: -73.1375},
		Region:     strPtr("US-CT"),
		Type:       nav.WaypointFix,
		CreatedAt:  100,
	}
	if err := db.UpsertWaypoint(ctx, w); err != nil {
		t.Fatalf("UpsertWaypoint: %v", err)
	}

	n := nav.Navaid{
		ID:         "JFK-VOR",
		Name:       "Kennedy",
		Type:       nav.NavaidVORDME,
		Coordinate: geo.Coordinate{Latitude: 40.63, Longitude: -73.77},
		Frequency:  func() *float64 { f := 115.9; return &f }(),
		RangeNM:    intPtr(130),
		CreatedAt:  100,
	}
	if err := db.UpsertNavaid(ctx, n); err != nil {
		t.Fatalf("UpsertNavaid: %v", err)
	}

	waypoints, err := db.ListWaypoints(ctx)
	if err != nil {
		t.Fatalf("ListWaypoints: %v", err)
	}
	if len(waypoints) != 1 || waypoints[0].Type != nav.WaypointFix {
		t.Errorf("waypoints = %+v", waypoints)
	}

	navaids, err := db.ListNavaids(ctx)
	if err != nil {
		t.Fatalf("ListNavaids: %v", err)
	}
	if len(navaids) != 1 {
		t.Fatalf("navaids = %d, want 1", len(navaids))
	}
	if navaids[0].Type != nav.NavaidVORDME {
		t.Errorf("Type = %v, want VORDME", navaids[0].Type)
	}
	if navaids[0].Frequency == nil || *navaids[0].Frequency != 115.9 {
		t.Errorf("Frequency = %v, want 115.9", navaids[0].Frequency)
	}
	if navaids[0].RangeNM == nil || *navaids[0].RangeNM != 130 {
		t.Errorf("RangeNM = %v, want 130", navaids[0].RangeNM)
	}
}

func TestAirwaySegmentsOrdered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertAirway(ctx, nav.Airway{ID: "J80", Name: "J80", Type: "JET", CreatedAt: 100}); err != nil {
		t.Fatalf("UpsertAirway: %v", err)
	}

	// Insert out of order; listing must come back in sequence order.
	for _, seq := range []int{2, 0, 1} {
		s := nav.AirwaySegment{
			ID:             "J80-" + string(rune('a'+seq)),
			AirwayID:       "J80",
			FromWaypointID: "W" + string(rune('0'+seq)),
			ToWaypointID:   "W" + string(rune('1'+seq)),
			Sequence:       seq,
			CreatedAt:      100,
		}
		if err := db.UpsertAirwaySegment(ctx, s); err != nil {
			t.Fatalf("UpsertAirwaySegment: %v", err)
		}
	}

	segments, err := db.ListAirwaySegments(ctx, "J80")
	if err != nil {
		t.Fatalf("ListAirwaySegments: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(segments))
	}
	for i, s := range segments {
		if s.Sequence != i {
			t.Errorf("segment %d has sequence %d", i, s.Sequence)
		}
	}
}

func TestAirspaceBoundaryReplaced(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	class := nav.ClassB
	a := nav.Airspace{
		ID:         "nyc-b",
		Name:       "New York Class B",
		Type:       nav.AirspaceTMA,
		Class:      &class,
		UpperLimit: intPtr(10000),
		Boundary: []geo.Coordinate{
			{Latitude: 40, Longitude: -74},
			{Latitude: 41, Longitude: -74},
			{Latitude: 41, Longitude: -73},
		},
		CreatedAt: 100,
	}
	if err := db.UpsertAirspace(ctx, a); err != nil {
		t.Fatalf("UpsertAirspace: %v", err)
	}

	// Re-upsert with a smaller polygon; old vertices must not linger.
	a.Boundary = a.Boundary[:2]
	if err := db.UpsertAirspace(ctx, a); err != nil {
		t.Fatalf("second UpsertAirspace: %v", err)
	}

	got, err := db.GetAirspace(ctx, "nyc-b")
	if err != nil {
		t.Fatalf("GetAirspace: %v", err)
	}
	if got == nil {
		t.Fatal("airspace not found")
	}
	if len(got.Boundary) != 2 {
		t.Errorf("boundary = %d vertices, want 2", len(got.Boundary))
	}
	if got.Class == nil || *got.Class != nav.ClassB {
		t.Errorf("Class = %v, want B", got.Class)
	}
	if got.LowerLimit != nil {
		t.Errorf("LowerLimit = %v, want nil (surface)", got.LowerLimit)
	}
	if got.UpperLimit == nil || *got.UpperLimit != 10000 {
		t.Errorf("UpperLimit = %v, want 10000", got.UpperLimit)
	}
}

func TestDeviceUpsertPreservesIdentity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := nav.Device{
		ID:           "dev-1",
		Fingerprint:  "abc123",
		HardwareInfo: strPtr(`{"hostname":"alpha"}`),
		CreatedAt:    100,
		LastSeen:     100,
	}
	if err := db.UpsertDevice(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same fingerprint seen again later with a new candidate id: the row
	// keeps its original id and created_at, only last_seen moves.
	again := nav.Device{
		ID:          "dev-2",
		Fingerprint: "abc123",
		CreatedAt:   200,
		LastSeen:    200,
	}
	if err := db.UpsertDevice(ctx, again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.GetDeviceByFingerprint(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetDeviceByFingerprint: %v", err)
	}
	if got == nil {
		t.Fatal("device not found")
	}
	if got.ID != "dev-1" {
		t.Errorf("ID = %s, want dev-1 (identity stable across upserts)", got.ID)
	}
	if got.CreatedAt != 100 {
		t.Errorf("CreatedAt = %d, want 100", got.CreatedAt)
	}
	if got.LastSeen != 200 {
		t.Errorf("LastSeen = %d, want 200", got.LastSeen)
	}
	if got.HardwareInfo == nil {
		t.Error("hardware info dropped by nil upsert")
	}

	missing, err := db.GetDeviceByFingerprint(ctx, "nope")
	if err != nil {
		t.Fatalf("missing fingerprint: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown fingerprint, got %+v", missing)
	}
}

func TestSyncMetadata(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	lastSync, count, err := db.GetSyncMetadata(ctx, "airports")
	if err != nil {
		t.Fatalf("GetSyncMetadata: %v", err)
	}
	if lastSync != 0 || count != 0 {
		t.Errorf("unsynced table = (%d, %d), want zeros", lastSync, count)
	}

	if err := db.SetSyncMetadata(ctx, "airports", 1700000000, 42); err != nil {
		t.Fatalf("SetSyncMetadata: %v", err)
	}
	if err := db.SetSyncMetadata(ctx, "airports", 1700000100, 43); err != nil {
		t.Fatalf("SetSyncMetadata update: %v", err)
	}

	lastSync, count, err = db.GetSyncMetadata(ctx, "airports")
	if err != nil {
		t.Fatalf("GetSyncMetadata after set: %v", err)
	}
	if lastSync != 1700000100 || count != 43 {
		t.Errorf("got (%d, %d), want (1700000100, 43)", lastSync, count)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	ctx := context.Background()
	if err := db.UpsertAirport(ctx, nav.Airport{
		ID: "a", ICAO: "KSFO", Name: "San Francisco",
		Coordinate: geo.Coordinate{Latitude: 37.6, Longitude: -122.4},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening runs createSchema against an existing database.
	db2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db2.Close() }()

	got, err := db2.GetAirportByICAO(ctx, "KSFO")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got == nil {
		t.Fatal("data lost across reopen")
	}
}
