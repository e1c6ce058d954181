package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"aerobase/internal/flight"
	"aerobase/internal/geo"
	"aerobase/internal/nav"
	"aerobase/internal/storage"
)

func openTestService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "service.db")

	// Open once just to seed, since the service loads its index at open.
	gw, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	seed(t, gw)
	if err := gw.Close(); err != nil {
		t.Fatalf("close gateway: %v", err)
	}

	svc, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func seed(t *testing.T, gw storage.Gateway) {
	t.Helper()
	ctx := context.Background()

	airports := []nav.Airport{
		{ID: "a-jfk", ICAO: "KJFK", Name: "Kennedy", Coordinate: geo.Coordinate{Latitude: 40.6413, Longitude: -73.7781}},
		{ID: "a-lga", ICAO: "KLGA", Name: "LaGuardia", Coordinate: geo.Coordinate{Latitude: 40.7769, Longitude: -73.8740}},
		{ID: "a-lax", ICAO: "KLAX", Name: "Los Angeles", Coordinate: geo.Coordinate{Latitude: 33.9416, Longitude: -118.4085}},
	}
	for _, a := range airports {
		if err := gw.UpsertAirport(ctx, a); err != nil {
			t.Fatalf("seed airport %s: %v", a.ICAO, err)
		}
	}

	if err := gw.UpsertWaypoint(ctx, nav.Waypoint{
		ID: "MERIT", Name: "MERIT", Type: nav.WaypointFix,
		Coordinate: geo.Coordinate{Latitude: 41.3817, Longitude: -73.1375},
	}); err != nil {
		t.Fatalf("seed waypoint: %v", err)
	}

	if err := gw.UpsertNavaid(ctx, nav.Navaid{
		ID: "JFK-VOR", Name: "Kennedy VOR", Type: nav.NavaidVORDME,
		Coordinate: geo.Coordinate{Latitude: 40.63, Longitude: -73.77},
	}); err != nil {
		t.Fatalf("seed navaid: %v", err)
	}
}

func TestFindAirportsWithin(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()
	nyc := geo.Coordinate{Latitude: 40.7, Longitude: -73.9}

	pts, err := svc.FindAirportsWithin(ctx, nyc, 50)
	if err != nil {
		t.Fatalf("FindAirportsWithin: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("got %d airports, want 2 (KJFK, KLGA)", len(pts))
	}
	// Closest first: LaGuardia is nearer to the query point.
	if pts[0].ID != "KLGA" || pts[1].ID != "KJFK" {
		t.Errorf("order = [%s %s], want [KLGA KJFK]", pts[0].ID, pts[1].ID)
	}
	for _, p := range pts {
		if p.Kind != nav.KindAirport {
			t.Errorf("kind filter leaked a %s", p.Kind)
		}
	}
}

func TestFindWithinKinds(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()
	nyc := geo.Coordinate{Latitude: 40.7, Longitude: -73.9}

	waypoints, err := svc.FindWaypointsWithin(ctx, nyc, 100)
	if err != nil {
		t.Fatalf("FindWaypointsWithin: %v", err)
	}
	if len(waypoints) != 1 || waypoints[0].ID != "MERIT" {
		t.Errorf("waypoints = %+v", waypoints)
	}

	navaids, err := svc.FindNavaidsWithin(ctx, nyc, 100)
	if err != nil {
		t.Fatalf("FindNavaidsWithin: %v", err)
	}
	if len(navaids) != 1 || navaids[0].ID != "JFK-VOR" {
		t.Errorf("navaids = %+v", navaids)
	}

	empty, err := svc.FindNavaidsWithin(ctx, geo.Coordinate{Latitude: -45, Longitude: 100}, 10)
	if err != nil {
		t.Fatalf("empty query errored: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty result, got %+v", empty)
	}
}

func TestFindWithinRejectsBadInput(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()

	_, err := svc.FindAirportsWithin(ctx, geo.Coordinate{Latitude: 40.7, Longitude: -73.9}, -1)
	if !errors.Is(err, nav.ErrInvalidInput) {
		t.Errorf("negative radius: err = %v, want ErrInvalidInput", err)
	}

	_, err = svc.FindAirportsWithin(ctx, geo.Coordinate{Latitude: 91, Longitude: 0}, 10)
	if !errors.Is(err, nav.ErrInvalidInput) {
		t.Errorf("bad latitude: err = %v, want ErrInvalidInput", err)
	}
}

func TestNearest(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()

	pt, err := svc.Nearest(ctx, geo.Coordinate{Latitude: 40.64, Longitude: -73.78}, nav.KindAirport)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if pt.ID != "KJFK" {
		t.Errorf("nearest airport = %s, want KJFK", pt.ID)
	}
}

func TestCalculateRoute(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()

	plan := flight.Plan{
		Departure:      "KJFK",
		Destination:    "KLAX",
		CruiseAltitude: 35000,
		CruiseSpeed:    500,
	}
	if err := svc.ValidateFlightPlan(ctx, plan); err != nil {
		t.Fatalf("ValidateFlightPlan: %v", err)
	}

	route, err := svc.CalculateRoute(ctx, plan)
	if err != nil {
		t.Fatalf("CalculateRoute: %v", err)
	}
	if route.EstimatedMinutes != 258 {
		t.Errorf("EstimatedMinutes = %d, want 258", route.EstimatedMinutes)
	}

	// CalculateRoute validates first: an invalid plan never evaluates.
	bad := plan
	bad.Destination = "KJFK"
	if _, err := svc.CalculateRoute(ctx, bad); !errors.Is(err, nav.ErrInvalidInput) {
		t.Errorf("same-airport plan: err = %v, want ErrInvalidInput", err)
	}

	unknown := plan
	unknown.Route = []string{"NOPE"}
	if _, err := svc.CalculateRoute(ctx, unknown); !errors.Is(err, nav.ErrNotFound) {
		t.Errorf("unknown waypoint: err = %v, want ErrNotFound", err)
	}
}

func TestDeviceFingerprint(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()

	first, err := svc.DeviceFingerprint(ctx)
	if err != nil {
		t.Fatalf("DeviceFingerprint: %v", err)
	}
	if first.ID == "" || first.Fingerprint == "" {
		t.Fatalf("incomplete device: %+v", first)
	}

	second, err := svc.DeviceFingerprint(ctx)
	if err != nil {
		t.Fatalf("second DeviceFingerprint: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("device identity changed: %s -> %s", first.ID, second.ID)
	}
}

func TestRefreshPicksUpNewData(t *testing.T) {
	svc := openTestService(t)
	ctx := context.Background()

	if err := svc.Gateway().UpsertAirport(ctx, nav.Airport{
		ID: "a-ord", ICAO: "KORD", Name: "O'Hare",
		Coordinate: geo.Coordinate{Latitude: 41.9786, Longitude: -87.9048},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Not visible until refresh.
	pts, err := svc.FindAirportsWithin(ctx, geo.Coordinate{Latitude: 41.98, Longitude: -87.9}, 20)
	if err != nil {
		t.Fatalf("pre-refresh query: %v", err)
	}
	if len(pts) != 0 {
		t.Errorf("unrefreshed index already sees KORD")
	}

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	pts, err = svc.FindAirportsWithin(ctx, geo.Coordinate{Latitude: 41.98, Longitude: -87.9}, 20)
	if err != nil {
		t.Fatalf("post-refresh query: %v", err)
	}
	if len(pts) != 1 || pts[0].ID != "KORD" {
		t.Errorf("post-refresh = %+v, want KORD", pts)
	}
}
