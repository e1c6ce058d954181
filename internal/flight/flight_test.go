package flight

import (
	"errors"
	"math"
	"testing"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

// mapResolver is a fixed snapshot for tests.
type mapResolver map[string]nav.Point

func (m mapResolver) Resolve(id string) (nav.Point, bool) {
	p, ok := m[id]
	return p, ok
}

func airportPoint(icao string, lat, lon float64) nav.Point {
	return nav.Point{ID: icao, Name: icao, Kind: nav.KindAirport,
		Coordinate: geo.Coordinate{Latitude: lat, Longitude: lon}}
}

func waypointPoint(id string, lat, lon float64) nav.Point {
	return nav.Point{ID: id, Name: id, Kind: nav.KindWaypoint,
		Coordinate: geo.Coordinate{Latitude: lat, Longitude: lon}}
}

func testResolver() mapResolver {
	return mapResolver{
		"KJFK":  airportPoint("KJFK", 40.6413, -73.7781),
		"KLAX":  airportPoint("KLAX", 33.9416, -118.4085),
		"KORD":  airportPoint("KORD", 41.9786, -87.9048),
		"KDEN":  airportPoint("KDEN", 39.8561, -104.6737),
		"MERIT": waypointPoint("MERIT", 41.3817, -73.1375),
	}
}

func validPlan() Plan {
	return Plan{
		Departure:      "KJFK",
		Destination:    "KLAX",
		CruiseAltitude: 35000,
		CruiseSpeed:    500,
	}
}

func TestValidateAccepts(t *testing.T) {
	r := testResolver()
	if err := Validate(r, validPlan(), DefaultLimits()); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}

	alt := "KDEN"
	plan := validPlan()
	plan.Alternate = &alt
	plan.Route = []string{"MERIT", "KORD"}
	if err := Validate(r, plan, DefaultLimits()); err != nil {
		t.Fatalf("plan with alternate and route rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	r := testResolver()
	klax := "KLAX"
	kden := "KDEN"

	tests := []struct {
		name      string
		mutate    func(*Plan)
		wantCheck string
		wantKind  error
	}{
		{
			name:      "unknown departure",
			mutate:    func(p *Plan) { p.Departure = "XXXX" },
			wantCheck: "departure",
			wantKind:  nav.ErrNotFound,
		},
		{
			name:      "departure is a waypoint",
			mutate:    func(p *Plan) { p.Departure = "MERIT" },
			wantCheck: "departure",
			wantKind:  nav.ErrInvalidInput,
		},
		{
			name:      "unknown destination",
			mutate:    func(p *Plan) { p.Destination = "YYYY" },
			wantCheck: "destination",
			wantKind:  nav.ErrNotFound,
		},
		{
			name:      "departure equals destination",
			mutate:    func(p *Plan) { p.Destination = "KJFK" },
			wantCheck: "destination",
			wantKind:  nav.ErrInvalidInput,
		},
		{
			name:      "unknown alternate",
			mutate:    func(p *Plan) { s := "ZZZZ"; p.Alternate = &s },
			wantCheck: "alternate",
			wantKind:  nav.ErrNotFound,
		},
		{
			name:      "alternate equals destination",
			mutate:    func(p *Plan) { p.Alternate = &klax },
			wantCheck: "alternate",
			wantKind:  nav.ErrInvalidInput,
		},
		{
			name:      "unknown route waypoint",
			mutate:    func(p *Plan) { p.Route = []string{"MERIT", "NOPE"} },
			wantCheck: "route",
			wantKind:  nav.ErrNotFound,
		},
		{
			name:      "zero altitude",
			mutate:    func(p *Plan) { p.CruiseAltitude = 0 },
			wantCheck: "altitude",
			wantKind:  nav.ErrInvalidInput,
		},
		{
			name:      "altitude above ceiling",
			mutate:    func(p *Plan) { p.CruiseAltitude = 60001 },
			wantCheck: "altitude",
			wantKind:  nav.ErrInvalidInput,
		},
		{
			name:      "zero speed",
			mutate:    func(p *Plan) { p.CruiseSpeed = 0 },
			wantCheck: "speed",
			wantKind:  nav.ErrInvalidInput,
		},
		{
			name:      "speed above ceiling",
			mutate:    func(p *Plan) { p.CruiseSpeed = 1001; p.Alternate = &kden },
			wantCheck: "speed",
			wantKind:  nav.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlan()
			tt.mutate(&plan)
			err := Validate(r, plan, DefaultLimits())
			if err == nil {
				t.Fatal("expected rejection, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			if verr.Check != tt.wantCheck {
				t.Errorf("failed check = %q, want %q", verr.Check, tt.wantCheck)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("error kind = %v, want %v", err, tt.wantKind)
			}
		})
	}
}

func TestValidateCheckOrder(t *testing.T) {
	// A plan failing several checks reports the earliest one.
	r := testResolver()
	plan := Plan{
		Departure:      "KJFK",
		Destination:    "KJFK", // fails (b)
		CruiseAltitude: -1,     // would fail (e)
		CruiseSpeed:    0,      // would fail (f)
	}
	err := Validate(r, plan, DefaultLimits())
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Check != "destination" {
		t.Fatalf("err = %v, want destination check failure first", err)
	}
}

func TestEvaluateDirect(t *testing.T) {
	r := testResolver()
	route, err := Evaluate(r, validPlan())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// KJFK -> KLAX is about 2144 nm; at 500 kt that is ceil(257.28) = 258 min.
	if math.Abs(route.TotalDistanceNM-2144) > 2144*0.01 {
		t.Errorf("TotalDistanceNM = %.1f, want 2144 +/- 1%%", route.TotalDistanceNM)
	}
	if route.EstimatedMinutes != 258 {
		t.Errorf("EstimatedMinutes = %d, want 258", route.EstimatedMinutes)
	}
	if len(route.Points) != 2 {
		t.Fatalf("Points = %d, want 2 (departure, destination)", len(route.Points))
	}
	if route.Points[0].ID != "KJFK" || route.Points[1].ID != "KLAX" {
		t.Errorf("point order = [%s %s]", route.Points[0].ID, route.Points[1].ID)
	}
	if route.Points[0].LegDistanceNM != 0 || route.Points[0].ElapsedMinutes != 0 {
		t.Error("departure point should have zero leg distance and elapsed time")
	}
	if route.Points[1].CumulativeNM != route.TotalDistanceNM {
		t.Error("final cumulative distance should equal the total")
	}
}

func TestEvaluateDetourLongerThanDirect(t *testing.T) {
	r := testResolver()

	direct, err := Evaluate(r, validPlan())
	if err != nil {
		t.Fatalf("Evaluate direct: %v", err)
	}

	detour := validPlan()
	detour.Route = []string{"KORD"}
	viaOrd, err := Evaluate(r, detour)
	if err != nil {
		t.Fatalf("Evaluate via KORD: %v", err)
	}

	if viaOrd.TotalDistanceNM <= direct.TotalDistanceNM {
		t.Errorf("detour %.1f nm not longer than direct %.1f nm",
			viaOrd.TotalDistanceNM, direct.TotalDistanceNM)
	}
	if len(viaOrd.Points) != 3 {
		t.Errorf("Points = %d, want 3", len(viaOrd.Points))
	}
}

func TestEvaluateCeilingRounding(t *testing.T) {
	// Two airports exactly one degree of latitude apart on a meridian:
	// 60.04 nm. At 60 kt that is 60.04 minutes -> ceil -> 61, where
	// round-half-up would give 60.
	r := mapResolver{
		"AAAA": airportPoint("AAAA", 0, 0),
		"BBBB": airportPoint("BBBB", 1, 0),
	}
	plan := Plan{Departure: "AAAA", Destination: "BBBB", CruiseAltitude: 10000, CruiseSpeed: 60}
	route, err := Evaluate(r, plan)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if route.EstimatedMinutes != 61 {
		t.Errorf("EstimatedMinutes = %d, want 61 (ceiling policy)", route.EstimatedMinutes)
	}
}

func TestEvaluateUnresolvedWaypoint(t *testing.T) {
	r := testResolver()
	plan := validPlan()
	plan.Route = []string{"GONE"}
	_, err := Evaluate(r, plan)
	if !errors.Is(err, nav.ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal for post-validation miss", err)
	}
}

func TestSegmentMinutes(t *testing.T) {
	tests := []struct {
		dist  float64
		speed int
		want  int
	}{
		{100, 200, 30},
		{100.1, 200, 31}, // partial minute bills as full
		{0, 500, 0},
		{100, 0, 0},
	}
	for _, tt := range tests {
		if got := SegmentMinutes(tt.dist, tt.speed); got != tt.want {
			t.Errorf("SegmentMinutes(%v, %v) = %d, want %d", tt.dist, tt.speed, got, tt.want)
		}
	}
}

func TestFuel(t *testing.T) {
	route := &Route{EstimatedMinutes: 72} // 1.2 h
	fuel, err := Fuel(route, 50)
	if err != nil {
		t.Fatalf("Fuel: %v", err)
	}
	// 60 trip + 37.5 reserve + 3 taxi = 100.5 gallons.
	if math.Abs(fuel-100.5) > 0.01 {
		t.Errorf("Fuel = %.2f, want 100.50", fuel)
	}

	if _, err := Fuel(route, 0); !errors.Is(err, nav.ErrInvalidInput) {
		t.Errorf("zero fuel flow: err = %v, want ErrInvalidInput", err)
	}
}

func TestETA(t *testing.T) {
	if got := ETA(1000, 120); got != 1000+7200 {
		t.Errorf("ETA = %d, want %d", got, 1000+7200)
	}
}

func TestGroundSpeed(t *testing.T) {
	// Wind direction is the direction the wind blows FROM. Northbound with
	// wind from the south is a tailwind; from the north, a headwind.
	if gs := GroundSpeed(180, 20, 0, 200); gs <= 200 {
		t.Errorf("tailwind should speed us up, gs = %v", gs)
	}
	if gs := GroundSpeed(0, 20, 0, 200); gs >= 200 {
		t.Errorf("headwind should slow us down, gs = %v", gs)
	}
}

func TestWindCorrection(t *testing.T) {
	// Direct crosswind from the right of a northbound course corrects right.
	wca := WindCorrection(90, 20, 0, 200)
	if wca <= 0 || wca > 10 {
		t.Errorf("WindCorrection = %v, want small positive angle", wca)
	}
	// No wind, no correction.
	if wca := WindCorrection(0, 0, 90, 200); wca != 0 {
		t.Errorf("WindCorrection with calm wind = %v, want 0", wca)
	}
}

func TestPlanBuilder(t *testing.T) {
	plan, err := NewPlanBuilder().
		Departure("KJFK").
		Destination("KLAX").
		CruiseAltitude(35000).
		CruiseSpeed(500).
		AddWaypoint("KORD").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Departure != "KJFK" || len(plan.Route) != 1 {
		t.Errorf("unexpected plan: %+v", plan)
	}

	_, err = NewPlanBuilder().Departure("KJFK").Build()
	if !errors.Is(err, nav.ErrInvalidInput) {
		t.Errorf("incomplete plan: err = %v, want ErrInvalidInput", err)
	}
}
