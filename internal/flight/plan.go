// Package flight implements flight-plan validation and route evaluation over
// a loaded navigational snapshot. All functions are pure: they compute over
// already-resident data and hold no state between calls.
package flight

import (
	"fmt"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

// Resolver resolves a navigational key against the current index snapshot.
// Satisfied by *spatial.Snapshot.
type Resolver interface {
	Resolve(id string) (nav.Point, bool)
}

// Plan is a caller-supplied flight plan. Departure, Destination and Alternate
// are airport ICAO codes; Route is the ordered waypoint key sequence, which
// may be empty for direct routing.
type Plan struct {
	Departure      string   `json:"departure"`
	Destination    string   `json:"destination"`
	Alternate      *string  `json:"alternate,omitempty"`
	CruiseAltitude int      `json:"cruise_altitude"` // feet
	CruiseSpeed    int      `json:"cruise_speed"`    // knots
	Route          []string `json:"route,omitempty"`
}

// RoutePoint is one resolved point along an evaluated route with its
// per-leg and cumulative figures.
type RoutePoint struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Coordinate     geo.Coordinate `json:"coordinate"`
	LegDistanceNM  float64        `json:"leg_distance_nm"`
	CumulativeNM   float64        `json:"cumulative_nm"`
	ElapsedMinutes int            `json:"elapsed_minutes"`
}

// Route is an evaluated plan: the plan itself plus derived totals. Wholly
// recomputed on every evaluation, never cached.
type Route struct {
	Plan             Plan         `json:"plan"`
	TotalDistanceNM  float64      `json:"total_distance_nm"`
	EstimatedMinutes int          `json:"estimated_minutes"`
	Points           []RoutePoint `json:"points"`
}

// PlanBuilder assembles a Plan incrementally; Build reports which required
// fields are missing.
type PlanBuilder struct {
	plan        Plan
	hasAltitude bool
	hasSpeed    bool
}

// NewPlanBuilder returns an empty builder.
func NewPlanBuilder() *PlanBuilder { return &PlanBuilder{} }

func (b *PlanBuilder) Departure(icao string) *PlanBuilder {
	b.plan.Departure = icao
	return b
}

func (b *PlanBuilder) Destination(icao string) *PlanBuilder {
	b.plan.Destination = icao
	return b
}

func (b *PlanBuilder) Alternate(icao string) *PlanBuilder {
	b.plan.Alternate = &icao
	return b
}

func (b *PlanBuilder) CruiseAltitude(feet int) *PlanBuilder {
	b.plan.CruiseAltitude = feet
	b.hasAltitude = true
	return b
}

func (b *PlanBuilder) CruiseSpeed(knots int) *PlanBuilder {
	b.plan.CruiseSpeed = knots
	b.hasSpeed = true
	return b
}

func (b *PlanBuilder) AddWaypoint(id string) *PlanBuilder {
	b.plan.Route = append(b.plan.Route, id)
	return b
}

// Build returns the assembled plan or an error naming the first missing
// required field.
func (b *PlanBuilder) Build() (Plan, error) {
	switch {
	case b.plan.Departure == "":
		return Plan{}, fmt.Errorf("departure required: %w", nav.ErrInvalidInput)
	case b.plan.Destination == "":
		return Plan{}, fmt.Errorf("destination required: %w", nav.ErrInvalidInput)
	case !b.hasAltitude:
		return Plan{}, fmt.Errorf("cruise altitude required: %w", nav.ErrInvalidInput)
	case !b.hasSpeed:
		return Plan{}, fmt.Errorf("cruise speed required: %w", nav.ErrInvalidInput)
	}
	return b.plan, nil
}
