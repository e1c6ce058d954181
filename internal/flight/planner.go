package flight

import (
	"fmt"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

// Evaluate computes the route for a plan that already passed Validate. It
// walks departure -> route waypoints in order -> destination, summing exact
// great-circle leg distances; it never shortcuts the waypoint sequence.
//
// Structural checks are not repeated here, but a key that fails to resolve
// is surfaced as an internal consistency error (the snapshot changed between
// validate and evaluate), never skipped.
func Evaluate(r Resolver, plan Plan) (*Route, error) {
	if plan.CruiseSpeed <= 0 {
		return nil, fmt.Errorf("cruise speed %d kt: %w", plan.CruiseSpeed, nav.ErrInvalidInput)
	}

	keys := make([]string, 0, len(plan.Route)+2)
	keys = append(keys, plan.Departure)
	keys = append(keys, plan.Route...)
	keys = append(keys, plan.Destination)

	points := make([]RoutePoint, 0, len(keys))
	var cumulative float64
	var prev geo.Coordinate

	for i, key := range keys {
		pt, ok := r.Resolve(key)
		if !ok {
			return nil, fmt.Errorf("route point %q vanished from snapshot: %w", key, nav.ErrInternal)
		}

		var leg float64
		if i > 0 {
			leg = geo.Distance(prev, pt.Coordinate)
		}
		cumulative += leg

		points = append(points, RoutePoint{
			ID:             pt.ID,
			Name:           pt.Name,
			Coordinate:     pt.Coordinate,
			LegDistanceNM:  leg,
			CumulativeNM:   cumulative,
			ElapsedMinutes: SegmentMinutes(cumulative, plan.CruiseSpeed),
		})
		prev = pt.Coordinate
	}

	return &Route{
		Plan:             plan,
		TotalDistanceNM:  cumulative,
		EstimatedMinutes: SegmentMinutes(cumulative, plan.CruiseSpeed),
		Points:           points,
	}, nil
}
