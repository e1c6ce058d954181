package flight

import (
	"fmt"

	"aerobase/internal/nav"
)

// Limits bounds the sanity checks on cruise parameters. These are
// configuration, not hidden constants; DefaultLimits matches typical
// transport-category operation.
type Limits struct {
	MaxAltitudeFt int
	MaxSpeedKt    int
}

// DefaultLimits returns the standard ceilings.
func DefaultLimits() Limits {
	return Limits{MaxAltitudeFt: 60000, MaxSpeedKt: 1000}
}

// ValidationError reports which check a plan failed and why. It unwraps to
// the error kind (ErrNotFound for unresolvable keys, ErrInvalidInput
// otherwise) so callers can classify without parsing the message.
type ValidationError struct {
	Check  string // "departure", "destination", "alternate", "route", "altitude", "speed"
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("flight plan %s: %s", e.Check, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.kind }

// Validate checks a plan against the current snapshot. Checks run in a fixed
// order and short-circuit on the first failure; a nil return means the plan
// is valid. Pure function of (plan, snapshot): no side effects, and keys are
// not re-resolved if the snapshot changes afterwards.
func Validate(r Resolver, plan Plan, limits Limits) error {
	dep, ok := r.Resolve(plan.Departure)
	if !ok {
		return &ValidationError{Check: "departure", Reason: fmt.Sprintf("airport %q not found", plan.Departure), kind: nav.ErrNotFound}
	}
	if dep.Kind != nav.KindAirport {
		return &ValidationError{Check: "departure", Reason: fmt.Sprintf("%q is a %s, not an airport", plan.Departure, dep.Kind), kind: nav.ErrInvalidInput}
	}

	dest, ok := r.Resolve(plan.Destination)
	if !ok {
		return &ValidationError{Check: "destination", Reason: fmt.Sprintf("airport %q not found", plan.Destination), kind: nav.ErrNotFound}
	}
	if dest.Kind != nav.KindAirport {
		return &ValidationError{Check: "destination", Reason: fmt.Sprintf("%q is a %s, not an airport", plan.Destination, dest.Kind), kind: nav.ErrInvalidInput}
	}

	if plan.Departure == plan.Destination {
		return &ValidationError{Check: "destination", Reason: "departure and destination are the same airport", kind: nav.ErrInvalidInput}
	}

	if plan.Alternate != nil {
		alt, ok := r.Resolve(*plan.Alternate)
		if !ok {
			return &ValidationError{Check: "alternate", Reason: fmt.Sprintf("airport %q not found", *plan.Alternate), kind: nav.ErrNotFound}
		}
		if alt.Kind != nav.KindAirport {
			return &ValidationError{Check: "alternate", Reason: fmt.Sprintf("%q is a %s, not an airport", *plan.Alternate, alt.Kind), kind: nav.ErrInvalidInput}
		}
		if *plan.Alternate == plan.Destination {
			return &ValidationError{Check: "alternate", Reason: "alternate must differ from destination", kind: nav.ErrInvalidInput}
		}
	}

	for _, key := range plan.Route {
		if _, ok := r.Resolve(key); !ok {
			return &ValidationError{Check: "route", Reason: fmt.Sprintf("waypoint %q not found", key), kind: nav.ErrNotFound}
		}
	}

	if plan.CruiseAltitude <= 0 || plan.CruiseAltitude > limits.MaxAltitudeFt {
		return &ValidationError{
			Check:  "altitude",
			Reason: fmt.Sprintf("cruise altitude %d ft outside (0, %d]", plan.CruiseAltitude, limits.MaxAltitudeFt),
			kind:   nav.ErrInvalidInput,
		}
	}

	if plan.CruiseSpeed <= 0 || plan.CruiseSpeed > limits.MaxSpeedKt {
		return &ValidationError{
			Check:  "speed",
			Reason: fmt.Sprintf("cruise speed %d kt outside (0, %d]", plan.CruiseSpeed, limits.MaxSpeedKt),
			kind:   nav.ErrInvalidInput,
		}
	}

	return nil
}
