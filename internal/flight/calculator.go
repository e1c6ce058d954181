package flight

import (
	"fmt"
	"math"

	"aerobase/internal/nav"
)

// reserveMinutes is the standard fuel reserve.
const reserveMinutes = 45.0

// taxiFraction is taxi fuel as a share of trip fuel.
const taxiFraction = 0.05

// SegmentMinutes converts a distance at a cruise speed to whole minutes,
// rounding up: a partial minute counts as a full minute. Returns 0 for a
// non-positive speed.
func SegmentMinutes(distanceNM float64, speedKt int) int {
	if speedKt <= 0 {
		return 0
	}
	return int(math.Ceil(distanceNM / float64(speedKt) * 60))
}

// Fuel returns the total fuel requirement in gallons for a route at the
// given fuel flow: trip fuel plus a 45-minute reserve plus 5% taxi
// allowance.
func Fuel(route *Route, fuelFlowGPH float64) (float64, error) {
	if fuelFlowGPH <= 0 {
		return 0, fmt.Errorf("fuel flow %v gph: %w", fuelFlowGPH, nav.ErrInvalidInput)
	}

	trip := float64(route.EstimatedMinutes) / 60 * fuelFlowGPH
	reserve := reserveMinutes / 60 * fuelFlowGPH
	taxi := trip * taxiFraction
	return trip + reserve + taxi, nil
}

// ETA returns the arrival time as an epoch second given a departure epoch
// and a flight time in minutes.
func ETA(departureEpoch int64, flightMinutes int) int64 {
	return departureEpoch + int64(flightMinutes)*60
}

// WindCorrection returns the wind correction angle in degrees for the given
// wind, true course and true airspeed (knots).
func WindCorrection(windDirDeg, windSpeedKt, trueCourseDeg, trueAirspeedKt float64) float64 {
	windAngle := (windDirDeg - trueCourseDeg) * math.Pi / 180
	wca := math.Asin(windSpeedKt * math.Sin(windAngle) / trueAirspeedKt)
	return wca * 180 / math.Pi
}

// GroundSpeed returns the along-track ground speed in knots for the given
// wind, true course and true airspeed.
func GroundSpeed(windDirDeg, windSpeedKt, trueCourseDeg, trueAirspeedKt float64) float64 {
	windAngle := (windDirDeg - trueCourseDeg) * math.Pi / 180
	headwind := windSpeedKt * math.Cos(windAngle)
	return trueAirspeedKt - headwind
}
