// Package nav defines the navigational reference-data model: airports,
// waypoints, navaids, airways and airspaces, plus the generalised Point used
// by the spatial index.
package nav

import (
	"strings"

	"aerobase/internal/geo"
)

// PointKind identifies what a spatial index entry refers to.
type PointKind string

const (
	KindAirport  PointKind = "airport"
	KindWaypoint PointKind = "waypoint"
	KindNavaid   PointKind = "navaid"
)

// Point is the generalised navigational fixed point held by the spatial
// index. It carries just enough to answer proximity queries and resolve
// flight-plan keys; the full record lives on the typed structs below.
type Point struct {
	ID         string
	Name       string
	Kind       PointKind
	Coordinate geo.Coordinate
}

// Airport is an aerodrome record. ICAO is the stable lookup key used by
// flight plans.
type Airport struct {
	ID         string
	ICAO       string
	IATA       *string
	Name       string
	Coordinate geo.Coordinate
	Elevation  *int // feet
	Country    *string
	Region     *string
	CreatedAt  int64
}

// HasIATA reports whether the airport carries an IATA code.
func (a *Airport) HasIATA() bool { return a.IATA != nil && *a.IATA != "" }

// Point returns the spatial-index entry for the airport, keyed by ICAO.
func (a *Airport) Point() Point {
	return Point{ID: a.ICAO, Name: a.Name, Kind: KindAirport, Coordinate: a.Coordinate}
}

// WaypointType classifies a waypoint record.
type WaypointType string

const (
	WaypointAirport WaypointType = "AIRPORT"
	WaypointVOR     WaypointType = "VOR"
	WaypointNDB     WaypointType = "NDB"
	WaypointFix     WaypointType = "FIX"
	WaypointGPS     WaypointType = "GPS"
	WaypointOther   WaypointType = "OTHER"
)

// ParseWaypointType maps a stored string to a WaypointType, defaulting to
// WaypointOther for anything unrecognised.
func ParseWaypointType(s string) WaypointType {
	switch strings.ToUpper(s) {
	case "AIRPORT":
		return WaypointAirport
	case "VOR":
		return WaypointVOR
	case "NDB":
		return WaypointNDB
	case "FIX":
		return WaypointFix
	case "GPS":
		return WaypointGPS
	default:
		return WaypointOther
	}
}

// Waypoint is an en-route fix.
type Waypoint struct {
	ID         string
	Name       string
	Coordinate geo.Coordinate
	Region     *string
	Type       WaypointType
	CreatedAt  int64
}

// Point returns the spatial-index entry for the waypoint.
func (w *Waypoint) Point() Point {
	return Point{ID: w.ID, Name: w.Name, Kind: KindWaypoint, Coordinate: w.Coordinate}
}

// NavaidType classifies a radio navigation facility.
type NavaidType string

const (
	NavaidVOR    NavaidType = "VOR"
	NavaidVORDME NavaidType = "VORDME"
	NavaidDME    NavaidType = "DME"
	NavaidNDB    NavaidType = "NDB"
	NavaidTACAN  NavaidType = "TACAN"
	NavaidOther  NavaidType = "OTHER"
)

// ParseNavaidType maps a stored string to a NavaidType.
func ParseNavaidType(s string) NavaidType {
	switch strings.ToUpper(s) {
	case "VOR":
		return NavaidVOR
	case "VORDME", "VOR-DME", "VOR/DME":
		return NavaidVORDME
	case "DME":
		return NavaidDME
	case "NDB":
		return NavaidNDB
	case "TACAN":
		return NavaidTACAN
	default:
		return NavaidOther
	}
}

// Navaid is a radio navigation facility (VOR, NDB, ...).
type Navaid struct {
	ID         string
	Name       string
	Type       NavaidType
	Coordinate geo.Coordinate
	Frequency  *float64 // MHz or kHz depending on type
	RangeNM    *int
	Elevation  *int // feet
	Region     *string
	CreatedAt  int64
}

// Point returns the spatial-index entry for the navaid.
func (n *Navaid) Point() Point {
	return Point{ID: n.ID, Name: n.Name, Kind: KindNavaid, Coordinate: n.Coordinate}
}

// InRange reports whether coord lies within the navaid's published service
// range. False when no range is published.
func (n *Navaid) InRange(coord geo.Coordinate) bool {
	if n.RangeNM == nil {
		return false
	}
	return geo.Distance(n.Coordinate, coord) <= float64(*n.RangeNM)
}

// Airway is a named route corridor made of ordered segments between
// waypoints.
type Airway struct {
	ID          string
	Name        string
	Type        string
	MinAltitude *int // feet
	MaxAltitude *int // feet
	CreatedAt   int64
}

// AirwaySegment is one ordered leg of an airway.
type AirwaySegment struct {
	ID             string
	AirwayID       string
	FromWaypointID string
	ToWaypointID   string
	Sequence       int
	DistanceNM     *float64
	CreatedAt      int64
}

// AirspaceClass is the ICAO airspace class.
type AirspaceClass string

const (
	ClassA AirspaceClass = "A"
	ClassB AirspaceClass = "B"
	ClassC AirspaceClass = "C"
	ClassD AirspaceClass = "D"
	ClassE AirspaceClass = "E"
	ClassG AirspaceClass = "G"
)

// AirspaceType identifies the kind of volume.
type AirspaceType string

const (
	AirspaceCTR        AirspaceType = "CTR"
	AirspaceTMA        AirspaceType = "TMA"
	AirspaceFIR        AirspaceType = "FIR"
	AirspaceRestricted AirspaceType = "RESTRICTED"
	AirspaceDanger     AirspaceType = "DANGER"
	AirspaceProhibited AirspaceType = "PROHIBITED"
	AirspaceOther      AirspaceType = "OTHER"
)

// Airspace is a controlled or special-use volume with an optional vertical
// extent and a horizontal boundary polygon.
type Airspace struct {
	ID         string
	Name       string
	Type       AirspaceType
	Class      *AirspaceClass
	LowerLimit *int // feet; nil means surface
	UpperLimit *int // feet; nil means unlimited
	Boundary   []geo.Coordinate
	CreatedAt  int64
}

// ContainsAltitude reports whether altitude falls within the vertical extent.
func (a *Airspace) ContainsAltitude(altitude int) bool {
	if a.LowerLimit != nil && altitude < *a.LowerLimit {
		return false
	}
	if a.UpperLimit != nil && altitude > *a.UpperLimit {
		return false
	}
	return true
}

// Contains reports whether a position at the given altitude is inside the
// airspace volume.
func (a *Airspace) Contains(pt geo.Coordinate, altitude int) bool {
	return a.ContainsAltitude(altitude) && geo.PointInPolygon(pt, a.Boundary)
}
