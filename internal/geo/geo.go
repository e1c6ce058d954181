// Package geo provides great-circle math over WGS84 latitude/longitude
// coordinates. All distances are in nautical miles, all angles in degrees.
package geo

import "math"

// EarthRadiusNM is the mean Earth radius in nautical miles. Distance results
// depend directly on this constant; tests assume this exact value.
const EarthRadiusNM = 3440.065

// NMPerDegree is the approximate surface distance of one degree of latitude
// (or one degree of longitude at the equator). Used for bounding-box pruning
// only, never as a final distance.
const NMPerDegree = 60.0

// Coordinate is an immutable geographic position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Distance returns the great-circle distance between a and b in nautical
// miles using the haversine formula. Symmetric, zero for identical points.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := sqr(math.Sin(dLat/2)) + math.Cos(lat1)*math.Cos(lat2)*sqr(math.Sin(dLon/2))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusNM * c
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
// Returns 0 when a == b.
func Bearing(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// Destination returns the point reached by travelling distanceNM from start
// along the given initial bearing.
func Destination(start Coordinate, bearingDeg, distanceNM float64) Coordinate {
	lat1 := radians(start.Latitude)
	lon1 := radians(start.Longitude)
	brg := radians(bearingDeg)
	d := distanceNM / EarthRadiusNM

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(
		math.Sin(brg)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)

	// Normalise longitude to [-180, 180].
	lon := math.Mod(degrees(lon2)+540, 360) - 180
	return Coordinate{Latitude: degrees(lat2), Longitude: lon}
}

// BoundingBox returns the min/max corners of a box guaranteed to contain the
// circle of radiusNM around center. The box is a pruning heuristic: points
// inside it must still pass an exact Distance check. Longitude span widens
// toward the poles; at extreme latitudes the box covers all longitudes.
func BoundingBox(center Coordinate, radiusNM float64) (min, max Coordinate) {
	if radiusNM < 0 {
		radiusNM = 0
	}
	dLat := radiusNM / NMPerDegree

	min.Latitude = center.Latitude - dLat
	max.Latitude = center.Latitude + dLat

	cosLat := math.Cos(radians(center.Latitude))
	if min.Latitude <= -90 || max.Latitude >= 90 || cosLat < 1e-6 {
		// Box touches a pole; every longitude may qualify.
		min.Latitude = math.Max(min.Latitude, -90)
		max.Latitude = math.Min(max.Latitude, 90)
		min.Longitude, max.Longitude = -180, 180
		return min, max
	}

	dLon := radiusNM / (NMPerDegree * cosLat)
	if dLon >= 180 {
		min.Longitude, max.Longitude = -180, 180
	} else {
		min.Longitude = center.Longitude - dLon
		max.Longitude = center.Longitude + dLon
	}
	return min, max
}

// PointInPolygon reports whether pt lies inside the polygon described by
// vertices, using ray casting. Polygons with fewer than three vertices
// contain nothing. The polygon is treated as closed whether or not the last
// vertex repeats the first.
func PointInPolygon(pt Coordinate, vertices []Coordinate) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Latitude > pt.Latitude) != (vj.Latitude > pt.Latitude) {
			cross := (vj.Longitude-vi.Longitude)*(pt.Latitude-vi.Latitude)/
				(vj.Latitude-vi.Latitude) + vi.Longitude
			if pt.Longitude < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
func sqr(x float64) float64       { return x * x }
