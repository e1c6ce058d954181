// Package spatial provides the in-memory proximity index over navigational
// points. The index is a 2-D kd-tree built once per snapshot; queries prune
// subtrees with a great-circle lower bound and always confirm candidates
// with an exact haversine distance.
package spatial

import (
	"math"
	"sort"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

// distEpsilon absorbs float error so a point exactly at the query center
// passes a radius-0 query (closed interval contract).
const distEpsilon = 1e-9

const (
	axisLon = 0
	axisLat = 1
)

type kdNode struct {
	pt    nav.Point
	axis  int
	left  *kdNode
	right *kdNode
}

// Index is an immutable kd-tree over a fixed set of points.
type Index struct {
	root *kdNode
	size int
}

// NewIndex bulk-builds an index. The input slice is copied; the caller may
// reuse it.
func NewIndex(points []nav.Point) *Index {
	pts := make([]nav.Point, len(points))
	copy(pts, points)
	return &Index{root: build(pts, 0), size: len(pts)}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.size }

// build recursively splits on the median, alternating longitude/latitude.
func build(pts []nav.Point, depth int) *kdNode {
	if len(pts) == 0 {
		return nil
	}
	axis := depth % 2
	mid := len(pts) / 2
	selectNth(pts, mid, axis)
	n := &kdNode{pt: pts[mid], axis: axis}
	n.left = build(pts[:mid], depth+1)
	n.right = build(pts[mid+1:], depth+1)
	return n
}

// selectNth partially sorts pts so pts[n] is the nth element along axis.
func selectNth(pts []nav.Point, n, axis int) {
	lo, hi := 0, len(pts)-1
	for lo < hi {
		p := partition(pts, lo, hi, (lo+hi)/2, axis)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(pts []nav.Point, lo, hi, pivot, axis int) int {
	pv := pts[pivot]
	pts[pivot], pts[hi] = pts[hi], pts[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if less(pts[j], pv, axis) {
			pts[i], pts[j] = pts[j], pts[i]
			i++
		}
	}
	pts[i], pts[hi] = pts[hi], pts[i]
	return i
}

func less(a, b nav.Point, axis int) bool {
	if axis == axisLon {
		return a.Coordinate.Longitude < b.Coordinate.Longitude
	}
	return a.Coordinate.Latitude < b.Coordinate.Latitude
}

// planeBound returns a lower bound, in nautical miles, on the distance from
// center to any point beyond the node's splitting plane. For a latitude
// split this is the meridian arc to the splitting parallel. Longitude
// coordinates wrap at ±180, so the far half can be entered through either
// the splitting meridian or the antimeridian seam; the bound is the nearer
// of the two, otherwise a point just across the seam hides behind a huge
// "far" bound and never reaches the haversine filter.
func planeBound(center geo.Coordinate, node *kdNode) float64 {
	if node.axis == axisLat {
		return math.Abs(center.Latitude-node.pt.Coordinate.Latitude) * geo.NMPerDegree
	}
	return math.Min(
		meridianBound(center, node.pt.Coordinate.Longitude),
		meridianBound(center, 180),
	)
}

// meridianBound is the great-circle distance from center to the meridian
// plane at lonDeg.
func meridianBound(center geo.Coordinate, lonDeg float64) float64 {
	dLon := (center.Longitude - lonDeg) * math.Pi / 180
	s := math.Abs(math.Sin(dLon)) * math.Cos(center.Latitude*math.Pi/180)
	if s > 1 {
		s = 1
	}
	return geo.EarthRadiusNM * math.Asin(s)
}

// Within returns all points whose great-circle distance from center is at
// most radiusNM (closed interval). Order is unspecified. A negative radius
// returns nil.
func (ix *Index) Within(center geo.Coordinate, radiusNM float64) []nav.Point {
	if radiusNM < 0 || ix.root == nil {
		return nil
	}

	var out []nav.Point
	var walk func(n *kdNode)
	walk = func(n *kdNode) {
		if n == nil {
			return
		}
		if geo.Distance(center, n.pt.Coordinate) <= radiusNM+distEpsilon {
			out = append(out, n.pt)
		}
		near, far := n.left, n.right
		if onRight(center, n) {
			near, far = n.right, n.left
		}
		walk(near)
		if planeBound(center, n) <= radiusNM+distEpsilon {
			walk(far)
		}
	}
	walk(ix.root)
	return out
}

// WithinSorted is Within with results ordered by ascending distance, ties
// broken by ID ascending for determinism.
func (ix *Index) WithinSorted(center geo.Coordinate, radiusNM float64) []nav.Point {
	pts := ix.Within(center, radiusNM)
	sort.Slice(pts, func(i, j int) bool {
		di := geo.Distance(center, pts[i].Coordinate)
		dj := geo.Distance(center, pts[j].Coordinate)
		if di != dj {
			return di < dj
		}
		return pts[i].ID < pts[j].ID
	})
	return pts
}

// Nearest returns the point closest to center and its distance. ok is false
// for an empty index.
func (ix *Index) Nearest(center geo.Coordinate) (pt nav.Point, distNM float64, ok bool) {
	if ix.root == nil {
		return nav.Point{}, 0, false
	}

	best := nav.Point{}
	bestD := math.MaxFloat64
	var walk func(n *kdNode)
	walk = func(n *kdNode) {
		if n == nil {
			return
		}
		d := geo.Distance(center, n.pt.Coordinate)
		if d < bestD || (d == bestD && n.pt.ID < best.ID) {
			best, bestD = n.pt, d
		}
		near, far := n.left, n.right
		if onRight(center, n) {
			near, far = n.right, n.left
		}
		walk(near)
		if planeBound(center, n) <= bestD {
			walk(far)
		}
	}
	walk(ix.root)
	return best, bestD, true
}

// KNearest returns up to k points ordered by ascending distance, ties broken
// by ID ascending.
func (ix *Index) KNearest(center geo.Coordinate, k int) []nav.Point {
	if k <= 0 || ix.root == nil {
		return nil
	}

	type cand struct {
		pt nav.Point
		d  float64
	}
	var best []cand // sorted ascending, at most k entries

	worst := func() float64 {
		if len(best) < k {
			return math.MaxFloat64
		}
		return best[len(best)-1].d
	}

	var walk func(n *kdNode)
	walk = func(n *kdNode) {
		if n == nil {
			return
		}
		d := geo.Distance(center, n.pt.Coordinate)
		// A candidate tying the worst distance still displaces it when its
		// ID sorts first, keeping the k-th slot deterministic under ties.
		w := worst()
		if d < w || (d == w && (len(best) < k || n.pt.ID < best[len(best)-1].pt.ID)) {
			i := sort.Search(len(best), func(i int) bool {
				if best[i].d != d {
					return best[i].d > d
				}
				return best[i].pt.ID > n.pt.ID
			})
			best = append(best, cand{})
			copy(best[i+1:], best[i:])
			best[i] = cand{pt: n.pt, d: d}
			if len(best) > k {
				best = best[:k]
			}
		}
		near, far := n.left, n.right
		if onRight(center, n) {
			near, far = n.right, n.left
		}
		walk(near)
		if planeBound(center, n) <= worst() {
			walk(far)
		}
	}
	walk(ix.root)

	out := make([]nav.Point, len(best))
	for i, c := range best {
		out[i] = c.pt
	}
	return out
}

func onRight(center geo.Coordinate, n *kdNode) bool {
	if n.axis == axisLon {
		return center.Longitude > n.pt.Coordinate.Longitude
	}
	return center.Latitude > n.pt.Coordinate.Latitude
}
