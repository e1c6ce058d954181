package spatial

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

// Loader supplies the full navigational point corpus. Implemented by the
// storage gateways; the engine never writes back.
type Loader interface {
	ListAirports(ctx context.Context) ([]nav.Airport, error)
	ListWaypoints(ctx context.Context) ([]nav.Waypoint, error)
	ListNavaids(ctx context.Context) ([]nav.Navaid, error)
}

// Snapshot is an immutable, fully-loaded view of the point corpus: the
// kd-tree plus a key-resolution map. Queries against one snapshot always
// observe a consistent point set.
type Snapshot struct {
	index    *Index
	byID     map[string]nav.Point
	loadedAt time.Time
}

// NewSnapshot builds a snapshot from a point slice. Airports are keyed by
// ICAO, waypoints and navaids by ID. On a key collision the airport wins
// Resolve; between non-airports the first entry stays. All points remain in
// the index either way.
func NewSnapshot(points []nav.Point) *Snapshot {
	byID := make(map[string]nav.Point, len(points))
	for _, p := range points {
		prev, ok := byID[p.ID]
		if !ok {
			byID[p.ID] = p
			continue
		}
		if p.Kind == nav.KindAirport && prev.Kind != nav.KindAirport {
			byID[p.ID] = p
			prev, p = p, prev
		}
		log.Printf("spatial: duplicate key %q: %s shadows %s for resolution", p.ID, prev.Kind, p.Kind)
	}
	return &Snapshot{
		index:    NewIndex(points),
		byID:     byID,
		loadedAt: time.Now().UTC(),
	}
}

// Resolve looks up a point by its key.
func (s *Snapshot) Resolve(id string) (nav.Point, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Len returns the number of points in the snapshot.
func (s *Snapshot) Len() int { return s.index.Len() }

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Within returns the points of the given kind within radiusNM of center.
// An empty kind matches all kinds.
func (s *Snapshot) Within(center geo.Coordinate, radiusNM float64, kind nav.PointKind) []nav.Point {
	return filterKind(s.index.Within(center, radiusNM), kind)
}

// WithinSorted is Within ordered by ascending distance, ties by ID.
func (s *Snapshot) WithinSorted(center geo.Coordinate, radiusNM float64, kind nav.PointKind) []nav.Point {
	pts := filterKind(s.index.Within(center, radiusNM), kind)
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

// Nearest returns the closest point of the given kind, if any.
func (s *Snapshot) Nearest(center geo.Coordinate, kind nav.PointKind) (nav.Point, bool) {
	if kind == "" {
		pt, _, ok := s.index.Nearest(center)
		return pt, ok
	}
	// Kind-filtered nearest: widen k until a match appears or the corpus is
	// exhausted. Corpora are kind-mixed, so small k almost always suffices.
	for k := 8; ; k *= 4 {
		cands := s.index.KNearest(center, k)
		for _, p := range cands {
			if p.Kind == kind {
				return p, true
			}
		}
		if len(cands) < k {
			return nav.Point{}, false
		}
	}
}

func filterKind(pts []nav.Point, kind nav.PointKind) []nav.Point {
	if kind == "" {
		return pts
	}
	out := pts[:0]
	for _, p := range pts {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Engine owns the published snapshot and rebuilds it from the loader.
// Readers share the current snapshot without locking; Refresh builds a new
// snapshot off the request path and swaps it in atomically.
type Engine struct {
	loader  Loader
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// NewEngine creates an engine with no snapshot loaded. Call Refresh before
// serving queries.
func NewEngine(loader Loader) *Engine {
	return &Engine{loader: loader}
}

// Refresh loads the full corpus and publishes a new snapshot. Concurrent
// calls are coalesced into a single load.
func (e *Engine) Refresh(ctx context.Context) error {
	_, err, _ := e.group.Do("refresh", func() (interface{}, error) {
		snap, err := e.load(ctx)
		if err != nil {
			return nil, err
		}
		e.current.Store(snap)
		log.Printf("spatial: published snapshot with %d points", snap.Len())
		return nil, nil
	})
	return err
}

func (e *Engine) load(ctx context.Context) (*Snapshot, error) {
	airports, err := e.loader.ListAirports(ctx)
	if err != nil {
		return nil, fmt.Errorf("load airports: %w", err)
	}
	waypoints, err := e.loader.ListWaypoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("load waypoints: %w", err)
	}
	navaids, err := e.loader.ListNavaids(ctx)
	if err != nil {
		return nil, fmt.Errorf("load navaids: %w", err)
	}

	points := make([]nav.Point, 0, len(airports)+len(waypoints)+len(navaids))
	for i := range airports {
		points = append(points, airports[i].Point())
	}
	for i := range waypoints {
		points = append(points, waypoints[i].Point())
	}
	for i := range navaids {
		points = append(points, navaids[i].Point())
	}
	return NewSnapshot(points), nil
}

// Snapshot returns the current snapshot, or ErrNotInitialized before the
// first successful Refresh.
func (e *Engine) Snapshot() (*Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("spatial index: %w", nav.ErrNotInitialized)
	}
	return snap, nil
}

// Within validates the query and runs it against the current snapshot.
// Nothing matching is an empty result, not an error.
func (e *Engine) Within(center geo.Coordinate, radiusNM float64, kind nav.PointKind) ([]nav.Point, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	if !center.Valid() {
		return nil, fmt.Errorf("center %+v out of range: %w", center, nav.ErrInvalidInput)
	}
	if radiusNM < 0 {
		return nil, fmt.Errorf("radius %v nm: %w", radiusNM, nav.ErrInvalidInput)
	}
	return snap.WithinSorted(center, radiusNM, kind), nil
}

// Nearest returns the closest point of the given kind to center.
func (e *Engine) Nearest(center geo.Coordinate, kind nav.PointKind) (nav.Point, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nav.Point{}, err
	}
	if !center.Valid() {
		return nav.Point{}, fmt.Errorf("center %+v out of range: %w", center, nav.ErrInvalidInput)
	}
	pt, ok := snap.Nearest(center, kind)
	if !ok {
		return nav.Point{}, fmt.Errorf("no %s in corpus: %w", kindLabel(kind), nav.ErrNotFound)
	}
	return pt, nil
}

func kindLabel(kind nav.PointKind) string {
	if kind == "" {
		return "points"
	}
	return string(kind)
}
