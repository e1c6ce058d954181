// Package service is the front door to the reference-data system: it owns
// the storage gateway, the spatial engine and the optional audit sink, and
// exposes the operations clients call.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"aerobase/internal/device"
	"aerobase/internal/flight"
	"aerobase/internal/geo"
	"aerobase/internal/nav"
	"aerobase/internal/spatial"
	"aerobase/internal/storage"
)

// Config assembles the service.
type Config struct {
	Storage     storage.Config
	Limits      flight.Limits
	EnableAudit bool // record queries to ClickHouse
}

// DefaultConfig returns local development settings with auditing off.
func DefaultConfig() Config {
	return Config{
		Storage: storage.DefaultConfig(),
		Limits:  flight.DefaultLimits(),
	}
}

// Service wires storage, the spatial engine and flight planning together.
type Service struct {
	store  storage.Gateway
	engine *spatial.Engine
	audit  *storage.AuditDB
	limits flight.Limits

	deviceID string
}

// Open opens the storage backend, loads the spatial index and, when
// configured, connects the audit sink. Close releases everything.
func Open(ctx context.Context, cfg Config) (*Service, error) {
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	limits := cfg.Limits
	if limits.MaxAltitudeFt == 0 && limits.MaxSpeedKt == 0 {
		limits = flight.DefaultLimits()
	}

	s := &Service{
		store:  store,
		engine: spatial.NewEngine(store),
		limits: limits,
	}

	if err := s.engine.Refresh(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load spatial index: %w", err)
	}

	if cfg.EnableAudit {
		audit, err := storage.OpenAudit(ctx, cfg.Storage.Audit)
		if err != nil {
			// The audit trail is best-effort; run without it.
			log.Printf("service: audit sink unavailable: %v", err)
		} else {
			s.audit = audit
		}
	}

	return s, nil
}

// Close releases database connections.
func (s *Service) Close() error {
	var firstErr error
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			firstErr = fmt.Errorf("close audit: %w", err)
		}
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close storage: %w", err)
	}
	return firstErr
}

// Gateway exposes the storage layer for seeding and sync.
func (s *Service) Gateway() storage.Gateway { return s.store }

// Engine exposes the spatial engine for sync-driven refreshes.
func (s *Service) Engine() *spatial.Engine { return s.engine }

// Refresh rebuilds the spatial index from storage.
func (s *Service) Refresh(ctx context.Context) error {
	return s.engine.Refresh(ctx)
}

// DeviceFingerprint registers this machine and returns its device record.
// Repeated calls resolve to the same device.
func (s *Service) DeviceFingerprint(ctx context.Context) (*nav.Device, error) {
	d, err := device.Register(ctx, s.store)
	if err != nil {
		return nil, err
	}
	s.deviceID = d.ID
	return d, nil
}

// FindAirportsWithin returns airports within radiusNM of center, closest
// first.
func (s *Service) FindAirportsWithin(ctx context.Context, center geo.Coordinate, radiusNM float64) ([]nav.Point, error) {
	return s.findWithin(ctx, center, radiusNM, nav.KindAirport)
}

// FindWaypointsWithin returns waypoints within radiusNM of center, closest
// first.
func (s *Service) FindWaypointsWithin(ctx context.Context, center geo.Coordinate, radiusNM float64) ([]nav.Point, error) {
	return s.findWithin(ctx, center, radiusNM, nav.KindWaypoint)
}

// FindNavaidsWithin returns navaids within radiusNM of center, closest
// first.
func (s *Service) FindNavaidsWithin(ctx context.Context, center geo.Coordinate, radiusNM float64) ([]nav.Point, error) {
	return s.findWithin(ctx, center, radiusNM, nav.KindNavaid)
}

func (s *Service) findWithin(ctx context.Context, center geo.Coordinate, radiusNM float64, kind nav.PointKind) ([]nav.Point, error) {
	start := time.Now()
	pts, err := s.engine.Within(center, radiusNM, kind)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "within", center, radiusNM, len(pts), time.Since(start))
	return pts, nil
}

// Nearest returns the closest point of the given kind to center. An empty
// kind matches any point.
func (s *Service) Nearest(ctx context.Context, center geo.Coordinate, kind nav.PointKind) (nav.Point, error) {
	start := time.Now()
	pt, err := s.engine.Nearest(center, kind)
	if err != nil {
		return nav.Point{}, err
	}
	s.recordAudit(ctx, "nearest", center, 0, 1, time.Since(start))
	return pt, nil
}

// ValidateFlightPlan checks the plan against the current snapshot. A nil
// return means the plan passed every check.
func (s *Service) ValidateFlightPlan(ctx context.Context, plan flight.Plan) error {
	snap, err := s.engine.Snapshot()
	if err != nil {
		return err
	}

	start := time.Now()
	err = flight.Validate(snap, plan, s.limits)
	s.recordAudit(ctx, "validate", geo.Coordinate{}, 0, 0, time.Since(start))
	return err
}

// CalculateRoute validates the plan and evaluates its route against one
// consistent snapshot.
func (s *Service) CalculateRoute(ctx context.Context, plan flight.Plan) (*flight.Route, error) {
	snap, err := s.engine.Snapshot()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := flight.Validate(snap, plan, s.limits); err != nil {
		return nil, err
	}
	route, err := flight.Evaluate(snap, plan)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "route", geo.Coordinate{}, 0, len(route.Points), time.Since(start))
	return route, nil
}

// recordAudit writes one audit row when the sink is connected. Failures are
// logged, never surfaced.
func (s *Service) recordAudit(ctx context.Context, kind string, center geo.Coordinate, radiusNM float64, results int, d time.Duration) {
	if s.audit == nil {
		return
	}
	rec := storage.AuditRecord{
		DeviceID:    s.deviceID,
		Kind:        kind,
		Latitude:    center.Latitude,
		Longitude:   center.Longitude,
		RadiusNM:    radiusNM,
		ResultCount: uint32(results),
		DurationUS:  uint64(d.Microseconds()),
		RecordedAt:  time.Now().UTC(),
	}
	if err := s.audit.Insert(ctx, rec); err != nil {
		log.Printf("service: audit insert: %v", err)
	}
}
