// Package navsync keeps the local navigational database current by applying
// record updates published on NATS. Each record kind has its own subject
// under the navdata prefix; after a quiet period the spatial index is
// refreshed once for the whole batch.
package navsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"aerobase/internal/geo"
	"aerobase/internal/nav"
)

// Applier is the slice of the storage gateway the subscriber writes through.
type Applier interface {
	UpsertAirport(ctx context.Context, a nav.Airport) error
	UpsertWaypoint(ctx context.Context, w nav.Waypoint) error
	UpsertNavaid(ctx context.Context, n nav.Navaid) error
	UpsertAirway(ctx context.Context, a nav.Airway) error
	UpsertAirwaySegment(ctx context.Context, s nav.AirwaySegment) error
	UpsertAirspace(ctx context.Context, a nav.Airspace) error
	SetSyncMetadata(ctx context.Context, table string, lastSync int64, recordCount int) error
}

// Refresher rebuilds the in-memory snapshot after records change.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config holds NATS connection settings.
type Config struct {
	URL             string
	SubjectPrefix   string        // defaults to "navdata"
	RefreshDebounce time.Duration // quiet period before refreshing the index
}

// DefaultConfig returns settings for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		SubjectPrefix:   "navdata",
		RefreshDebounce: 2 * time.Second,
	}
}

// Subscriber applies navdata updates from NATS to storage and schedules
// index refreshes.
type Subscriber struct {
	cfg    Config
	store  Applier
	engine Refresher

	nc  *nats.Conn
	sub *nats.Subscription

	mu      sync.Mutex
	timer   *time.Timer
	applied map[string]int
}

// NewSubscriber creates a subscriber; call Start to connect.
func NewSubscriber(cfg Config, store Applier, engine Refresher) *Subscriber {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "navdata"
	}
	if cfg.RefreshDebounce <= 0 {
		cfg.RefreshDebounce = 2 * time.Second
	}
	return &Subscriber{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		applied: make(map[string]int),
	}
}

// Start connects to NATS and subscribes to the navdata subjects.
func (s *Subscriber) Start() error {
	nc, err := nats.Connect(s.cfg.URL,
		nats.Name("aerobase-navsync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("navsync: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("navsync: reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	s.nc = nc

	subject := s.cfg.SubjectPrefix + ".>"
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := s.Apply(context.Background(), msg.Subject, msg.Data); err != nil {
			log.Printf("navsync: %s: %v", msg.Subject, err)
		}
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.sub = sub

	log.Printf("navsync: subscribed to %s on %s", subject, nc.ConnectedUrl())
	return nil
}

// Stop drains the subscription and closes the connection.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if s.sub != nil {
		_ = s.sub.Drain()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}

// Wire records. Coordinates are flat lat/lon fields, matching the publisher.

type airportMsg struct {
	ID        string  `json:"id"`
	ICAO      string  `json:"icao"`
	IATA      *string `json:"iata,omitempty"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation *int    `json:"elevation,omitempty"`
	Country   *string `json:"country,omitempty"`
	Region    *string `json:"region,omitempty"`
}

type waypointMsg struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Region    *string `json:"region,omitempty"`
	Type      string  `json:"type,omitempty"`
}

type navaidMsg struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Frequency *float64 `json:"frequency,omitempty"`
	RangeNM   *int     `json:"range_nm,omitempty"`
	Elevation *int     `json:"elevation,omitempty"`
	Region    *string  `json:"region,omitempty"`
}

type airwayMsg struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	MinAltitude *int   `json:"min_altitude,omitempty"`
	MaxAltitude *int   `json:"max_altitude,omitempty"`
}

type segmentMsg struct {
	ID             string   `json:"id"`
	AirwayID       string   `json:"airway_id"`
	FromWaypointID string   `json:"from_waypoint_id"`
	ToWaypointID   string   `json:"to_waypoint_id"`
	Sequence       int      `json:"sequence"`
	DistanceNM     *float64 `json:"distance_nm,omitempty"`
}

type vertexMsg struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type airspaceMsg struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Class      *string     `json:"class,omitempty"`
	LowerLimit *int        `json:"lower_limit,omitempty"`
	UpperLimit *int        `json:"upper_limit,omitempty"`
	Boundary   []vertexMsg `json:"boundary,omitempty"`
}

// Apply decodes one update and writes it through to storage. The subject's
// last token names the record kind.
func (s *Subscriber) Apply(ctx context.Context, subject string, data []byte) error {
	kind := subject[strings.LastIndex(subject, ".")+1:]
	now := time.Now().Unix()

	var err error
	switch kind {
	case "airport":
		var m airportMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = s.store.UpsertAirport(ctx, nav.Airport{
				ID: m.ID, ICAO: m.ICAO, IATA: m.IATA, Name: m.Name,
				Coordinate: geo.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude},
				Elevation:  m.Elevation, Country: m.Country, Region: m.Region,
				CreatedAt: now,
			})
		}
	case "waypoint":
		var m waypointMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = s.store.UpsertWaypoint(ctx, nav.Waypoint{
				ID: m.ID, Name: m.Name,
				Coordinate: geo.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude},
				Region:     m.Region, Type: nav.ParseWaypointType(m.Type),
				CreatedAt: now,
			})
		}
	case "navaid":
		var m navaidMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = s.store.UpsertNavaid(ctx, nav.Navaid{
				ID: m.ID, Name: m.Name, Type: nav.ParseNavaidType(m.Type),
				Coordinate: geo.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude},
				Frequency:  m.Frequency, RangeNM: m.RangeNM,
				Elevation:  m.Elevation, Region: m.Region,
				CreatedAt: now,
			})
		}
	case "airway":
		var m airwayMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = s.store.UpsertAirway(ctx, nav.Airway{
				ID: m.ID, Name: m.Name, Type: m.Type,
				MinAltitude: m.MinAltitude, MaxAltitude: m.MaxAltitude,
				CreatedAt: now,
			})
		}
	case "segment":
		var m segmentMsg
		if err = json.Unmarshal(data, &m); err == nil {
			err = s.store.UpsertAirwaySegment(ctx, nav.AirwaySegment{
				ID: m.ID, AirwayID: m.AirwayID,
				FromWaypointID: m.FromWaypointID, ToWaypointID: m.ToWaypointID,
				Sequence: m.Sequence, DistanceNM: m.DistanceNM,
				CreatedAt: now,
			})
		}
	case "airspace":
		var m airspaceMsg
		if err = json.Unmarshal(data, &m); err == nil {
			a := nav.Airspace{
				ID: m.ID, Name: m.Name, Type: nav.AirspaceType(m.Type),
				LowerLimit: m.LowerLimit, UpperLimit: m.UpperLimit,
				CreatedAt: now,
			}
			if m.Class != nil {
				c := nav.AirspaceClass(*m.Class)
				a.Class = &c
			}
			for _, v := range m.Boundary {
				a.Boundary = append(a.Boundary, geo.Coordinate{Latitude: v.Latitude, Longitude: v.Longitude})
			}
			err = s.store.UpsertAirspace(ctx, a)
		}
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}

	if err != nil {
		return fmt.Errorf("apply %s: %w", kind, err)
	}

	s.recordApplied(kind, now)
	return nil
}

// recordApplied counts the update and (re)arms the debounced refresh. Only
// point kinds affect the spatial index; airways and airspaces are
// storage-only.
func (s *Subscriber) recordApplied(kind string, now int64) {
	s.mu.Lock()
	s.applied[kind]++
	count := s.applied[kind]
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.RefreshDebounce, s.refresh)
	s.mu.Unlock()

	_ = s.store.SetSyncMetadata(context.Background(), kind+"s", now, count)
}

func (s *Subscriber) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.engine.Refresh(ctx); err != nil {
		log.Printf("navsync: refresh after sync batch: %v", err)
		return
	}

	s.mu.Lock()
	total := 0
	for _, n := range s.applied {
		total += n
	}
	s.mu.Unlock()
	log.Printf("navsync: index refreshed after %d applied updates", total)
}
