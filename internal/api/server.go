// Package api provides REST API endpoints for navigational reference data.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aerobase/internal/flight"
	"aerobase/internal/geo"
	"aerobase/internal/nav"
	"aerobase/internal/service"
)

// Server provides REST API access to the reference-data service.
type Server struct {
	svc         *service.Service
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates a new API server.
func NewServer(svc *service.Service, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		svc:         svc,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("AeroBase API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/airports/near", s.handleNear(nav.KindAirport))
	r.Get("/waypoints/near", s.handleNear(nav.KindWaypoint))
	r.Get("/navaids/near", s.handleNear(nav.KindNavaid))
	r.Get("/nearest", s.handleNearest)
	r.Post("/flightplan/validate", s.handleValidate)
	r.Post("/flightplan/route", s.handleRoute)
	r.Get("/device", s.handleDevice)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PointResponse is one proximity query result.
type PointResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DistanceNM float64 `json:"distance_nm"`
}

func pointsToResponse(center geo.Coordinate, pts []nav.Point) []PointResponse {
	out := make([]PointResponse, 0, len(pts))
	for _, p := range pts {
		out = append(out, PointResponse{
			ID:         p.ID,
			Name:       p.Name,
			Kind:       string(p.Kind),
			Latitude:   p.Coordinate.Latitude,
			Longitude:  p.Coordinate.Longitude,
			DistanceNM: geo.Distance(center, p.Coordinate),
		})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleNear serves /{kind}s/near?lat=&lon=&radius_nm=.
func (s *Server) handleNear(kind nav.PointKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		center, ok := parseCenter(w, r)
		if !ok {
			return
		}
		radius, err := strconv.ParseFloat(r.URL.Query().Get("radius_nm"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "radius_nm is required and must be a number")
			return
		}

		var pts []nav.Point
		switch kind {
		case nav.KindAirport:
			pts, err = s.svc.FindAirportsWithin(r.Context(), center, radius)
		case nav.KindWaypoint:
			pts, err = s.svc.FindWaypointsWithin(r.Context(), center, radius)
		case nav.KindNavaid:
			pts, err = s.svc.FindNavaidsWithin(r.Context(), center, radius)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, pointsToResponse(center, pts))
	}
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	center, ok := parseCenter(w, r)
	if !ok {
		return
	}

	kind := nav.PointKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", nav.KindAirport, nav.KindWaypoint, nav.KindNavaid:
	default:
		writeError(w, http.StatusBadRequest, "kind must be airport, waypoint or navaid")
		return
	}

	pt, err := s.svc.Nearest(r.Context(), center, kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pointsToResponse(center, []nav.Point{pt})[0])
}

// ValidateResponse reports the outcome of a validation request.
type ValidateResponse struct {
	Valid  bool   `json:"valid"`
	Check  string `json:"check,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	plan, ok := decodePlan(w, r)
	if !ok {
		return
	}

	err := s.svc.ValidateFlightPlan(r.Context(), plan)
	if err == nil {
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
		return
	}

	var verr *flight.ValidationError
	if errors.As(err, &verr) {
		// A failed check is a successful validation request.
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Check: verr.Check, Reason: verr.Reason})
		return
	}
	writeServiceError(w, err)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	plan, ok := decodePlan(w, r)
	if !ok {
		return
	}

	route, err := s.svc.CalculateRoute(r.Context(), plan)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// DeviceResponse describes this host's device registration.
type DeviceResponse struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   int64  `json:"created_at"`
	LastSeen    int64  `json:"last_seen"`
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.DeviceFingerprint(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeviceResponse{
		ID:          d.ID,
		Fingerprint: d.Fingerprint,
		CreatedAt:   d.CreatedAt,
		LastSeen:    d.LastSeen,
	})
}

// Helper functions.

func parseCenter(w http.ResponseWriter, r *http.Request) (geo.Coordinate, bool) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required and must be numbers")
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Latitude: lat, Longitude: lon}, true
}

func decodePlan(w http.ResponseWriter, r *http.Request) (flight.Plan, bool) {
	var plan flight.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return flight.Plan{}, false
	}
	return plan, true
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nav.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, nav.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, nav.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
