package nav

import "errors"

// Error kinds shared across the service. Callers wrap these with context via
// fmt.Errorf("...: %w", ...) and distinguish them with errors.Is; there is no
// process-wide last-error state.
var (
	// ErrInvalidInput covers malformed coordinates, non-positive radii and
	// out-of-range flight-plan parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when an airport, waypoint, navaid or device key
	// does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized is returned when the spatial index or store is
	// queried before a successful load.
	ErrNotInitialized = errors.New("not initialized")

	// ErrInternal marks post-validation lookup failures and other
	// data-integrity faults that should never occur on a consistent snapshot.
	ErrInternal = errors.New("internal inconsistency")
)
