package nav

// Device is a registered client installation identified by a stable hardware
// fingerprint. HardwareInfo is an opaque JSON blob describing the machine the
// fingerprint was derived from.
type Device struct {
	ID           string
	Fingerprint  string
	HardwareInfo *string
	CreatedAt    int64 // epoch seconds
	LastSeen     int64 // epoch seconds
}
