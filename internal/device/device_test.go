package device

import (
	"context"
	"encoding/json"
	"testing"

	"aerobase/internal/nav"
)

// memStore fakes the device table with upsert-by-fingerprint semantics.
type memStore struct {
	byFingerprint map[string]nav.Device
}

func newMemStore() *memStore {
	return &memStore{byFingerprint: make(map[string]nav.Device)}
}

func (m *memStore) GetDeviceByFingerprint(_ context.Context, fp string) (*nav.Device, error) {
	d, ok := m.byFingerprint[fp]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memStore) UpsertDevice(_ context.Context, d nav.Device) error {
	if existing, ok := m.byFingerprint[d.Fingerprint]; ok {
		existing.LastSeen = d.LastSeen
		if d.HardwareInfo != nil {
			existing.HardwareInfo = d.HardwareInfo
		}
		m.byFingerprint[d.Fingerprint] = existing
		return nil
	}
	m.byFingerprint[d.Fingerprint] = d
	return nil
}

func TestFingerprintDeterministic(t *testing.T) {
	ctx := context.Background()

	fp1, err := Fingerprint(ctx)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fp2, err := Fingerprint(ctx)
	if err != nil {
		t.Fatalf("Fingerprint again: %v", err)
	}

	if fp1 != fp2 {
		t.Errorf("fingerprint not stable: %s != %s", fp1, fp2)
	}
	if len(fp1) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fp1))
	}
}

func TestHardwareInfoIsJSON(t *testing.T) {
	info, err := HardwareInfo(context.Background())
	if err != nil {
		t.Fatalf("HardwareInfo: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(info), &parsed); err != nil {
		t.Fatalf("hardware info is not valid JSON: %v", err)
	}
	if _, ok := parsed["architecture"]; !ok {
		t.Error("hardware info missing architecture")
	}
}

func TestRegisterGetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first, err := RegisterFingerprint(ctx, store, "fp-test")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if first.ID == "" {
		t.Fatal("registration produced empty id")
	}
	if first.Fingerprint != "fp-test" {
		t.Errorf("Fingerprint = %s", first.Fingerprint)
	}

	second, err := RegisterFingerprint(ctx, store, "fp-test")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-registration changed identity: %s -> %s", first.ID, second.ID)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Errorf("re-registration changed created_at: %d -> %d", first.CreatedAt, second.CreatedAt)
	}

	other, err := RegisterFingerprint(ctx, store, "fp-other")
	if err != nil {
		t.Fatalf("other register: %v", err)
	}
	if other.ID == first.ID {
		t.Error("distinct fingerprints shared a device id")
	}
}
