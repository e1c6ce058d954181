// Package device derives a stable hardware fingerprint for this machine and
// registers it in the device table. The fingerprint is a SHA-256 over the
// machine id, so reinstalling the software on the same host resolves to the
// same device row.
package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"aerobase/internal/nav"
)

// Store is the slice of the storage gateway device registration needs.
type Store interface {
	GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*nav.Device, error)
	UpsertDevice(ctx context.Context, d nav.Device) error
}

// Fingerprint returns the hex SHA-256 fingerprint of this machine. The
// machine id is preferred; hosts without one fall back to a hash over
// platform, kernel, hostname, CPU and memory attributes.
func Fingerprint(ctx context.Context) (string, error) {
	h := sha256.New()

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read host info: %w", err)
	}

	if info.HostID != "" {
		h.Write([]byte(info.HostID))
	} else {
		h.Write([]byte(info.Platform))
		h.Write([]byte(info.PlatformVersion))
		h.Write([]byte(info.KernelVersion))
		h.Write([]byte(info.Hostname))

		if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
			fmt.Fprintf(h, "%d", len(cpus))
			h.Write([]byte(cpus[0].ModelName))
		}
		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			fmt.Fprintf(h, "%d", vm.Total)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// hardwareInfo is the JSON shape stored alongside a registration.
type hardwareInfo struct {
	Hostname      string `json:"hostname"`
	Platform      string `json:"platform"`
	OSVersion     string `json:"os_version"`
	KernelVersion string `json:"kernel_version"`
	CPUCount      int    `json:"cpu_count"`
	CPUModel      string `json:"cpu_model,omitempty"`
	TotalMemoryMB uint64 `json:"total_memory_mb"`
	Architecture  string `json:"architecture"`
	OS            string `json:"os"`
}

// HardwareInfo returns a JSON description of this machine.
func HardwareInfo(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read host info: %w", err)
	}

	hw := hardwareInfo{
		Hostname:      info.Hostname,
		Platform:      info.Platform,
		OSVersion:     info.PlatformVersion,
		KernelVersion: info.KernelVersion,
		Architecture:  runtime.GOARCH,
		OS:            runtime.GOOS,
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		hw.CPUCount = len(cpus)
		hw.CPUModel = cpus[0].ModelName
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hw.TotalMemoryMB = vm.Total / 1024 / 1024
	}

	out, err := json.Marshal(hw)
	if err != nil {
		return "", fmt.Errorf("marshal hardware info: %w", err)
	}
	return string(out), nil
}

// Register resolves this machine to a device row, creating one on first
// contact. Re-registration keeps the original id and created_at and bumps
// last_seen.
func Register(ctx context.Context, store Store) (*nav.Device, error) {
	fp, err := Fingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	return RegisterFingerprint(ctx, store, fp)
}

// RegisterFingerprint is Register for an already-computed fingerprint.
func RegisterFingerprint(ctx context.Context, store Store, fingerprint string) (*nav.Device, error) {
	now := time.Now().Unix()

	hw, err := HardwareInfo(ctx)
	var hwPtr *string
	if err == nil {
		hwPtr = &hw
	}

	d := nav.Device{
		ID:           uuid.NewString(),
		Fingerprint:  fingerprint,
		HardwareInfo: hwPtr,
		CreatedAt:    now,
		LastSeen:     now,
	}
	if err := store.UpsertDevice(ctx, d); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}

	// The upsert keeps the stored id when the fingerprint was already
	// known, so read the row back for the canonical identity.
	got, err := store.GetDeviceByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	if got == nil {
		return nil, fmt.Errorf("device vanished after upsert: %w", nav.ErrInternal)
	}
	return got, nil
}
