package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/azzurro/pkg/types"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceExists   = errors.New("device already exists")
)

// Database persists the registered devices. Telemetry is never stored.
type Database interface {
	// Devices
	ListDevices(ctx context.Context) ([]types.Device, error)
	GetDevice(ctx context.Context, thingKey string) (types.Device, error)
	// CreateDevice returns ErrDeviceExists when the thing key is taken.
	CreateDevice(ctx context.Context, device types.Device) error
	// DeleteDevice returns ErrDeviceNotFound when the thing key is unknown.
	DeleteDevice(ctx context.Context, thingKey string) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, memory)")
	thingKeys := lflag.String("thing-keys", "", "comma-delimited list of thing keys to register at startup with the memory provider")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			m := NewMemory()
			for _, key := range splitThingKeys(*thingKeys) {
				if err := m.CreateDevice(context.Background(), types.Device{ThingKey: key}); err != nil && !errors.Is(err, ErrDeviceExists) {
					panic(fmt.Sprintf("failed to register %s: %v", key, err))
				}
			}
			p.Database = m
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

func splitThingKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// validateDevice rejects thing keys that cannot be used as document IDs.
func validateDevice(device types.Device) error {
	switch {
	case device.ThingKey == "":
		return errors.New("thingKey cannot be empty")
	case strings.ContainsAny(device.ThingKey, "/ \t\n"):
		return fmt.Errorf("invalid thingKey: %q", device.ThingKey)
	case device.ThingKey == "." || device.ThingKey == "..":
		return fmt.Errorf("invalid thingKey: %q", device.ThingKey)
	}
	return nil
}
