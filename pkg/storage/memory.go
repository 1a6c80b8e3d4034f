package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/azzurro/pkg/types"
)

// MemoryProvider keeps devices in process memory. Registrations are lost on
// restart.
type MemoryProvider struct {
	mu      sync.Mutex
	devices map[string]types.Device
	now     func() time.Time
}

var _ Database = (*MemoryProvider)(nil)

// NewMemory returns an empty MemoryProvider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{
		devices: make(map[string]types.Device),
		now:     time.Now,
	}
}

func (m *MemoryProvider) ListDevices(ctx context.Context) ([]types.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]types.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	slices.SortFunc(devices, func(a, b types.Device) int {
		return strings.Compare(a.ThingKey, b.ThingKey)
	})
	return devices, nil
}

func (m *MemoryProvider) GetDevice(ctx context.Context, thingKey string) (types.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[thingKey]
	if !ok {
		return types.Device{}, ErrDeviceNotFound
	}
	return d, nil
}

func (m *MemoryProvider) CreateDevice(ctx context.Context, device types.Device) error {
	if err := validateDevice(device); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[device.ThingKey]; ok {
		return ErrDeviceExists
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = m.now().UTC()
	}
	m.devices[device.ThingKey] = device
	return nil
}

func (m *MemoryProvider) DeleteDevice(ctx context.Context, thingKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[thingKey]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, thingKey)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
