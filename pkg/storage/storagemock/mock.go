package storagemock

import (
	"context"

	"github.com/raterudder/azzurro/pkg/storage"
	"github.com/raterudder/azzurro/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) ListDevices(ctx context.Context) ([]types.Device, error) {
	args := m.Called(ctx)
	// return empty if not specified
	if len(args) > 0 {
		if args.Get(0) == nil {
			return nil, args.Error(1)
		}
		return args.Get(0).([]types.Device), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetDevice(ctx context.Context, thingKey string) (types.Device, error) {
	args := m.Called(ctx, thingKey)
	return args.Get(0).(types.Device), args.Error(1)
}

func (m *MockDatabase) CreateDevice(ctx context.Context, device types.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *MockDatabase) DeleteDevice(ctx context.Context, thingKey string) error {
	args := m.Called(ctx, thingKey)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
