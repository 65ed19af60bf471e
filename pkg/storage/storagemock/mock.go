package storagemock

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) UpsertRates(ctx context.Context, kind types.Kind, rates []types.Rate) (storage.UpsertResult, error) {
	args := m.Called(ctx, kind, rates)
	if len(args) > 0 {
		return args.Get(0).(storage.UpsertResult), args.Error(1)
	}
	return storage.UpsertResult{Written: len(rates)}, nil
}

func (m *MockDatabase) GetRatesForDay(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error) {
	args := m.Called(ctx, kind, day)
	if len(args) > 0 {
		val := args.Get(0)
		if val == nil {
			return nil, args.Error(1)
		}
		return val.([]types.Rate), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetAvailableDays(ctx context.Context, kind types.Kind) ([]civil.Date, error) {
	args := m.Called(ctx, kind)
	if len(args) > 0 {
		val := args.Get(0)
		if val == nil {
			return nil, args.Error(1)
		}
		return val.([]civil.Date), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
