package utilitymock

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/raterudder/energyrates/pkg/utility"
	"github.com/stretchr/testify/mock"
)

type MockFetcher struct {
	mock.Mock
}

var _ utility.Fetcher = (*MockFetcher)(nil)

func (m *MockFetcher) FetchRates(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error) {
	args := m.Called(ctx, kind, day)
	val := args.Get(0)
	if val == nil {
		return nil, args.Error(1)
	}
	return val.([]types.Rate), args.Error(1)
}
