package utility

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
)

// Fetcher retrieves the rates the supplier publishes for one calendar day.
type Fetcher interface {
	// FetchRates returns the supplier's rates for day, already transformed
	// into types.Rate. Failures are returned as *UpstreamError.
	FetchRates(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error)
}
