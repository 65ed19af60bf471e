package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
)

// Database persists rates per kind. Implementations must be safe for
// concurrent use.
type Database interface {
	// UpsertRates writes rates keyed by their period, overwriting the mutable
	// fields of existing records. Invalid records are reported in the result
	// and the rest are still written.
	UpsertRates(ctx context.Context, kind types.Kind, rates []types.Rate) (UpsertResult, error)

	// GetRatesForDay returns the stored rates whose RateDate is day, ordered
	// by PeriodStart.
	GetRatesForDay(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error)

	// GetAvailableDays returns every distinct RateDate stored for kind,
	// newest first.
	GetAvailableDays(ctx context.Context, kind types.Kind) ([]civil.Date, error)

	// Lifecycle
	Close() error
}

// RejectedRate is a record that failed validation and was not written.
type RejectedRate struct {
	Rate types.Rate
	Err  error
}

// UpsertResult summarizes an UpsertRates call.
type UpsertResult struct {
	Written  int
	Rejected []RejectedRate
}

// Err joins the rejection errors, or returns nil if nothing was rejected.
func (r UpsertResult) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Rejected))
	for _, rej := range r.Rejected {
		errs = append(errs, fmt.Errorf("rate %s: %w", rej.Rate.ID(), rej.Err))
	}
	return errors.Join(errs...)
}

// StoreError wraps any failure of the underlying database.
type StoreError struct {
	Op   string
	Kind types.Kind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// prepareRates validates rates and collapses duplicate keys to the last
// occurrence. Accepted rates are stamped with now and returned in first-seen
// key order.
func prepareRates(rates []types.Rate, now time.Time) ([]types.Rate, []RejectedRate) {
	var rejected []RejectedRate
	index := make(map[types.RateKey]int, len(rates))
	accepted := make([]types.Rate, 0, len(rates))
	for _, r := range rates {
		if err := r.Validate(); err != nil {
			rejected = append(rejected, RejectedRate{Rate: r, Err: err})
			continue
		}
		r.UpdatedAt = now
		if i, ok := index[r.Key()]; ok {
			accepted[i] = r
			continue
		}
		index[r.Key()] = len(accepted)
		accepted = append(accepted, r)
	}
	return accepted, rejected
}

// sortByPeriodStart orders rates chronologically. Stores that cannot order on
// the server use it before returning a day.
func sortByPeriodStart(rates []types.Rate) {
	sort.Slice(rates, func(i, j int) bool {
		return rates[i].PeriodStart.Before(rates[j].PeriodStart)
	})
}
