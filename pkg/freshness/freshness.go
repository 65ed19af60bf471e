// Package freshness decides whether stored rates for a day can be served or
// must be refreshed from the supplier.
package freshness

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
)

const (
	// DefaultRecentThreshold applies to today and future days, whose
	// day-ahead prices are still being published.
	DefaultRecentThreshold = 5 * time.Minute

	// DefaultPastThreshold applies to days that are over. Their prices are
	// final and only need occasional re-validation.
	DefaultPastThreshold = 12 * time.Hour

	// DefaultMinElectricityRecords tolerates a 23 hour DST day and the
	// supplier occasionally dropping the first hour.
	DefaultMinElectricityRecords = 23
)

// Reason explains a Decision.
type Reason string

const (
	ReasonEmpty         Reason = "empty"
	ReasonIncomplete    Reason = "incomplete"
	ReasonRecentExpired Reason = "recent_expired"
	ReasonPastExpired   Reason = "past_expired"
	ReasonFresh         Reason = "fresh"
)

// Decision is the outcome of evaluating a day's stored rates.
type Decision struct {
	Stale  bool
	Reason Reason
}

// Policy holds the thresholds and clock used to judge staleness. Zero fields
// fall back to the defaults.
type Policy struct {
	// Now returns the reference time. It defaults to time.Now.
	Now func() time.Time

	// Location determines which calendar day "today" is.
	Location *time.Location

	RecentThreshold       time.Duration
	PastThreshold         time.Duration
	MinElectricityRecords int
}

// DefaultPolicy returns a Policy with the standard thresholds, judging days in
// loc.
func DefaultPolicy(loc *time.Location) Policy {
	return Policy{
		Now:                   time.Now,
		Location:              loc,
		RecentThreshold:       DefaultRecentThreshold,
		PastThreshold:         DefaultPastThreshold,
		MinElectricityRecords: DefaultMinElectricityRecords,
	}
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) recentThreshold() time.Duration {
	if p.RecentThreshold <= 0 {
		return DefaultRecentThreshold
	}
	return p.RecentThreshold
}

func (p Policy) pastThreshold() time.Duration {
	if p.PastThreshold <= 0 {
		return DefaultPastThreshold
	}
	return p.PastThreshold
}

func (p Policy) minElectricityRecords() int {
	if p.MinElectricityRecords <= 0 {
		return DefaultMinElectricityRecords
	}
	return p.MinElectricityRecords
}

// Today returns the current calendar day in the policy's location.
func (p Policy) Today() civil.Date {
	return types.DayOf(p.now(), p.location())
}

// HoursInDay returns how many hourly records make up day in the policy's
// location.
func (p Policy) HoursInDay(day civil.Date) int {
	return types.HoursInDay(day, p.location())
}

// IsStale reports whether records, the stored rates for one day of kind, must
// be refreshed.
func (p Policy) IsStale(kind types.Kind, records []types.Rate) bool {
	return p.Decide(kind, records).Stale
}

// Decide evaluates records and returns whether they are stale and why.
//
// The gas series has no record-count floor.
func (p Policy) Decide(kind types.Kind, records []types.Rate) Decision {
	if len(records) == 0 {
		return Decision{Stale: true, Reason: ReasonEmpty}
	}
	if kind == types.KindElectricity && len(records) < p.minElectricityRecords() {
		return Decision{Stale: true, Reason: ReasonIncomplete}
	}

	now := p.now()
	today := types.DayOf(now, p.location())

	var currentOrFuture bool
	for _, r := range records {
		if !r.RateDate.Before(today) {
			currentOrFuture = true
			break
		}
	}

	threshold, reason := p.pastThreshold(), ReasonPastExpired
	if currentOrFuture {
		threshold, reason = p.recentThreshold(), ReasonRecentExpired
	}
	cutoff := now.Add(-threshold)
	for _, r := range records {
		if r.UpdatedAt.IsZero() || r.UpdatedAt.Before(cutoff) {
			return Decision{Stale: true, Reason: reason}
		}
	}
	return Decision{Stale: false, Reason: ReasonFresh}
}
