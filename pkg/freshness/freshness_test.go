package freshness

import (
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var amsterdam = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		panic(fmt.Errorf("failed to load amsterdam location: %w", err))
	}
	return loc
}()

// dayRates builds n hourly rates for day, each last written at updatedAt.
func dayRates(day civil.Date, n int, updatedAt time.Time) []types.Rate {
	start := day.In(amsterdam)
	rates := make([]types.Rate, 0, n)
	for i := 0; i < n; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		rates = append(rates, types.Rate{
			PeriodStart: s,
			PeriodEnd:   s.Add(time.Hour),
			RateDate:    day,
			Period:      fmt.Sprintf("%02d:00-%02d:00", i, i+1),
			Currency:    types.DefaultCurrency,
			UpdatedAt:   updatedAt,
		})
	}
	return rates
}

func TestPolicy(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, amsterdam)
	today := civil.Date{Year: 2025, Month: time.June, Day: 2}
	yesterday := today.AddDays(-1)
	tomorrow := today.AddDays(1)

	p := DefaultPolicy(amsterdam)
	p.Now = func() time.Time { return now }

	tests := []struct {
		name    string
		kind    types.Kind
		records []types.Rate
		want    Decision
	}{
		{
			name:    "Empty",
			kind:    types.KindGas,
			records: nil,
			want:    Decision{Stale: true, Reason: ReasonEmpty},
		},
		{
			name:    "TodayFresh",
			kind:    types.KindElectricity,
			records: dayRates(today, 24, now.Add(-time.Minute)),
			want:    Decision{Stale: false, Reason: ReasonFresh},
		},
		{
			name:    "TodayExpired",
			kind:    types.KindElectricity,
			records: dayRates(today, 24, now.Add(-6*time.Minute)),
			want:    Decision{Stale: true, Reason: ReasonRecentExpired},
		},
		{
			name:    "TomorrowExpired",
			kind:    types.KindGas,
			records: dayRates(tomorrow, 24, now.Add(-10*time.Minute)),
			want:    Decision{Stale: true, Reason: ReasonRecentExpired},
		},
		{
			name:    "YesterdayWithinPastThreshold",
			kind:    types.KindElectricity,
			records: dayRates(yesterday, 24, now.Add(-11*time.Hour)),
			want:    Decision{Stale: false, Reason: ReasonFresh},
		},
		{
			name:    "YesterdayExpired",
			kind:    types.KindElectricity,
			records: dayRates(yesterday, 24, now.Add(-13*time.Hour)),
			want:    Decision{Stale: true, Reason: ReasonPastExpired},
		},
		{
			name:    "ElectricityIncomplete",
			kind:    types.KindElectricity,
			records: dayRates(yesterday, 10, now.Add(-time.Minute)),
			want:    Decision{Stale: true, Reason: ReasonIncomplete},
		},
		{
			name:    "ElectricityDSTDay",
			kind:    types.KindElectricity,
			records: dayRates(yesterday, 23, now.Add(-time.Minute)),
			want:    Decision{Stale: false, Reason: ReasonFresh},
		},
		{
			name:    "GasHasNoFloor",
			kind:    types.KindGas,
			records: dayRates(yesterday, 10, now.Add(-time.Minute)),
			want:    Decision{Stale: false, Reason: ReasonFresh},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Decide(tt.kind, tt.records))
			assert.Equal(t, tt.want.Stale, p.IsStale(tt.kind, tt.records))
		})
	}

	t.Run("MissingUpdatedAt", func(t *testing.T) {
		records := dayRates(yesterday, 24, now.Add(-time.Minute))
		records[5].UpdatedAt = time.Time{}
		assert.Equal(t, Decision{Stale: true, Reason: ReasonPastExpired}, p.Decide(types.KindElectricity, records))
	})

	t.Run("OneOldRecordToday", func(t *testing.T) {
		records := dayRates(today, 24, now.Add(-time.Minute))
		records[23].UpdatedAt = now.Add(-5*time.Minute - time.Second)
		assert.True(t, p.IsStale(types.KindElectricity, records))
	})

	t.Run("MixedDaysUseRecentThreshold", func(t *testing.T) {
		// one record for today is enough to apply the short threshold to all
		records := dayRates(yesterday, 23, now.Add(-time.Hour))
		records = append(records, dayRates(today, 1, now.Add(-time.Hour))...)
		assert.Equal(t, Decision{Stale: true, Reason: ReasonRecentExpired}, p.Decide(types.KindElectricity, records))
	})

	t.Run("TodayIsJudgedInLocation", func(t *testing.T) {
		// 23:30 UTC on June 1 is June 2 in Amsterdam, so June 1 is in the past
		utcPolicy := DefaultPolicy(amsterdam)
		utcNow := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
		utcPolicy.Now = func() time.Time { return utcNow }

		records := dayRates(yesterday, 24, utcNow.Add(-time.Hour))
		assert.False(t, utcPolicy.IsStale(types.KindElectricity, records))
	})
}

func TestPolicyProperties(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, amsterdam)
	today := types.DayOf(now, amsterdam)

	p := DefaultPolicy(amsterdam)
	p.Now = func() time.Time { return now }

	t.Run("EmptyAlwaysStale", func(t *testing.T) {
		for _, kind := range types.Kinds {
			assert.True(t, p.IsStale(kind, nil))
			assert.True(t, p.IsStale(kind, []types.Rate{}))
		}
	})

	t.Run("FullRecentTodayNeverStale", func(t *testing.T) {
		for n := 24; n <= 26; n++ {
			for age := time.Duration(0); age <= 5*time.Minute; age += 30 * time.Second {
				records := dayRates(today, n, now.Add(-age))
				require.False(t, p.IsStale(types.KindElectricity, records), "n=%d age=%s", n, age)
				require.False(t, p.IsStale(types.KindGas, records), "n=%d age=%s", n, age)
			}
		}
	})

	t.Run("PastOlderThanTwelveHoursAlwaysStale", func(t *testing.T) {
		for daysAgo := 1; daysAgo <= 30; daysAgo++ {
			for _, age := range []time.Duration{12*time.Hour + time.Second, 24 * time.Hour, 30 * 24 * time.Hour} {
				records := dayRates(today.AddDays(-daysAgo), 24, now.Add(-age))
				require.True(t, p.IsStale(types.KindElectricity, records), "daysAgo=%d age=%s", daysAgo, age)
				require.True(t, p.IsStale(types.KindGas, records), "daysAgo=%d age=%s", daysAgo, age)
			}
		}
	})
}

func TestPolicyDefaults(t *testing.T) {
	var p Policy
	// a zero Policy falls back to the wall clock, UTC and default thresholds
	records := dayRates(types.DayOf(time.Now(), time.UTC).AddDays(1), 24, time.Now())
	assert.False(t, p.IsStale(types.KindGas, records))
}

func TestPolicyToday(t *testing.T) {
	p := DefaultPolicy(amsterdam)
	p.Now = func() time.Time { return time.Date(2025, 5, 31, 22, 30, 0, 0, time.UTC) }
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 1}, p.Today())
}

func TestPolicyHoursInDay(t *testing.T) {
	p := DefaultPolicy(amsterdam)
	assert.Equal(t, 23, p.HoursInDay(civil.Date{Year: 2025, Month: time.March, Day: 30}))
	assert.Equal(t, 25, p.HoursInDay(civil.Date{Year: 2025, Month: time.October, Day: 26}))

	// no location falls back to UTC
	assert.Equal(t, 24, Policy{}.HoursInDay(civil.Date{Year: 2025, Month: time.March, Day: 30}))
}
