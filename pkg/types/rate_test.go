package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRate(t *testing.T) Rate {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	start := time.Date(2025, 6, 1, 14, 0, 0, 0, loc)
	return Rate{
		PeriodStart:           start,
		PeriodEnd:             start.Add(time.Hour),
		RateDate:              civil.Date{Year: 2025, Month: time.June, Day: 1},
		Period:                "14:00-15:00",
		MarketPrice:           202500,
		TotalPriceTaxIncluded: 250000,
		PriceInclHandlingVAT:  240000,
		PriceTaxWithVAT:       230000,
		Currency:              DefaultCurrency,
		Metadata:              map[string]any{"source": "zonneplan_api"},
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("electricity")
	require.NoError(t, err)
	assert.Equal(t, KindElectricity, k)

	k, err = ParseKind("gas")
	require.NoError(t, err)
	assert.Equal(t, KindGas, k)

	_, err = ParseKind("water")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Field)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 1}, d)

	for _, s := range []string{"", "2025-13-01", "01-06-2025", "2025-06-01T00:00:00Z", "yesterday"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseDay(s)
			assert.ErrorIs(t, err, ErrInvalidDay)
		})
	}
}

func TestRateKey(t *testing.T) {
	r := testRate(t)
	utc := r
	utc.PeriodStart = r.PeriodStart.UTC()
	utc.PeriodEnd = r.PeriodEnd.UTC()

	assert.Equal(t, r.Key(), utc.Key(), "keys should not depend on location")
	assert.Equal(t, "2025-06-01T12:00:00Z_2025-06-01T13:00:00Z", r.ID())
}

func TestRateValidate(t *testing.T) {
	require.NoError(t, testRate(t).Validate())

	tests := []struct {
		name   string
		modify func(r *Rate)
	}{
		{"missing start", func(r *Rate) { r.PeriodStart = time.Time{} }},
		{"missing end", func(r *Rate) { r.PeriodEnd = time.Time{} }},
		{"end before start", func(r *Rate) { r.PeriodEnd = r.PeriodStart.Add(-time.Hour) }},
		{"zero length", func(r *Rate) { r.PeriodEnd = r.PeriodStart }},
		{"missing rate date", func(r *Rate) { r.RateDate = civil.Date{} }},
		{"missing period", func(r *Rate) { r.Period = "" }},
		{"bad currency", func(r *Rate) { r.Currency = "EURO" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRate(t)
			tt.modify(&r)
			err := r.Validate()
			assert.True(t, errors.Is(err, ErrInvalidRate), "got %v", err)
		})
	}
}

func TestRateJSON(t *testing.T) {
	t.Run("Gas", func(t *testing.T) {
		r := testRate(t)
		b, err := json.Marshal(r)
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		assert.Equal(t, "2025-06-01T12:00:00.000Z", m["period_start"])
		assert.Equal(t, "2025-06-01T13:00:00.000Z", m["period_end"])
		assert.Equal(t, "2025-06-01", m["rate_date"])
		assert.Equal(t, float64(202500), m["market_price"])
		assert.Equal(t, "EUR", m["currency"])
		assert.NotContains(t, m, "pricing_profile")
		assert.NotContains(t, m, "updated_at")

		euros := m["prices_in_euros"].(map[string]any)
		assert.InDelta(t, 0.2025, euros["market_price"], 0.0000001)
		assert.InDelta(t, 0.25, euros["total_price_tax_included"], 0.0000001)
		assert.InDelta(t, 0.24, euros["price_incl_handling_vat"], 0.0000001)
		assert.InDelta(t, 0.23, euros["price_tax_with_vat"], 0.0000001)
	})

	t.Run("ElectricityNulls", func(t *testing.T) {
		r := testRate(t)
		r.Electricity = &ElectricityDetails{}
		b, err := json.Marshal(r)
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		assert.Contains(t, m, "pricing_profile")
		assert.Nil(t, m["pricing_profile"])
		assert.Contains(t, m, "carbon_footprint_in_gram")
		assert.Contains(t, m, "sustainability_score")
	})

	t.Run("RoundTrip", func(t *testing.T) {
		profile := "normal"
		carbon := int64(312)
		r := testRate(t)
		r.Electricity = &ElectricityDetails{PricingProfile: &profile, CarbonFootprintInGram: &carbon}
		r.UpdatedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		b, err := json.Marshal(r)
		require.NoError(t, err)

		var got Rate
		require.NoError(t, json.Unmarshal(b, &got))
		assert.True(t, r.PeriodStart.Equal(got.PeriodStart))
		assert.True(t, r.PeriodEnd.Equal(got.PeriodEnd))
		assert.True(t, r.UpdatedAt.Equal(got.UpdatedAt))
		assert.Equal(t, r.RateDate, got.RateDate)
		assert.Equal(t, r.TotalPriceTaxIncluded, got.TotalPriceTaxIncluded)
		require.NotNil(t, got.Electricity)
		assert.Equal(t, "normal", *got.Electricity.PricingProfile)
		assert.Equal(t, int64(312), *got.Electricity.CarbonFootprintInGram)
		assert.Nil(t, got.Electricity.SustainabilityScore)
		assert.Equal(t, "zonneplan_api", got.Metadata["source"])
	})
}

func TestDaysBetween(t *testing.T) {
	start := civil.Date{Year: 2025, Month: time.February, Day: 27}
	end := civil.Date{Year: 2025, Month: time.March, Day: 1}
	assert.Equal(t, []civil.Date{
		start,
		{Year: 2025, Month: time.February, Day: 28},
		end,
	}, DaysBetween(start, end))

	assert.Equal(t, []civil.Date{start}, DaysBetween(start, start))
	assert.Nil(t, DaysBetween(end, start))
}

func TestDayOf(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	// 22:30 UTC on May 31 is already June 1 in Amsterdam
	ts := time.Date(2025, 5, 31, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 1}, DayOf(ts, loc))
	assert.Equal(t, civil.Date{Year: 2025, Month: time.May, Day: 31}, DayOf(ts, time.UTC))
}

func TestHoursInDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	assert.Equal(t, 24, HoursInDay(civil.Date{Year: 2025, Month: time.June, Day: 1}, loc))
	assert.Equal(t, 23, HoursInDay(civil.Date{Year: 2025, Month: time.March, Day: 30}, loc))
	assert.Equal(t, 25, HoursInDay(civil.Date{Year: 2025, Month: time.October, Day: 26}, loc))
	assert.Equal(t, 24, HoursInDay(civil.Date{Year: 2025, Month: time.March, Day: 30}, time.UTC))
}
