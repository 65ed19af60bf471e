package main

import (
	"math/rand"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/raterudder/energyrates/pkg/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	loc := utility.Location()

	t.Run("Electricity", func(t *testing.T) {
		day := civil.Date{Year: 2025, Month: 6, Day: 1}
		rates := mockRates(rng, types.KindElectricity, day, loc)
		require.Len(t, rates, 24)
		for _, r := range rates {
			require.NoError(t, r.Validate())
			require.NotNil(t, r.Electricity)
			assert.Equal(t, day, r.RateDate)
			assert.Greater(t, r.TotalPriceTaxIncluded, r.MarketPrice)
		}
		assert.Equal(t, "00:00-01:00", rates[0].Period)
	})

	t.Run("GasOnDSTDay", func(t *testing.T) {
		day := civil.Date{Year: 2025, Month: 10, Day: 26}
		rates := mockRates(rng, types.KindGas, day, loc)
		assert.Len(t, rates, types.HoursInDay(day, loc))
		for _, r := range rates {
			assert.Nil(t, r.Electricity)
		}
	})
}
