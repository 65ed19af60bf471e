package main

import (
	"fmt"
	"math/rand"
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
)

// prices are in micro-euros per unit
const (
	gasBase         = 1_150_000
	energyTax       = 110_000
	handlingFee     = 20_000
	vatPercent      = 21
	pricingNormal   = "normal"
	pricingLow      = "low"
	pricingPeak     = "high"
	sustainableHigh = 80
)

// electricityBase follows a typical day-ahead curve: cheap at night and
// midday, expensive around the morning and evening peaks.
func electricityBase(hour int) int64 {
	switch {
	case hour >= 7 && hour < 9:
		return 220_000
	case hour >= 11 && hour < 15:
		return 40_000
	case hour >= 17 && hour < 21:
		return 310_000
	case hour >= 21:
		return 120_000
	default:
		return 90_000
	}
}

func pricingProfile(hour int) string {
	switch {
	case hour >= 11 && hour < 15:
		return pricingLow
	case hour >= 17 && hour < 21:
		return pricingPeak
	default:
		return pricingNormal
	}
}

func withVAT(v int64) int64 {
	return v * (100 + vatPercent) / 100
}

// mockRates builds one hourly rate per hour of day in loc.
func mockRates(rng *rand.Rand, kind types.Kind, day civil.Date, loc *time.Location) []types.Rate {
	start := day.In(loc)
	end := day.AddDays(1).In(loc)
	var rates []types.Rate
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		hour := t.Hour()
		market := int64(gasBase)
		if kind == types.KindElectricity {
			market = electricityBase(hour)
		}
		// jitter by up to 2 cents
		market += rng.Int63n(40_000) - 20_000

		r := types.Rate{
			PeriodStart:           t,
			PeriodEnd:             t.Add(time.Hour),
			RateDate:              day,
			Period:                fmt.Sprintf("%s-%s", t.Format("15:04"), t.Add(time.Hour).Format("15:04")),
			MarketPrice:           market,
			PriceInclHandlingVAT:  withVAT(market + handlingFee),
			PriceTaxWithVAT:       withVAT(energyTax),
			TotalPriceTaxIncluded: withVAT(market + handlingFee + energyTax),
			Currency:              types.DefaultCurrency,
			Metadata: map[string]any{
				"source": "seed",
			},
		}
		if kind == types.KindElectricity {
			profile := pricingProfile(hour)
			carbon := int64(200 + rng.Intn(200))
			score := int64(rng.Intn(sustainableHigh))
			r.Electricity = &types.ElectricityDetails{
				PricingProfile:        &profile,
				CarbonFootprintInGram: &carbon,
				SustainabilityScore:   &score,
			}
		}
		rates = append(rates, r)
	}
	return rates
}
