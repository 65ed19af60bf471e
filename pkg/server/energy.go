package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/types"
)

const (
	msgDateRequired = "Date parameter is required (format: YYYY-MM-DD)"
	msgDateInvalid  = "Invalid date format. Use YYYY-MM-DD"

	// past days no longer change once synced
	pastDayMaxAge    = 3600
	currentDayMaxAge = 60
)

type ratesMeta struct {
	Count       int    `json:"count"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	CompleteDay bool   `json:"complete_day"`
}

type ratesResponse struct {
	Success bool         `json:"success"`
	Data    []types.Rate `json:"data"`
	Meta    ratesMeta    `json:"meta"`
}

// parseDateParam reads the required date query parameter, writing a 400 and
// returning false when it is missing or malformed.
func parseDateParam(w http.ResponseWriter, r *http.Request) (civil.Date, bool) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeJSONError(w, msgDateRequired, http.StatusBadRequest)
		return civil.Date{}, false
	}
	day, err := types.ParseDay(dateStr)
	if err != nil {
		log.Ctx(r.Context()).DebugContext(r.Context(), "invalid date parameter", slog.String("date", dateStr))
		writeJSONError(w, msgDateInvalid, http.StatusBadRequest)
		return civil.Date{}, false
	}
	return day, true
}

func (s *Server) handleGetElectricityRates(w http.ResponseWriter, r *http.Request) {
	s.handleGetRates(w, r, types.KindElectricity)
}

func (s *Server) handleGetGasRates(w http.ResponseWriter, r *http.Request) {
	s.handleGetRates(w, r, types.KindGas)
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request, kind types.Kind) {
	ctx := r.Context()
	day, ok := parseDateParam(w, r)
	if !ok {
		return
	}

	rates, err := s.rates.GetRatesWithFreshness(ctx, kind, day)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get rates", slog.String("kind", string(kind)), slog.String("date", day.String()), slog.Any("error", err))
		writeJSONFailure(w, fmt.Sprintf("Failed to retrieve %s rates", kind), err, http.StatusInternalServerError)
		return
	}
	if rates == nil {
		rates = []types.Rate{}
	}

	policy := s.rates.Policy()
	maxAge := currentDayMaxAge
	if day.Before(policy.Today()) {
		maxAge = pastDayMaxAge
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAge))

	writeJSON(w, ratesResponse{
		Success: true,
		Data:    rates,
		Meta: ratesMeta{
			Count:       len(rates),
			Type:        string(kind) + "_rates",
			Date:        day.String(),
			CompleteDay: len(rates) >= policy.HoursInDay(day),
		},
	}, http.StatusOK)
}

type availableDaysData struct {
	ElectricityDays []civil.Date `json:"electricity_days"`
	GasDays         []civil.Date `json:"gas_days"`
	CommonDays      []civil.Date `json:"common_days"`
}

type availableDaysMeta struct {
	ElectricityCount int `json:"electricity_count"`
	GasCount         int `json:"gas_count"`
}

type availableDaysResponse struct {
	Success bool              `json:"success"`
	Data    availableDaysData `json:"data"`
	Meta    availableDaysMeta `json:"meta"`
}

func nonNilDays(days []civil.Date) []civil.Date {
	if days == nil {
		return []civil.Date{}
	}
	return days
}

func (s *Server) handleGetAvailableDays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := s.rates.GetAvailableDaysAll(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get available days", slog.Any("error", err))
		writeJSONFailure(w, "Failed to retrieve available days", err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", currentDayMaxAge))
	writeJSON(w, availableDaysResponse{
		Success: true,
		Data: availableDaysData{
			ElectricityDays: nonNilDays(days.Electricity),
			GasDays:         nonNilDays(days.Gas),
			CommonDays:      nonNilDays(days.Common),
		},
		Meta: availableDaysMeta{
			ElectricityCount: len(days.Electricity),
			GasCount:         len(days.Gas),
		},
	}, http.StatusOK)
}
