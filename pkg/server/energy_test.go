package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/raterudder/energyrates/pkg/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decodeFailure(t *testing.T, rr *httptest.ResponseRecorder) failureResponse {
	t.Helper()
	var resp failureResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestGetRatesValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/energy/electricity", "/api/v1/energy/gas"} {
		t.Run("MissingDate"+path, func(t *testing.T) {
			rr := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			resp := decodeFailure(t, rr)
			assert.False(t, resp.Success)
			assert.Equal(t, "Date parameter is required (format: YYYY-MM-DD)", resp.Message)
		})

		t.Run("InvalidDate"+path, func(t *testing.T) {
			for _, date := range []string{"01-06-2025", "2025-02-30", "today"} {
				rr := ts.do(httptest.NewRequest(http.MethodGet, path+"?date="+date, nil))
				assert.Equal(t, http.StatusBadRequest, rr.Code, date)
				assert.Equal(t, "Invalid date format. Use YYYY-MM-DD", decodeFailure(t, rr).Message, date)
			}
		})
	}
	ts.fetcher.AssertNotCalled(t, "FetchRates", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetElectricityRates(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.db.UpsertRates(context.Background(), types.KindElectricity, hourlyRates(testDay, 24))
	require.NoError(t, err)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/electricity?date=2025-06-01", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=3600", rr.Header().Get("Cache-Control"))

	var resp ratesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, 24)
	assert.Equal(t, ratesMeta{Count: 24, Type: "electricity_rates", Date: "2025-06-01", CompleteDay: true}, resp.Meta)
	assert.Equal(t, testDay, resp.Data[0].RateDate)
	assert.True(t, resp.Data[0].PeriodStart.Before(resp.Data[1].PeriodStart))

	// the stored rates were fresh
	ts.fetcher.AssertNotCalled(t, "FetchRates", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetGasRatesSyncsEmptyDay(t *testing.T) {
	ts := newTestServer(t, withToday(testDay))
	ts.fetcher.On("FetchRates", mock.Anything, types.KindGas, testDay).Return(hourlyRates(testDay, 10), nil).Once()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/gas?date=2025-06-01", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "private, max-age=60", rr.Header().Get("Cache-Control"))

	var resp ratesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.Data, 10)
	assert.Equal(t, "gas_rates", resp.Meta.Type)
	assert.False(t, resp.Meta.CompleteDay)
	ts.fetcher.AssertExpectations(t)
}

func TestGetRatesEmptyResult(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.On("FetchRates", mock.Anything, types.KindGas, testDay).Return([]types.Rate{}, nil).Once()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/gas?date=2025-06-01", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":[],"meta":{"count":0,"type":"gas_rates","date":"2025-06-01","complete_day":false}}`, rr.Body.String())
}

func TestGetRatesDSTDay(t *testing.T) {
	// clocks go forward, so 23 hours make a complete day
	day := civil.Date{Year: 2025, Month: 3, Day: 30}
	ts := newTestServer(t)
	_, err := ts.db.UpsertRates(context.Background(), types.KindElectricity, hourlyRates(day, 23))
	require.NoError(t, err)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/electricity?date=2025-03-30", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ratesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 23, resp.Meta.Count)
	assert.True(t, resp.Meta.CompleteDay)
}

func TestGetRatesUpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	upstream := &utility.UpstreamError{Kind: types.KindElectricity, Day: testDay, StatusCode: http.StatusBadGateway, Err: errors.New("api request failed")}
	ts.fetcher.On("FetchRates", mock.Anything, types.KindElectricity, testDay).Return(nil, upstream).Once()

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/electricity?date=2025-06-01", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get("Cache-Control"))
	resp := decodeFailure(t, rr)
	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to retrieve electricity rates", resp.Message)
	assert.NotEmpty(t, resp.Error)
}

func TestGetAvailableDays(t *testing.T) {
	ctx := context.Background()
	d1 := testDay
	d2 := d1.AddDays(1)
	d3 := d1.AddDays(2)

	t.Run("Empty", func(t *testing.T) {
		ts := newTestServer(t)
		rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/available-days", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"data":{"electricity_days":[],"gas_days":[],"common_days":[]},"meta":{"electricity_count":0,"gas_count":0}}`, rr.Body.String())
	})

	t.Run("Populated", func(t *testing.T) {
		ts := newTestServer(t)
		for _, d := range []civil.Date{d1, d2, d3} {
			_, err := ts.db.UpsertRates(ctx, types.KindElectricity, hourlyRates(d, 2))
			require.NoError(t, err)
		}
		for _, d := range []civil.Date{d1, d3} {
			_, err := ts.db.UpsertRates(ctx, types.KindGas, hourlyRates(d, 2))
			require.NoError(t, err)
		}

		rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/available-days", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp availableDaysResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, []civil.Date{d3, d2, d1}, resp.Data.ElectricityDays)
		assert.Equal(t, []civil.Date{d3, d1}, resp.Data.GasDays)
		assert.Equal(t, []civil.Date{d3, d1}, resp.Data.CommonDays)
		assert.Equal(t, availableDaysMeta{ElectricityCount: 3, GasCount: 2}, resp.Meta)
	})

	t.Run("StoreClosed", func(t *testing.T) {
		ts := newTestServer(t)
		require.NoError(t, ts.db.Close())
		rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/energy/available-days", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Failed to retrieve available days", decodeFailure(t, rr).Message)
	})
}
