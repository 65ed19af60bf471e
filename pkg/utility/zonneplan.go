package utility

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/types"
)

// SourceZonneplan is stamped into every rate's metadata.
const SourceZonneplan = "zonneplan_api"

// Zonneplan implements Fetcher for the Zonneplan energy price API.
// It retrieves hourly electricity and gas prices per calendar day.
type Zonneplan struct {
	apiURL string
	apiKey string
	client *http.Client
	now    func() time.Time
}

// NewZonneplan returns a client for the API at apiURL authenticated with
// apiKey.
func NewZonneplan(apiURL, apiKey string, client *http.Client) *Zonneplan {
	return &Zonneplan{
		apiURL: apiURL,
		apiKey: apiKey,
		client: client,
		now:    time.Now,
	}
}

type zonneplanResponse struct {
	Data []json.RawMessage `json:"data"`
}

// zonneplanEntry is one element of the response's data array. The API is
// inconsistent about sending numbers as JSON numbers or strings.
type zonneplanEntry struct {
	StartDate             flexInt `json:"start_date"`
	EndDate               flexInt `json:"end_date"`
	Period                string  `json:"period"`
	MarketPrice           flexInt `json:"market_price"`
	TotalPriceTaxIncluded flexInt `json:"total_price_tax_included"`
	PriceInclHandlingVAT  flexInt `json:"price_incl_handling_vat"`
	PriceTaxWithVAT       flexInt `json:"price_tax_with_vat"`

	PricingProfile        *string `json:"pricing_profile"`
	CarbonFootprintInGram flexInt `json:"carbon_footprint_in_gram"`
	SustainabilityScore   flexInt `json:"sustainability_score"`

	StartDateDatetime *string `json:"start_date_datetime"`
}

// flexInt decodes an integer sent as a number, a numeric string or null.
type flexInt struct {
	value int64
	valid bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*f = flexInt{}
		return nil
	}
	s := string(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = flexInt{}
			return nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt{value: n, valid: true}
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(fl) || math.IsInf(fl, 0) {
		return fmt.Errorf("invalid integer %q", s)
	}
	fl = math.Round(fl)
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit
	if fl >= math.MaxInt64 || fl < math.MinInt64 {
		return fmt.Errorf("integer %q out of range", s)
	}
	*f = flexInt{value: int64(fl), valid: true}
	return nil
}

func (f flexInt) ptr() *int64 {
	if !f.valid {
		return nil
	}
	v := f.value
	return &v
}

// queryParams builds the request query. The date is left off when day is
// today because the gas endpoint returns nothing for an explicit today.
func (z *Zonneplan) queryParams(day civil.Date) url.Values {
	params := url.Values{}
	params.Set("secret", z.apiKey)
	if day != types.DayOf(z.now(), amsLocation) {
		params.Set("date", day.String())
	}
	return params
}

// FetchRates retrieves the supplier's rates for day. Callers are expected to
// carry kind and date on the context logger.
func (z *Zonneplan) FetchRates(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error) {
	u, err := url.Parse(z.apiURL)
	if err != nil {
		return nil, &UpstreamError{Kind: kind, Day: day, Err: fmt.Errorf("invalid api url: %w", err)}
	}
	u = u.JoinPath(string(kind), "upcoming")
	u.RawQuery = z.queryParams(day).Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, &UpstreamError{Kind: kind, Day: day, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	// don't log the secret
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetching rates from zonneplan",
		slog.String("fetchDate", day.String()),
		slog.String("path", u.Path),
	)

	resp, err := z.client.Do(req)
	if err != nil {
		// url.Error includes the full URL which contains the secret
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		log.Ctx(ctx).ErrorContext(
			ctx,
			"failed to fetch rates",
			slog.Any("error", err),
		)
		return nil, &UpstreamError{Kind: kind, Day: day, Err: fmt.Errorf("failed to fetch rates: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Ctx(ctx).ErrorContext(
			ctx,
			"zonneplan returned non-2xx status",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, &UpstreamError{
			Kind:       kind,
			Day:        day,
			StatusCode: resp.StatusCode,
			Err:        errors.New("api request failed"),
		}
	}

	var data zonneplanResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Ctx(ctx).ErrorContext(
			ctx,
			"failed to decode zonneplan response",
			slog.Any("error", err),
		)
		return nil, &UpstreamError{Kind: kind, Day: day, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	rates := make([]types.Rate, 0, len(data.Data))
	for i, raw := range data.Data {
		var entry zonneplanEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse zonneplan entry", slog.Int("index", i), slog.Any("error", err))
			continue
		}
		r, err := transformEntry(kind, entry)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping zonneplan entry", slog.Int("index", i), slog.Any("error", err))
			continue
		}
		rates = append(rates, r)
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched zonneplan rates",
		slog.Int("received", len(data.Data)),
		slog.Int("count", len(rates)),
	)
	return rates, nil
}

// transformEntry converts a supplier entry into a Rate. RateDate is derived
// from the period start in Dutch local time.
func transformEntry(kind types.Kind, e zonneplanEntry) (types.Rate, error) {
	if !e.StartDate.valid || !e.EndDate.valid {
		return types.Rate{}, errors.New("missing start_date or end_date")
	}
	start := time.Unix(e.StartDate.value, 0).In(amsLocation)
	end := time.Unix(e.EndDate.value, 0).In(amsLocation)

	var datetime any
	if e.StartDateDatetime != nil {
		datetime = *e.StartDateDatetime
	}

	r := types.Rate{
		PeriodStart:           start,
		PeriodEnd:             end,
		RateDate:              civil.DateOf(start),
		Period:                e.Period,
		MarketPrice:           e.MarketPrice.value,
		TotalPriceTaxIncluded: e.TotalPriceTaxIncluded.value,
		PriceInclHandlingVAT:  e.PriceInclHandlingVAT.value,
		PriceTaxWithVAT:       e.PriceTaxWithVAT.value,
		Currency:              types.DefaultCurrency,
		Metadata: map[string]any{
			"source":              SourceZonneplan,
			"start_date_datetime": datetime,
		},
	}
	if kind == types.KindElectricity {
		r.Electricity = &types.ElectricityDetails{
			PricingProfile:        e.PricingProfile,
			CarbonFootprintInGram: e.CarbonFootprintInGram.ptr(),
			SustainabilityScore:   e.SustainabilityScore.ptr(),
		}
	}
	return r, nil
}
