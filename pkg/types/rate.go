package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Kind identifies which energy series a rate belongs to.
type Kind string

const (
	KindElectricity Kind = "electricity"
	KindGas         Kind = "gas"
)

// Kinds lists every supported kind in sync order.
var Kinds = []Kind{KindElectricity, KindGas}

const (
	// MicroUnitsPerUnit is the number of stored price units in one unit of
	// currency.
	MicroUnitsPerUnit = 1_000_000

	// DefaultCurrency is used when the supplier does not send one.
	DefaultCurrency = "EUR"

	// wireTimeFormat matches the dashboard's expected ISO-8601 output.
	wireTimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

var (
	ErrInvalidKind = errors.New("invalid rate kind")
	ErrInvalidDay  = errors.New("invalid date")
	ErrInvalidRate = errors.New("invalid rate")
)

// ValidationError is returned when caller-supplied input cannot be used.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseKind parses "electricity" or "gas".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindElectricity, KindGas:
		return Kind(s), nil
	default:
		return "", &ValidationError{Field: "kind", Value: s, Err: ErrInvalidKind}
	}
}

// ParseDay parses a YYYY-MM-DD calendar date.
func ParseDay(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, &ValidationError{Field: "date", Value: s, Err: ErrInvalidDay}
	}
	return d, nil
}

// ElectricityDetails holds the fields only the electricity series carries.
type ElectricityDetails struct {
	PricingProfile        *string
	CarbonFootprintInGram *int64
	SustainabilityScore   *int64
}

// Rate is one priced interval, typically an hour. Prices are stored in
// micro-units of Currency.
type Rate struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	RateDate    civil.Date
	Period      string

	MarketPrice           int64
	TotalPriceTaxIncluded int64
	PriceInclHandlingVAT  int64
	PriceTaxWithVAT       int64

	Currency string
	Metadata map[string]any

	// Electricity is nil for gas rates.
	Electricity *ElectricityDetails

	// UpdatedAt is zero when the store never recorded a write time.
	UpdatedAt time.Time
}

// RateKey is the identity of a rate within one kind.
type RateKey struct {
	Start time.Time
	End   time.Time
}

// Key returns the dedup key of the rate. Times are normalized to UTC so keys
// compare equal regardless of the location they were parsed in.
func (r Rate) Key() RateKey {
	return RateKey{Start: r.PeriodStart.UTC(), End: r.PeriodEnd.UTC()}
}

// ID returns a stable string form of Key, usable as a document ID.
func (r Rate) ID() string {
	k := r.Key()
	return k.Start.Format(time.RFC3339) + "_" + k.End.Format(time.RFC3339)
}

// Validate reports whether the rate can be persisted.
func (r Rate) Validate() error {
	switch {
	case r.PeriodStart.IsZero():
		return fmt.Errorf("%w: missing period start", ErrInvalidRate)
	case r.PeriodEnd.IsZero():
		return fmt.Errorf("%w: missing period end", ErrInvalidRate)
	case !r.PeriodEnd.After(r.PeriodStart):
		return fmt.Errorf("%w: period end %s is not after start %s", ErrInvalidRate, r.PeriodEnd.Format(time.RFC3339), r.PeriodStart.Format(time.RFC3339))
	case !r.RateDate.IsValid():
		return fmt.Errorf("%w: invalid rate date", ErrInvalidRate)
	case r.Period == "":
		return fmt.Errorf("%w: missing period label", ErrInvalidRate)
	case len(r.Currency) != 3:
		return fmt.Errorf("%w: currency %q is not an ISO code", ErrInvalidRate, r.Currency)
	}
	return nil
}

// Euros converts micro-units to a decimal currency amount for display.
func Euros(micro int64) float64 {
	return float64(micro) / MicroUnitsPerUnit
}

// PricesInEuros is the display form of the four price fields.
type PricesInEuros struct {
	MarketPrice           float64 `json:"market_price"`
	TotalPriceTaxIncluded float64 `json:"total_price_tax_included"`
	PriceInclHandlingVAT  float64 `json:"price_incl_handling_vat"`
	PriceTaxWithVAT       float64 `json:"price_tax_with_vat"`
}

// InEuros returns the rate's prices divided by MicroUnitsPerUnit.
func (r Rate) InEuros() PricesInEuros {
	return PricesInEuros{
		MarketPrice:           Euros(r.MarketPrice),
		TotalPriceTaxIncluded: Euros(r.TotalPriceTaxIncluded),
		PriceInclHandlingVAT:  Euros(r.PriceInclHandlingVAT),
		PriceTaxWithVAT:       Euros(r.PriceTaxWithVAT),
	}
}

type rateJSON struct {
	PeriodStart           string         `json:"period_start"`
	PeriodEnd             string         `json:"period_end"`
	RateDate              string         `json:"rate_date"`
	Period                string         `json:"period"`
	MarketPrice           int64          `json:"market_price"`
	TotalPriceTaxIncluded int64          `json:"total_price_tax_included"`
	PriceInclHandlingVAT  int64          `json:"price_incl_handling_vat"`
	PriceTaxWithVAT       int64          `json:"price_tax_with_vat"`
	Currency              string         `json:"currency"`
	Metadata              map[string]any `json:"metadata"`
	PricesInEuros         PricesInEuros  `json:"prices_in_euros"`
	UpdatedAt             string         `json:"updated_at,omitempty"`
}

// electricity rates always emit the extra fields, null when unknown
type electricityRateJSON struct {
	rateJSON
	PricingProfile        *string `json:"pricing_profile"`
	CarbonFootprintInGram *int64  `json:"carbon_footprint_in_gram"`
	SustainabilityScore   *int64  `json:"sustainability_score"`
}

// MarshalJSON writes the dashboard wire format.
func (r Rate) MarshalJSON() ([]byte, error) {
	base := rateJSON{
		PeriodStart:           formatWireTime(r.PeriodStart),
		PeriodEnd:             formatWireTime(r.PeriodEnd),
		RateDate:              r.RateDate.String(),
		Period:                r.Period,
		MarketPrice:           r.MarketPrice,
		TotalPriceTaxIncluded: r.TotalPriceTaxIncluded,
		PriceInclHandlingVAT:  r.PriceInclHandlingVAT,
		PriceTaxWithVAT:       r.PriceTaxWithVAT,
		Currency:              r.Currency,
		Metadata:              r.Metadata,
		PricesInEuros:         r.InEuros(),
		UpdatedAt:             formatWireTime(r.UpdatedAt),
	}
	if r.Electricity == nil {
		return json.Marshal(base)
	}
	return json.Marshal(electricityRateJSON{
		rateJSON:              base,
		PricingProfile:        r.Electricity.PricingProfile,
		CarbonFootprintInGram: r.Electricity.CarbonFootprintInGram,
		SustainabilityScore:   r.Electricity.SustainabilityScore,
	})
}

// UnmarshalJSON reads the wire format back. prices_in_euros is derived and
// ignored.
func (r *Rate) UnmarshalJSON(b []byte) error {
	var v struct {
		rateJSON
		PricingProfile        json.RawMessage `json:"pricing_profile"`
		CarbonFootprintInGram json.RawMessage `json:"carbon_footprint_in_gram"`
		SustainabilityScore   json.RawMessage `json:"sustainability_score"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	var out Rate
	var err error
	if out.PeriodStart, err = parseWireTime(v.PeriodStart); err != nil {
		return fmt.Errorf("invalid period_start: %w", err)
	}
	if out.PeriodEnd, err = parseWireTime(v.PeriodEnd); err != nil {
		return fmt.Errorf("invalid period_end: %w", err)
	}
	if out.UpdatedAt, err = parseWireTime(v.UpdatedAt); err != nil {
		return fmt.Errorf("invalid updated_at: %w", err)
	}
	if v.RateDate != "" {
		if out.RateDate, err = civil.ParseDate(v.RateDate); err != nil {
			return fmt.Errorf("invalid rate_date: %w", err)
		}
	}
	out.Period = v.Period
	out.MarketPrice = v.MarketPrice
	out.TotalPriceTaxIncluded = v.TotalPriceTaxIncluded
	out.PriceInclHandlingVAT = v.PriceInclHandlingVAT
	out.PriceTaxWithVAT = v.PriceTaxWithVAT
	out.Currency = v.Currency
	out.Metadata = v.Metadata

	if v.PricingProfile != nil || v.CarbonFootprintInGram != nil || v.SustainabilityScore != nil {
		out.Electricity = &ElectricityDetails{}
		if err := unmarshalOptional(v.PricingProfile, &out.Electricity.PricingProfile); err != nil {
			return fmt.Errorf("invalid pricing_profile: %w", err)
		}
		if err := unmarshalOptional(v.CarbonFootprintInGram, &out.Electricity.CarbonFootprintInGram); err != nil {
			return fmt.Errorf("invalid carbon_footprint_in_gram: %w", err)
		}
		if err := unmarshalOptional(v.SustainabilityScore, &out.Electricity.SustainabilityScore); err != nil {
			return fmt.Errorf("invalid sustainability_score: %w", err)
		}
	}

	*r = out
	return nil
}

func unmarshalOptional[T any](raw json.RawMessage, dst **T) error {
	if raw == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func formatWireTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(wireTimeFormat)
}

func parseWireTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
