package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/glebarez/sqlite"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// rateRow is the relational form of a rate. Both kinds share the table and
// the unique index on (kind, period_start, period_end) is the rate identity.
type rateRow struct {
	ID          uint      `gorm:"primaryKey"`
	Kind        string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_energy_rates_identity,priority:1;index:idx_energy_rates_day,priority:1"`
	PeriodStart time.Time `gorm:"not null;uniqueIndex:idx_energy_rates_identity,priority:2"`
	PeriodEnd   time.Time `gorm:"not null;uniqueIndex:idx_energy_rates_identity,priority:3"`
	RateDate    string    `gorm:"type:varchar(10);not null;index:idx_energy_rates_day,priority:2"`
	Period      string    `gorm:"type:varchar(32);not null"`

	MarketPrice           int64  `gorm:"not null"`
	TotalPriceTaxIncluded int64  `gorm:"not null"`
	PriceInclHandlingVAT  int64  `gorm:"column:price_incl_handling_vat;not null"`
	PriceTaxWithVAT       int64  `gorm:"column:price_tax_with_vat;not null"`
	Currency              string `gorm:"type:varchar(3);not null"`
	Metadata              string `gorm:"type:text"`

	HasElectricityDetails bool
	PricingProfile        *string `gorm:"type:varchar(64)"`
	CarbonFootprintInGram *int64
	SustainabilityScore   *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (rateRow) TableName() string {
	return "energy_rates"
}

// mutable columns overwritten when a period is written again
var rateUpdateColumns = []string{
	"rate_date",
	"period",
	"market_price",
	"total_price_tax_included",
	"price_incl_handling_vat",
	"price_tax_with_vat",
	"currency",
	"metadata",
	"has_electricity_details",
	"pricing_profile",
	"carbon_footprint_in_gram",
	"sustainability_score",
	"updated_at",
}

func toRow(kind types.Kind, r types.Rate) (rateRow, error) {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return rateRow{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	row := rateRow{
		Kind:                  string(kind),
		PeriodStart:           r.PeriodStart.UTC(),
		PeriodEnd:             r.PeriodEnd.UTC(),
		RateDate:              r.RateDate.String(),
		Period:                r.Period,
		MarketPrice:           r.MarketPrice,
		TotalPriceTaxIncluded: r.TotalPriceTaxIncluded,
		PriceInclHandlingVAT:  r.PriceInclHandlingVAT,
		PriceTaxWithVAT:       r.PriceTaxWithVAT,
		Currency:              r.Currency,
		Metadata:              string(meta),
		CreatedAt:             r.UpdatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.Electricity != nil {
		row.HasElectricityDetails = true
		row.PricingProfile = r.Electricity.PricingProfile
		row.CarbonFootprintInGram = r.Electricity.CarbonFootprintInGram
		row.SustainabilityScore = r.Electricity.SustainabilityScore
	}
	return row, nil
}

func (row rateRow) toRate() (types.Rate, error) {
	day, err := civil.ParseDate(row.RateDate)
	if err != nil {
		return types.Rate{}, fmt.Errorf("invalid rate_date %q: %w", row.RateDate, err)
	}
	r := types.Rate{
		PeriodStart:           row.PeriodStart.UTC(),
		PeriodEnd:             row.PeriodEnd.UTC(),
		RateDate:              day,
		Period:                row.Period,
		MarketPrice:           row.MarketPrice,
		TotalPriceTaxIncluded: row.TotalPriceTaxIncluded,
		PriceInclHandlingVAT:  row.PriceInclHandlingVAT,
		PriceTaxWithVAT:       row.PriceTaxWithVAT,
		Currency:              row.Currency,
		UpdatedAt:             row.UpdatedAt.UTC(),
	}
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &r.Metadata); err != nil {
			return types.Rate{}, fmt.Errorf("invalid metadata: %w", err)
		}
	}
	if row.HasElectricityDetails {
		r.Electricity = &types.ElectricityDetails{
			PricingProfile:        row.PricingProfile,
			CarbonFootprintInGram: row.CarbonFootprintInGram,
			SustainabilityScore:   row.SustainabilityScore,
		}
	}
	return r, nil
}

// SQLProvider implements the Database interface on a relational database
// through gorm. Postgres is used in production and sqlite for local runs and
// tests.
type SQLProvider struct {
	db     *gorm.DB
	driver string
	dsn    string
	now    func() time.Time
}

// configuredSQL sets up the SQL provider.
// It registers flags for configuration.
func configuredSQL() *SQLProvider {
	driver := lflag.String("sql-driver", "postgres", "SQL driver to use when storage-provider is sql (available: postgres, sqlite)")
	dsn := lflag.String("sql-dsn", "", "Data source name for the SQL database")

	s := &SQLProvider{now: time.Now}

	lflag.Do(func() {
		s.driver = *driver
		s.dsn = *dsn
	})

	return s
}

// NewSQLProvider returns an uninitialized provider for the given driver and
// dsn.
func NewSQLProvider(driver, dsn string) *SQLProvider {
	return &SQLProvider{driver: driver, dsn: dsn, now: time.Now}
}

// SetClock replaces the clock used to stamp UpdatedAt on written rates.
func (s *SQLProvider) SetClock(now func() time.Time) {
	s.now = now
}

// Validate checks if the provider is properly configured.
func (s *SQLProvider) Validate() error {
	switch s.driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown sql driver: %s", s.driver)
	}
	if s.dsn == "" {
		return errors.New("sql-dsn is required")
	}
	return nil
}

// Init opens the database and migrates the schema.
// This must be called before using the provider methods.
func (s *SQLProvider) Init(ctx context.Context) error {
	var dialector gorm.Dialector
	switch s.driver {
	case "postgres":
		dialector = postgres.Open(s.dsn)
	case "sqlite":
		dialector = sqlite.Open(s.dsn)
	default:
		return fmt.Errorf("unknown sql driver: %s", s.driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return s.now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", s.driver, err)
	}
	if s.driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.WithContext(ctx).AutoMigrate(&rateRow{}); err != nil {
		return fmt.Errorf("failed to migrate %s database: %w", s.driver, err)
	}
	s.db = db
	if s.now == nil {
		s.now = time.Now
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLProvider) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertRates inserts rates, updating the mutable columns on a period
// conflict. All accepted rates are written in one transaction.
func (s *SQLProvider) UpsertRates(ctx context.Context, kind types.Kind, rates []types.Rate) (UpsertResult, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return UpsertResult{}, &StoreError{Op: "upsert", Kind: kind, Err: err}
	}

	accepted, rejected := prepareRates(rates, s.now().UTC())
	for _, rej := range rejected {
		log.Ctx(ctx).WarnContext(
			ctx,
			"rejecting invalid rate",
			slog.String("rateID", rej.Rate.ID()),
			slog.Any("err", rej.Err),
		)
	}
	res := UpsertResult{Rejected: rejected}
	if len(accepted) == 0 {
		return res, nil
	}

	rows := make([]rateRow, 0, len(accepted))
	for _, r := range accepted {
		row, err := toRow(kind, r)
		if err != nil {
			return res, &StoreError{Op: "upsert", Kind: kind, Err: fmt.Errorf("rate %s: %w", r.ID(), err)}
		}
		rows = append(rows, row)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "period_start"}, {Name: "period_end"}},
			DoUpdates: clause.AssignmentColumns(rateUpdateColumns),
		}).CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return res, &StoreError{Op: "upsert", Kind: kind, Err: fmt.Errorf("failed to upsert rates: %w", err)}
	}
	res.Written = len(rows)
	return res, nil
}

// GetRatesForDay retrieves the rates of a single rate date ordered by
// period start.
func (s *SQLProvider) GetRatesForDay(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error) {
	var rows []rateRow
	err := s.db.WithContext(ctx).
		Where("kind = ? AND rate_date = ?", string(kind), day.String()).
		Order("period_start ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &StoreError{Op: "get", Kind: kind, Err: fmt.Errorf("failed to query rates: %w", err)}
	}

	rates := make([]types.Rate, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRate()
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to decode rate row", slog.Uint64("id", uint64(row.ID)), slog.Any("err", err))
			return nil, &StoreError{Op: "get", Kind: kind, Err: fmt.Errorf("row %d: %w", row.ID, err)}
		}
		rates = append(rates, r)
	}
	return rates, nil
}

// GetAvailableDays returns the distinct rate dates of kind, newest first.
func (s *SQLProvider) GetAvailableDays(ctx context.Context, kind types.Kind) ([]civil.Date, error) {
	var values []string
	err := s.db.WithContext(ctx).
		Model(&rateRow{}).
		Where("kind = ?", string(kind)).
		Distinct("rate_date").
		Order("rate_date DESC").
		Pluck("rate_date", &values).Error
	if err != nil {
		return nil, &StoreError{Op: "available_days", Kind: kind, Err: fmt.Errorf("failed to query rate dates: %w", err)}
	}

	days := make([]civil.Date, 0, len(values))
	for _, v := range values {
		day, err := civil.ParseDate(v)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping invalid rate_date", slog.String("rateDate", v))
			continue
		}
		days = append(days, day)
	}
	return days, nil
}
