// Package syncer pulls rates from the supplier and writes them to storage.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/metrics"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/raterudder/energyrates/pkg/utility"
)

// RangePolicy controls what SyncRange does when a day fails.
type RangePolicy string

const (
	// RangeFailFast stops at the first failed day.
	RangeFailFast RangePolicy = "fail-fast"
	// RangeContinue syncs every day and reports all failures together.
	RangeContinue RangePolicy = "continue"
)

// ParseRangePolicy parses "fail-fast" or "continue".
func ParseRangePolicy(s string) (RangePolicy, error) {
	switch RangePolicy(s) {
	case RangeFailFast, RangeContinue:
		return RangePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown range policy: %s", s)
	}
}

// Options tune a Syncer.
type Options struct {
	// MergePreviousDay makes electricity syncs also fetch the previous day.
	// The supplier files the first hours of a day under the day before, so
	// without it a day can come back a few records short.
	MergePreviousDay bool
	RangePolicy      RangePolicy
	Metrics          *metrics.Metrics
}

// Result describes one completed (kind, day) sync.
type Result struct {
	Kind     types.Kind
	Day      civil.Date
	Fetched  int
	Written  int
	Rejected int
}

// Syncer coordinates fetching and upserting rates. It is safe for concurrent
// use.
type Syncer struct {
	fetcher          utility.Fetcher
	storage          storage.Database
	metrics          *metrics.Metrics
	mergePreviousDay bool
	rangePolicy      RangePolicy
}

// New returns a Syncer. An empty RangePolicy means RangeFailFast.
func New(fetcher utility.Fetcher, db storage.Database, opts Options) *Syncer {
	policy := opts.RangePolicy
	if policy == "" {
		policy = RangeFailFast
	}
	return &Syncer{
		fetcher:          fetcher,
		storage:          db,
		metrics:          opts.Metrics,
		mergePreviousDay: opts.MergePreviousDay,
		rangePolicy:      policy,
	}
}

// SyncDay fetches the supplier's rates for day and upserts them. Nothing is
// written unless every fetch succeeds.
func (s *Syncer) SyncDay(ctx context.Context, kind types.Kind, day civil.Date) (Result, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return Result{}, err
	}
	if !day.IsValid() {
		return Result{}, &types.ValidationError{Field: "date", Value: day.String(), Err: types.ErrInvalidDay}
	}

	ctx = log.WithAttrs(ctx, slog.String("kind", string(kind)), slog.String("date", day.String()))
	start := time.Now()
	res, err := s.syncDay(ctx, kind, day)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.SyncFinished(string(kind), outcome, time.Since(start))
	return res, err
}

func (s *Syncer) syncDay(ctx context.Context, kind types.Kind, day civil.Date) (Result, error) {
	res := Result{Kind: kind, Day: day}

	days := []civil.Date{day}
	if kind == types.KindElectricity && s.mergePreviousDay {
		days = append(days, day.AddDays(-1))
	}

	var rates []types.Rate
	for _, d := range days {
		fetchStart := time.Now()
		fetched, err := s.fetcher.FetchRates(ctx, kind, d)
		s.metrics.FetchObserved(string(kind), time.Since(fetchStart))
		if err != nil {
			log.Ctx(ctx).ErrorContext(
				ctx,
				"failed to fetch rates",
				slog.String("fetchDate", d.String()),
				slog.Any("error", err),
			)
			return res, &SyncError{Kind: kind, Day: day, Err: err}
		}
		rates = append(rates, fetched...)
	}
	res.Fetched = len(rates)

	ur, err := s.storage.UpsertRates(ctx, kind, rates)
	if err != nil {
		log.Ctx(ctx).ErrorContext(
			ctx,
			"failed to store rates",
			slog.Int("count", len(rates)),
			slog.Any("error", err),
		)
		return res, &SyncError{Kind: kind, Day: day, Err: err}
	}
	res.Written = ur.Written
	res.Rejected = len(ur.Rejected)
	s.metrics.RatesStored(string(kind), ur.Written, len(ur.Rejected))
	if rerr := ur.Err(); rerr != nil {
		log.Ctx(ctx).WarnContext(
			ctx,
			"some rates were rejected",
			slog.Int("rejected", res.Rejected),
			slog.Any("error", rerr),
		)
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"synced rates",
		slog.Int("count", res.Written),
	)
	return res, nil
}

// SyncAll syncs electricity then gas for day, stopping at the first failure.
func (s *Syncer) SyncAll(ctx context.Context, day civil.Date) ([]Result, error) {
	return s.syncKinds(ctx, day, types.Kinds)
}

func (s *Syncer) syncKinds(ctx context.Context, day civil.Date, kinds []types.Kind) ([]Result, error) {
	results := make([]Result, 0, len(kinds))
	for _, kind := range kinds {
		res, err := s.SyncDay(ctx, kind, day)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// SyncRange syncs every day in [start, end] in order. With no kinds given
// both kinds are synced for each day. Under RangeFailFast the first failure
// is returned; under RangeContinue a *RangeError lists every failed day.
func (s *Syncer) SyncRange(ctx context.Context, start, end civil.Date, kinds ...types.Kind) ([]Result, error) {
	if !start.IsValid() {
		return nil, &types.ValidationError{Field: "start", Value: start.String(), Err: types.ErrInvalidDay}
	}
	if !end.IsValid() {
		return nil, &types.ValidationError{Field: "end", Value: end.String(), Err: types.ErrInvalidDay}
	}
	if end.Before(start) {
		return nil, &types.ValidationError{Field: "range", Value: start.String() + ".." + end.String(), Err: ErrInvalidRange}
	}
	if len(kinds) == 0 {
		kinds = types.Kinds
	}
	for _, k := range kinds {
		if _, err := types.ParseKind(string(k)); err != nil {
			return nil, err
		}
	}

	var results []Result
	var failures []*SyncError
	for _, day := range types.DaysBetween(start, end) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		dayResults, err := s.syncKinds(ctx, day, kinds)
		results = append(results, dayResults...)
		if err == nil {
			continue
		}
		var serr *SyncError
		if s.rangePolicy != RangeContinue || !errors.As(err, &serr) {
			return results, err
		}
		failures = append(failures, serr)
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"synced range",
		slog.String("start", start.String()),
		slog.String("end", end.String()),
		slog.Int("syncs", len(results)),
		slog.Int("failures", len(failures)),
	)
	if len(failures) > 0 {
		return results, &RangeError{Failures: failures}
	}
	return results, nil
}
