// Package rates answers rate queries, refreshing a day from the supplier when
// its stored rates are stale.
package rates

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/freshness"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/metrics"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/syncer"
	"github.com/raterudder/energyrates/pkg/types"
	"golang.org/x/sync/singleflight"
)

// DaySyncer syncs a single (kind, day). *syncer.Syncer implements it.
type DaySyncer interface {
	SyncDay(ctx context.Context, kind types.Kind, day civil.Date) (syncer.Result, error)
}

// Options tune a Service.
type Options struct {
	// RefreshTimeout bounds a refresh triggered by a read. Zero means no
	// bound beyond the caller's context.
	RefreshTimeout time.Duration

	// ServeStaleOnTimeout returns the stored rates when a refresh runs out of
	// time instead of failing the read.
	ServeStaleOnTimeout bool

	Metrics *metrics.Metrics
}

// Service is the read path over stored rates.
type Service struct {
	storage storage.Database
	syncer  DaySyncer
	policy  freshness.Policy
	metrics *metrics.Metrics

	refreshTimeout      time.Duration
	serveStaleOnTimeout bool

	group singleflight.Group
}

// New returns a Service.
func New(db storage.Database, s DaySyncer, policy freshness.Policy, opts Options) *Service {
	return &Service{
		storage:             db,
		syncer:              s,
		policy:              policy,
		metrics:             opts.Metrics,
		refreshTimeout:      opts.RefreshTimeout,
		serveStaleOnTimeout: opts.ServeStaleOnTimeout,
	}
}

// Policy returns the freshness policy used by the service.
func (s *Service) Policy() freshness.Policy {
	return s.policy
}

// GetRatesForDay returns the stored rates without checking freshness.
func (s *Service) GetRatesForDay(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	return s.storage.GetRatesForDay(ctx, kind, day)
}

// GetRatesWithFreshness returns the rates for day, first syncing the day once
// if the stored rates are stale. Concurrent callers for the same day share a
// single sync. A failed sync is returned to the caller rather than hidden
// behind stale data, except when a refresh times out and
// ServeStaleOnTimeout is set.
func (s *Service) GetRatesWithFreshness(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	// the syncer attaches kind and date itself, so refresh gets the bare ctx
	logCtx := log.WithAttrs(ctx, slog.String("kind", string(kind)), slog.String("date", day.String()))

	existing, err := s.storage.GetRatesForDay(logCtx, kind, day)
	if err != nil {
		return nil, err
	}

	decision := s.policy.Decide(kind, existing)
	s.metrics.FreshnessDecided(string(kind), string(decision.Reason))
	if !decision.Stale {
		return existing, nil
	}

	log.Ctx(logCtx).DebugContext(
		logCtx,
		"rates are stale, refreshing",
		slog.String("reason", string(decision.Reason)),
		slog.Int("count", len(existing)),
	)

	if err := s.refresh(ctx, kind, day); err != nil {
		if s.serveStaleOnTimeout && errors.Is(err, context.DeadlineExceeded) {
			log.Ctx(logCtx).WarnContext(
				logCtx,
				"refresh timed out, serving stale rates",
				slog.Int("count", len(existing)),
				slog.Any("error", err),
			)
			s.metrics.StaleServed(string(kind))
			return existing, nil
		}
		return nil, err
	}

	return s.storage.GetRatesForDay(logCtx, kind, day)
}

// refresh runs one sync for (kind, day), joining an in-flight one if any. The
// sync runs detached from the first caller's cancellation so that a caller
// going away does not fail the others waiting on it.
func (s *Service) refresh(ctx context.Context, kind types.Kind, day civil.Date) error {
	key := string(kind) + "/" + day.String()
	ch := s.group.DoChan(key, func() (interface{}, error) {
		sctx := context.WithoutCancel(ctx)
		if s.refreshTimeout > 0 {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(sctx, s.refreshTimeout)
			defer cancel()
		}
		return s.syncer.SyncDay(sctx, kind, day)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.metrics.RefreshShared(string(kind))
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AvailableDays lists the days with stored rates per kind, newest first.
type AvailableDays struct {
	Electricity []civil.Date
	Gas         []civil.Date
	// Common holds the days present for both kinds.
	Common []civil.Date
}

// GetAvailableDays returns the days with stored rates for kind, newest
// first.
func (s *Service) GetAvailableDays(ctx context.Context, kind types.Kind) ([]civil.Date, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	return s.storage.GetAvailableDays(ctx, kind)
}

// GetAvailableDaysAll returns the available days of both kinds and their
// intersection.
func (s *Service) GetAvailableDaysAll(ctx context.Context) (AvailableDays, error) {
	electricity, err := s.storage.GetAvailableDays(ctx, types.KindElectricity)
	if err != nil {
		return AvailableDays{}, err
	}
	gas, err := s.storage.GetAvailableDays(ctx, types.KindGas)
	if err != nil {
		return AvailableDays{}, err
	}

	gasDays := make(map[civil.Date]struct{}, len(gas))
	for _, d := range gas {
		gasDays[d] = struct{}{}
	}
	common := make([]civil.Date, 0, len(electricity))
	for _, d := range electricity {
		if _, ok := gasDays[d]; ok {
			common = append(common, d)
		}
	}
	slices.SortFunc(common, func(a, b civil.Date) int {
		return b.Compare(a)
	})

	return AvailableDays{
		Electricity: electricity,
		Gas:         gas,
		Common:      common,
	}, nil
}
