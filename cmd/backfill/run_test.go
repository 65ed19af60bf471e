package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/storage/storagemock"
	"github.com/raterudder/energyrates/pkg/syncer"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/stretchr/testify/assert"
)

type syncRangeFunc func(ctx context.Context, start, end civil.Date, kinds ...types.Kind) ([]syncer.Result, error)

func (f syncRangeFunc) SyncRange(ctx context.Context, start, end civil.Date, kinds ...types.Kind) ([]syncer.Result, error) {
	return f(ctx, start, end, kinds...)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	day := civil.Date{Year: 2025, Month: 6, Day: 1}

	t.Run("Success", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("Close").Return(nil).Once()
		sy := syncRangeFunc(func(_ context.Context, start, end civil.Date, kinds ...types.Kind) ([]syncer.Result, error) {
			assert.Equal(t, day, start)
			assert.Equal(t, day.AddDays(1), end)
			assert.Equal(t, []types.Kind{types.KindGas}, kinds)
			return []syncer.Result{
				{Kind: types.KindGas, Day: day, Fetched: 24, Written: 24},
				{Kind: types.KindGas, Day: day.AddDays(1), Fetched: 24, Written: 23, Rejected: 1},
			}, nil
		})

		var out bytes.Buffer
		code := run(ctx, sy, db, args{start: "2025-06-01", end: "2025-06-02", kind: "gas"}, &out)
		assert.Equal(t, exitOK, code)
		assert.Equal(t, "2025-06-01 gas: fetched 24, written 24, rejected 0\n2025-06-02 gas: fetched 24, written 23, rejected 1\n", out.String())
		db.AssertExpectations(t)
	})

	t.Run("SyncFailureClosesStore", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("Close").Return(nil).Once()
		sy := syncRangeFunc(func(context.Context, civil.Date, civil.Date, ...types.Kind) ([]syncer.Result, error) {
			return nil, &syncer.SyncError{Kind: types.KindElectricity, Day: day, Err: errors.New("upstream down")}
		})

		code := run(ctx, sy, db, args{start: "2025-06-01", kind: "all"}, &bytes.Buffer{})
		assert.Equal(t, exitFailed, code)
		db.AssertExpectations(t)
	})

	t.Run("BadArgsClosesStore", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("Close").Return(errors.New("already closed")).Once()
		sy := syncRangeFunc(func(context.Context, civil.Date, civil.Date, ...types.Kind) ([]syncer.Result, error) {
			t.Error("unexpected sync")
			return nil, nil
		})

		code := run(ctx, sy, db, args{start: "June 1", kind: "all"}, &bytes.Buffer{})
		assert.Equal(t, exitBadArgs, code)
		db.AssertExpectations(t)
	})
}
