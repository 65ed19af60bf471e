package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/syncer"
	"github.com/raterudder/energyrates/pkg/types"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitBadArgs = 2
)

// rangeSyncer is implemented by *syncer.Syncer.
type rangeSyncer interface {
	SyncRange(ctx context.Context, start, end civil.Date, kinds ...types.Kind) ([]syncer.Result, error)
}

type args struct {
	start string
	end   string
	kind  string
}

// run performs the backfill and returns the process exit code. db is closed
// before run returns, whatever the outcome.
func run(ctx context.Context, sy rangeSyncer, db storage.Database, a args, out io.Writer) int {
	defer func() {
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	start, end, kinds, err := parseArgs(a.start, a.end, a.kind)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid arguments", slog.Any("error", err))
		return exitBadArgs
	}

	results, err := sy.SyncRange(ctx, start, end, kinds...)
	for _, r := range results {
		fmt.Fprintf(out, "%s %s: fetched %d, written %d, rejected %d\n", r.Day, r.Kind, r.Fetched, r.Written, r.Rejected)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "backfill failed", slog.Any("error", err))
		return exitFailed
	}
	log.Ctx(ctx).InfoContext(ctx, "backfill finished", slog.Int("syncs", len(results)))
	return exitOK
}
