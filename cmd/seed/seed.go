package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/types"
)

// seed writes mock rates of every kind for each of days, stopping at the
// first failed upsert.
func seed(ctx context.Context, db storage.Database, rng *rand.Rand, days []civil.Date, loc *time.Location, out io.Writer) error {
	for _, day := range days {
		for _, kind := range types.Kinds {
			kctx := log.WithAttrs(ctx, slog.String("kind", string(kind)), slog.String("date", day.String()))
			res, err := db.UpsertRates(kctx, kind, mockRates(rng, kind, day, loc))
			if err != nil {
				return fmt.Errorf("seeding %s %s: %w", kind, day, err)
			}
			fmt.Fprintf(out, "Seeded %s %s: %d rates (%d rejected)\n", day, kind, res.Written, len(res.Rejected))
		}
	}
	return nil
}
