package main

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/types"
	"github.com/raterudder/energyrates/pkg/utility"
)

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	s := storage.Configured()
	window := lflag.Duration("seed-window", 7*24*time.Hour, "How far back from today to seed, rounded down to whole days")
	lflag.Configure()

	ctx := context.Background()
	log.Ctx(ctx).InfoContext(ctx, "seeding mock rates")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	loc := utility.Location()
	today := types.DayOf(time.Now(), loc)
	days := max(int(*window/(24*time.Hour)), 1)
	err := seed(ctx, s, rng, types.DaysBetween(today.AddDays(-(days-1)), today), loc, os.Stdout)
	if cerr := s.Close(); cerr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", cerr)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed rates", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock rates successfully")
}
