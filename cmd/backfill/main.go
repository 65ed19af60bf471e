// Command backfill syncs a range of days from the supplier into storage.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/syncer"
	"github.com/raterudder/energyrates/pkg/utility"
)

func main() {
	s := storage.Configured()
	u := utility.Configured()
	sy := syncer.Configured(u, s)

	startStr := lflag.RequiredString("start", "First day to sync (YYYY-MM-DD)")
	endStr := lflag.String("end", "", "Last day to sync (YYYY-MM-DD), defaults to start")
	kindStr := lflag.String("kind", "all", "Rate kind to sync (available: electricity, gas, all)")

	lflag.Configure()

	level, err := log.LevelFromLLog()
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, sy, s, args{start: *startStr, end: *endStr, kind: *kindStr}, os.Stdout)
	cancel()
	os.Exit(code)
}
