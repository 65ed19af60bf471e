package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/rates"
	"github.com/raterudder/energyrates/pkg/server"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/syncer"
	"github.com/raterudder/energyrates/pkg/utility"
)

func main() {
	// init packages
	s := storage.Configured()
	u := utility.Configured()
	sy := syncer.Configured(u, s)
	svc := rates.Configured(s, sy)

	// init server
	srv := server.Configured(svc, sy)

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.LevelFromLLog()
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	log.Ctx(ctx).DebugContext(ctx, "logger configured", slog.String("level", level.String()))

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	// Run will block until context is canceled or error happens
	err = srv.Run(ctx)
	if cerr := s.Close(); cerr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", cerr))
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		cancel()
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
