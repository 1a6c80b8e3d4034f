package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raterudder/azzurro/pkg/coordinator"
	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/portal"
	"github.com/raterudder/azzurro/pkg/server"
	"github.com/raterudder/azzurro/pkg/storage"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// init packages
	p := portal.Configured()
	s := storage.Configured()
	h := coordinator.Configured(p)

	// init server
	srv := server.Configured(h, s)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	devices, err := s.ListDevices(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list devices", "error", err)
		os.Exit(1)
	}
	for _, d := range devices {
		if _, err := h.Add(d); err != nil && !errors.Is(err, coordinator.ErrAlreadyRegistered) {
			log.Ctx(ctx).ErrorContext(ctx, "failed to add device", "error", err)
			os.Exit(1)
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "loaded devices", slog.Int("count", len(devices)))

	// Run will block until context is canceled or error happens
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
