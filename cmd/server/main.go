package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Lobby/internal/adapters/http"
	ws "github.com/dkeye/Lobby/internal/adapters/signal"
	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/config"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/dkeye/Lobby/internal/stats"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	admins := make([]domain.UserID, 0, len(cfg.Room.AdminIDs))
	for _, id := range cfg.Room.AdminIDs {
		admins = append(admins, domain.UserID(id))
	}

	bus := app.NewBus(cfg.SendBuffer)
	state := core.NewState(core.Options{MaxUsers: cfg.Room.MaxUsers, AdminIDs: admins}, bus)
	reg := app.NewRegistry(state)
	rt := app.NewRouter(reg, app.SimplePolicy{}, ws.Codec{})
	su := stats.NewStatsUpdater(state)
	o := orch.New(state, reg)
	reaper := app.NewReaper(state, app.ReaperConfig{
		Enabled:        cfg.Room.ReaperEnabled,
		Interval:       cfg.Room.CleanupInterval,
		OfflineTimeout: cfg.Room.OfflineTimeout,
		IdleTimeout:    cfg.Room.IdleTimeout,
	}, state.Now)

	ctl := ws.NewSignalWSController(o, rt, ws.NewRoomRateLimiter(cfg.Rate.CreateLimit, cfg.Rate.CreateInterval), ws.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	r := router.SetupRouter(ctx, cfg, o, ctl, su)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.WithCORS(r, cfg.Origins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	routed := bus.Subscribe()
	counted := bus.Subscribe()
	consumers := make(chan struct{}, 2)
	go func() { rt.Run(routed); consumers <- struct{}{} }()
	go func() { su.Run(counted); consumers <- struct{}{} }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Lobby server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return reaper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		ctl.CloseAll()
		return nil
	})

	err := g.Wait()
	waitSessions(reg, 2*time.Second)
	bus.Close()
	<-consumers
	<-consumers
	return err
}

// waitSessions gives closed connections time to run their disconnect path.
func waitSessions(reg *app.Registry, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for reg.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}
