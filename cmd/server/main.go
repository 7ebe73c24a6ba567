package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/adapters/engine"
	router "github.com/avdeyev/onair/internal/adapters/http"
	signalws "github.com/avdeyev/onair/internal/adapters/signal"
	"github.com/avdeyev/onair/internal/app"
	"github.com/avdeyev/onair/internal/app/session"
	"github.com/avdeyev/onair/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	coord := session.New(engine.New(&cfg.RTC), cfg.RTC.MaxIncomingBitrate)
	// No media worker means no broadcast session: refuse to start.
	if err := coord.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("media session init failed")
	}

	registry := app.NewRegistry()
	rooms := app.NewRoomManager()

	ctl := &signalws.Controller{
		Registry:    registry,
		Rooms:       rooms,
		Media:       coord,
		JoinLimiter: signalws.NewJoinRateLimiter(10, time.Minute),
		ReadLimit:   cfg.ReadLimit,
	}

	r := router.SetupRouter(ctx, cfg, ctl, rooms)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("onair server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
