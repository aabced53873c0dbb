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

	router "github.com/hearth-chat/gateway/internal/adapters/http"
	"github.com/hearth-chat/gateway/internal/app"
	"github.com/hearth-chat/gateway/internal/bridge"
	"github.com/hearth-chat/gateway/internal/config"
	"github.com/hearth-chat/gateway/internal/core"
	"github.com/hearth-chat/gateway/internal/store"
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
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.Auth.Secret == "" {
		log.Fatal().Msg("auth.secret is required")
	}

	pg, err := store.NewPostgres(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pg.Close()

	registry := core.NewRegistry()
	roomRouter := core.NewRouter(registry)
	presence := core.NewPresence()
	verifier := store.NewJWTVerifier([]byte(cfg.Auth.Secret))

	gateway := app.NewGateway(registry, roomRouter, presence, verifier, pg, pg, app.KickSlowPolicy{})

	if cfg.Redis.Enabled {
		b := bridge.NewRedis(cfg.Redis, gateway.Fanout())
		if err := b.Start(); err != nil {
			log.Error().Err(err).Msg("bridge unavailable, running standalone")
		} else {
			gateway.Fanout().SetBridge(b)
			defer func() { _ = b.Stop() }()
		}
	}

	r := router.SetupRouter(ctx, cfg, gateway)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("gateway started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited gracefully")
}
