package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/mcdev12/draftroom/go/internal/draft/mirror"
	"github.com/mcdev12/draftroom/go/internal/room"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	clock := clockwork.NewRealClock()
	registry := room.NewRegistry(
		clock,
		time.Duration(cfg.Draft.TurnDurationSec)*time.Second,
		time.Duration(cfg.Draft.IdleTTLSec)*time.Second,
	)
	index := room.NewIndex()

	var sink gateway.EventSink
	if cfg.NATS.URL != "" {
		mirrorCfg := mirror.DefaultConfig()
		mirrorCfg.URL = cfg.NATS.URL
		if cfg.NATS.SubjectPrefix != "" {
			mirrorCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		pub, err := mirror.NewPublisher(mirrorCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event mirror")
		}
		defer pub.Close()
		sink = pub
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.TickInterval = time.Duration(cfg.Draft.TickIntervalMs) * time.Millisecond
	gwCfg.ReapInterval = time.Duration(cfg.Draft.ReapIntervalSec) * time.Second

	svc := gateway.NewService(gwCfg, clock, registry, index, sink)
	srv := setupServer(cfg, svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := svc.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("draftroom server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("draftroom server stopped")
}
