package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/expense-voice/internal/api/handlers"
	"github.com/dvloznov/expense-voice/internal/api/middleware"
	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/config"
	"github.com/dvloznov/expense-voice/internal/logger"
	"github.com/dvloznov/expense-voice/internal/stt"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file")
		addr       = flag.String("addr", "", "Listen address (overrides server.addr)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logger.NewWithLevel(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log, app.Options{RequireLLM: true, Persist: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	if a.Results == nil {
		log.Info().Msg("BigQuery not configured - classification runs will not be recorded")
	}

	var prober handlers.Prober
	if a.ElevenLabs != nil {
		prober = a.ElevenLabs
	}

	mux := handlers.Routes(
		handlers.NewExpenseHandler(a.Service, cfg.Categories, cfg.Server.MaxUploadBytes, log),
		handlers.NewStatusHandler(prober, log),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      middleware.Chain(log, mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Int("stt_providers", a.Transcriber.Len()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

var _ handlers.Prober = (*stt.ElevenLabsClient)(nil)
