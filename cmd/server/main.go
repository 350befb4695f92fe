package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sathvikchoudar61/EduStealth/internal/api"
	"github.com/sathvikchoudar61/EduStealth/internal/chat"
	"github.com/sathvikchoudar61/EduStealth/internal/config"
	"github.com/sathvikchoudar61/EduStealth/internal/crypto"
	"github.com/sathvikchoudar61/EduStealth/internal/store"
	"github.com/sathvikchoudar61/EduStealth/internal/sweeper"
	"github.com/sathvikchoudar61/EduStealth/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the message store: PostgreSQL when DATABASE_URL is set,
	// SQLite otherwise
	var (
		st  store.MessageStore
		err error
	)
	if cfg.DatabaseURL != "" {
		st, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		path := cfg.SQLitePath
		if path == "" {
			path = "edustealth.db"
		}
		st, err = store.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Str("path", path).Msg("using SQLite store")
	}
	defer st.Close()

	// Initialize Redis (optional; backs rate limiting)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Wire the chat core: fan-out hub, shared-key codec, lifecycle coordinator
	hub := ws.NewHub(logger)
	codec := crypto.NewCodec(cfg.ChatSecret)
	coord := chat.NewCoordinator(st, hub, codec, cfg.ReadGracePeriod, logger)

	// Start the expiry sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sw := sweeper.New(st, coord, cfg.SweepInterval, logger)
	go sw.Run(sweepCtx)

	// Create router
	router := api.NewRouter(cfg, logger, st, redisStore, coord, hub)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Dur("grace_period", cfg.ReadGracePeriod).
			Dur("sweep_interval", cfg.SweepInterval).
			Msg("starting EduStealth chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stopSweeper()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
