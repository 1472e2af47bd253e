package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/api"
	"github.com/manyajain27/dating-app-sub000/internal/chat"
	"github.com/manyajain27/dating-app-sub000/internal/config"
	"github.com/manyajain27/dating-app-sub000/internal/realtime"
	"github.com/manyajain27/dating-app-sub000/internal/store"
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

	if cfg.UserID == uuid.Nil {
		logger.Fatal().Msg("USER_ID is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Remote data source: Postgres when configured, local SQLite otherwise
	var ds store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		ds = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		ds = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using local SQLite store")
	}
	defer ds.Close()

	// Realtime channel: Redis pub/sub when configured, in-process otherwise
	var feed realtime.Feed
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		feed = realtime.NewRedisFeed(redisStore.Client(), logger)
		logger.Info().Msg("connected to Redis")
	} else {
		memFeed := realtime.NewMemoryFeed(0)
		defer memFeed.Close()
		feed = memFeed
		logger.Info().Msg("using in-process realtime feed")
	}

	remote := realtime.NewEmittingStore(ds, feed, logger)

	if cfg.SeedMatchWith != uuid.Nil {
		match, err := ds.CreateMatch(ctx, cfg.UserID, cfg.SeedMatchWith)
		if err != nil {
			logger.Fatal().Err(err).Msg("seeding match failed")
		}
		logger.Info().Str("match_id", match.ID.String()).Msg("seeded development match")
	}

	sync := chat.New(remote, feed, cfg.UserID, logger)

	// Initial load; the realtime loop keeps it current afterwards.
	if err := sync.FetchConversations(ctx); err != nil {
		logger.Error().Err(err).Msg("initial conversation fetch failed")
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- sync.Run(ctx)
	}()

	router := api.NewRouter(logger, cfg, sync, remote, redisStore)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		// Event streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("user_id", cfg.UserID.String()).
			Msg("starting chatd")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for a signal or for the realtime loop to die
	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil {
			logger.Error().Err(err).Msg("realtime loop stopped")
		}
	}
	stop()

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
