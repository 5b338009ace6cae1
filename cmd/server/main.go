// Package main initializes and starts the mood store server, setting up
// configuration, logging, the database connection, the optional Redis cache,
// the live feed hub, services and handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/moodmap/internal/cache"
	"github.com/atinyakov/moodmap/internal/config"
	"github.com/atinyakov/moodmap/internal/db"
	"github.com/atinyakov/moodmap/internal/logger"
	"github.com/atinyakov/moodmap/internal/repository"
	"github.com/atinyakov/moodmap/internal/server/handler/http"
	"github.com/atinyakov/moodmap/internal/server/live"
	"github.com/atinyakov/moodmap/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, .env and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Purge rows that fell out of every client's window long ago.
	db.NewMoodPurger(postgresDB, options.Retention.Duration, zapLogger).
		Start(ctx, options.PurgeInterval.Duration)

	opts := []service.Option{service.WithUpsertLimit(options.UpsertLimit)}

	// Redis is optional; without it the feed is read from Postgres every time.
	if options.RedisAddr != "" {
		feedCache, err := cache.NewCache(options.RedisAddr, options.RedisPassword, 0)
		if err != nil {
			zapLogger.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			defer feedCache.Close()
			opts = append(opts, service.WithCache(feedCache))
		}
	}

	hub := live.NewHub(zapLogger)
	go hub.Run(ctx)
	opts = append(opts, service.WithEvents(hub))

	moodRepo := repository.NewPostgresMoodRepository(postgresDB)
	moodService := service.NewMoodService(moodRepo, options.RecentWindow.Duration, zapLogger, opts...)
	moodHandler := &http.MoodHandler{MoodService: moodService, Log: zapLogger}

	if options.PlatformSecret == "" {
		zapLogger.Warn("PLATFORM_SECRET is empty, verified identities will be rejected")
	}
	router := http.NewRouter(moodHandler, hub.ServeWS, []byte(options.PlatformSecret), zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	tlsEnabled := options.TLSCert != "" && options.TLSKey != ""
	zapLogger.Info("starting server", zap.String("addr", options.Port), zap.Bool("tls", tlsEnabled))
	if tlsEnabled {
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
