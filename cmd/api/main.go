package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samruddhi2909/gitlabhq/internal/app"
	"github.com/samruddhi2909/gitlabhq/internal/cache"
	"github.com/samruddhi2909/gitlabhq/internal/config"
	"github.com/samruddhi2909/gitlabhq/internal/gitrepo"
	"github.com/samruddhi2909/gitlabhq/internal/logger"
	"github.com/samruddhi2909/gitlabhq/internal/position"
	"github.com/samruddhi2909/gitlabhq/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir)); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Error("failed to create repos dir", "error", err)
		os.Exit(1)
	}

	dataStore := store.NewPostgresStore(db)
	tracker := position.NewTracker(gitrepo.New(cfg.ReposDir))

	var accessCache *cache.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Info("using redis for project access cache")
		accessCache, err = cache.NewRedisStore(cfg.RedisURL, cfg.AccessCacheTTL)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer accessCache.Close()
	} else {
		log.Info("project access cache disabled, reading members from postgres")
	}

	service := app.New(cfg, dataStore, accessCache, tracker, log)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("discussions API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
