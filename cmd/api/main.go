package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kasirpos.org/internal/audit"
	"kasirpos.org/internal/auth"
	"kasirpos.org/internal/config"
	"kasirpos.org/internal/httpapi"
	"kasirpos.org/internal/obs"
	"kasirpos.org/internal/store/memory"
	"kasirpos.org/internal/store/pg"
)

var (
	version = "1.2.0"
	commit  = "none"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Store selection: PostgreSQL when a DSN is given, in-memory otherwise.
	var (
		store    auth.Store
		auditLog audit.Log
		pingDB   *sql.DB
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		defer func() { _ = pgStore.Close() }()
		store = pgStore
		auditLog = pgStore
		pingDB = pgStore.DB().DB
	} else {
		logger.Warn("KASIRPOS_PG_DSN is empty, using in-memory store")
		mem := memory.New()
		store = mem
		auditLog = mem
	}

	sink := audit.NewRecorder(auditLog, logger)

	tokens, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenIssuer,
		auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}

	svc, err := auth.NewService(store, tokens, sink,
		auth.WithFailureThreshold(cfg.FailureThreshold),
		auth.WithLockDuration(cfg.LockDuration),
		auth.WithBcryptCost(cfg.BcryptCost))
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}

	registry, err := auth.NewRoleRegistry(store, sink)
	if err != nil {
		logger.Fatal("role registry", zap.Error(err))
	}

	api := httpapi.New(httpapi.Options{
		Service:    svc,
		Registry:   registry,
		Tokens:     tokens,
		Logger:     logger,
		ReadyProbe: httpapi.ReadyProbe{DB: pingDB},
		Version:    version,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting kasirpos-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr))

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	logger.Info("stopped")
}
