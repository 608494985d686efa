package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/raulbatres90/challenge-estudiantes/internal/config"
	"github.com/raulbatres90/challenge-estudiantes/internal/core"
	"github.com/raulbatres90/challenge-estudiantes/internal/logging"
	"github.com/raulbatres90/challenge-estudiantes/internal/metrics"
	"github.com/raulbatres90/challenge-estudiantes/internal/store"
	"github.com/raulbatres90/challenge-estudiantes/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"insert_workers", cfg.Import.InsertWorkers,
		"reserve_rejected_keys", cfg.Import.ReserveRejectedKeys,
		"rate_limit", cfg.Server.RateLimit,
	)

	ctx := context.Background()
	pool, err := store.Open(ctx, cfg.Database.PoolConfig())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Database.MigrateOnStart {
		if err := store.Migrate(ctx, pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	students := store.New(pool)

	var opts []core.ServiceOption
	var webOpts []web.Option
	if cfg.Metrics.Enabled {
		m := metrics.New()
		opts = append(opts, core.WithObserver(m))
		webOpts = append(webOpts, web.WithMetrics(m))
	}
	webOpts = append(webOpts, web.WithHealthCheck(students))

	service := core.NewService(students, cfg.Import.ServiceConfig(), opts...)
	server := web.NewServer(service, cfg, webOpts...)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then wait for running imports.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		limiter := service.Limiter()
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
