package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raulbatres90/challenge-estudiantes/internal/config"
	"github.com/raulbatres90/challenge-estudiantes/internal/core"
	"github.com/raulbatres90/challenge-estudiantes/internal/intake"
	"github.com/raulbatres90/challenge-estudiantes/internal/logging"
	"github.com/raulbatres90/challenge-estudiantes/internal/store"
)

// loadConfig reads the environment and routes logs to stderr.
func loadConfig(requireDatabase bool) (*config.Config, error) {
	load := config.LoadLocal
	if requireDatabase {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return store.Open(ctx, cfg.Database.PoolConfig())
}

func newService(pool *pgxpool.Pool, cfg *config.Config) *core.Service {
	return core.NewService(store.New(pool), cfg.Import.ServiceConfig())
}

// readFile parses the student file at path.
func readFile(path string, maxSize int64) (string, core.Dataset, error) {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return name, core.Dataset{}, err
	}
	defer f.Close()

	ds, err := intake.Parse(name, f, maxSize)
	return name, ds, err
}
