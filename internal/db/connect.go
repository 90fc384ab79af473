package db

import (
	"context"
	"time"

	"tournament_market/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens the pool and pings it. Startup cannot continue without a database.
func Connect(ctx context.Context, dsn string, maxConns int32) *pgxpool.Pool {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("invalid DATABASE_URL", "error", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected", "max_conns", cfg.MaxConns)
	return db
}
