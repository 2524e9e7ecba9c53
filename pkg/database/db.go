// Package database opens the Postgres pool shared by the repositories.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/reliability/retry"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Config holds database configuration
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = time.Minute
	}
	return c
}

// ConnectionPool manages database connections
type ConnectionPool struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewConnectionPool opens and pings a Postgres pool. A malformed URL is a
// permanent error; a failed ping may be retried.
func NewConnectionPool(ctx context.Context, config *Config, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := config.withDefaults()

	if strings.HasPrefix(cfg.URL, "postgres://") || strings.HasPrefix(cfg.URL, "postgresql://") {
		if _, err := pq.ParseURL(cfg.URL); err != nil {
			return nil, retry.Permanent(fmt.Errorf("invalid database url: %w", err))
		}
	}

	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to open database: %w", err))
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := prometheus.Register(collectors.NewDBStatsCollector(db.DB, "postgres")); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
	}

	logger.Info("database connected",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)

	return &ConnectionPool{db: db, logger: logger}, nil
}

// GetDB returns the underlying sqlx handle
func (cp *ConnectionPool) GetDB() *sqlx.DB {
	return cp.db
}

// Close closes the database connection
func (cp *ConnectionPool) Close() error {
	if cp.db == nil {
		return nil
	}
	stats := cp.db.Stats()
	cp.logger.Info("closing database pool",
		slog.Int("open_connections", stats.OpenConnections),
		slog.Int64("wait_count", stats.WaitCount),
	)
	return cp.db.Close()
}

// Health runs a trivial query; a ping alone can pass on a pooled connection
// whose server is refusing queries
func (cp *ConnectionPool) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var one int
	if err := cp.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}
