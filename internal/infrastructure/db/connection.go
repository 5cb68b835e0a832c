// Package db manages the PostgreSQL connection pool and wires up the
// persistence repositories.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/pulsefeed/trendwatch/internal/persistence"
	"github.com/pulsefeed/trendwatch/internal/persistence/postgres"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"PG_CONN_MAX_IDLE_TIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PG_QUERY_TIMEOUT"`
}

// DefaultConfig returns reasonable pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// Manager owns the connection pool and repository instances.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
}

// NewManager opens the pool, probes it, and builds the repositories.
func NewManager(config Config) (*Manager, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repos := &persistence.Repository{
		Events:    postgres.NewEventsRepo(db, config.QueryTimeout),
		Clusters:  postgres.NewClustersRepo(db, config.QueryTimeout),
		Baselines: postgres.NewBaselinesRepo(db, config.QueryTimeout),
		Lookups:   postgres.NewLookupsRepo(db, config.QueryTimeout),
		Jobs:      postgres.NewJobsRepo(db, config.QueryTimeout),
	}

	return &Manager{db: db, config: config, repos: repos}, nil
}

// Repository returns the repository collection.
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// DB returns the underlying pool for readers that query input tables.
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// Ping tests connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Stats returns connection pool statistics for the health endpoint.
func (m *Manager) Stats() map[string]interface{} {
	stats := m.db.Stats()
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Close closes the pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
