// Package postgres stores finished matches in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/config"
)

// Pool is the arena's connection pool. Run as a server.Service it pings the
// database periodically and closes the pool on Stop.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	// Interval between health pings while started.
	Interval time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

// NewPool connects a pool described by cfg and verifies it with a ping.
//
// Precondition: cfg must contain valid database connection parameters; logger must be non-nil.
// Postcondition: Returns a connected Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "arena"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	return &Pool{
		pool:     pool,
		logger:   logger,
		Interval: 30 * time.Second,
		done:     make(chan struct{}),
	}, nil
}

// Health checks that the database answers a ping within timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Start pings the database every Interval until Stop, logging failures.
func (p *Pool) Start() error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return nil
		case <-ticker.C:
			if err := p.Health(context.Background(), 5*time.Second); err != nil {
				st := p.pool.Stat()
				p.logger.Warn("database health check failed",
					zap.Error(err),
					zap.Int32("total_conns", st.TotalConns()),
					zap.Int32("idle_conns", st.IdleConns()),
				)
			}
		}
	}
}

// Stop ends Start and releases every connection.
//
// Postcondition: The pool is unusable. Safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.pool.Close()
	})
}

// Close is Stop, for callers that never started the monitor.
func (p *Pool) Close() {
	p.Stop()
}

// DB returns the underlying pgxpool.Pool for use by repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
