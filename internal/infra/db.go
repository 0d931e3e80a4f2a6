package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// Connections kept beyond the executor limit for the API, the recovery
	// scan and the finalize writes of detached executions.
	poolHeadroom = 4
	minPoolSize  = 10
	connectWait  = 10 * time.Second
)

// NewDBPool opens the job store pool and pings it. Every in-flight execution
// may hold a connection while it locks or appends, so the pool grows with
// MAX_CONCURRENT_EXECUTIONS.
func NewDBPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("database: config is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: parse url: %w", err)
	}
	poolCfg.MaxConns = poolSize(cfg.MaxConcurrentExecutions)
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = "genstudio"
	}

	ctx, cancel := context.WithTimeout(ctx, connectWait)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return pool, nil
}

func poolSize(executions int) int32 {
	n := int32(executions + poolHeadroom)
	if n < minPoolSize {
		return minPoolSize
	}
	return n
}
