// Package bootstrap assembles the executor, scanner and their collaborators
// from configuration. Both binaries share it so an API process and a worker
// process always run identical coordination code.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"genstudio/internal/adapter/memory"
	"genstudio/internal/adapter/repo"
	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/jobs"
	"genstudio/internal/providers/image"
	"genstudio/internal/storage"
)

// Trigger is a jobs.Trigger that can drain its in-flight dispatches.
type Trigger interface {
	jobs.Trigger
	Wait()
}

type Components struct {
	Pool     *pgxpool.Pool
	Store    domain.JobStore
	Owners   domain.OwnerDirectory
	Blobs    storage.BlobStore
	Provider image.Generator
	Executor *jobs.Executor
	Trigger  Trigger
	Scanner  *jobs.Scanner
}

// Close drains dispatched executions and releases the database pool.
func (c *Components) Close() {
	if c.Trigger != nil {
		c.Trigger.Wait()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Build wires every component selected by cfg.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Components, error) {
	c := &Components{}

	var sql infra.SQLExecutor
	if cfg.UsesPostgres() {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		sql = infra.NewSQLRunner(pool, logger)
		c.Store = repo.NewJobRepository(sql)
		c.Owners = repo.NewUserRepository(sql)
	} else {
		logger.Warn().Msg("bootstrap: using in-memory job store, state is lost on restart")
		c.Store = memory.NewJobStore()
		c.Owners = memory.NewOwners()
	}

	blobs, err := storage.New(ctx, storage.Options{
		Driver:          cfg.StorageDriver,
		BasePath:        absPath(cfg.StoragePath),
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("configure storage: %w", err)
	}
	c.Blobs = blobs

	providerName, generator := buildProvider(ctx, cfg, sql, logger)
	c.Provider = image.NewBreakerGenerator(providerName, generator)

	c.Executor = jobs.NewExecutor(jobs.ExecutorOptions{
		Store:        c.Store,
		Owners:       c.Owners,
		Blobs:        c.Blobs,
		Provider:     c.Provider,
		ProviderName: providerName,
		Model:        cfg.GeminiModel,
		Lease:        cfg.JobLease,
		Logger:       logger,
	})

	trigger, err := buildTrigger(cfg, c.Executor, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Trigger = trigger

	c.Scanner = jobs.NewScanner(jobs.ScannerOptions{
		Store:   c.Store,
		Trigger: c.Trigger,
		Lease:   cfg.JobLease,
		Batch:   cfg.RecoveryBatchSize,
		Logger:  logger,
	})
	return c, nil
}

// buildProvider returns the Gemini generator when an API key is configured
// or stored, and the synthetic generator otherwise.
func buildProvider(ctx context.Context, cfg *infra.Config, sql infra.SQLExecutor, logger zerolog.Logger) (string, image.Generator) {
	apiKey := cfg.GeminiAPIKey
	if sql != nil {
		key, err := credentials.NewStore(sql).ResolveAPIKey(ctx, credentials.ProviderGemini, apiKey)
		if err != nil {
			logger.Warn().Err(err).Msg("bootstrap: failed to load gemini api key from store")
		} else {
			apiKey = key
		}
	}
	if apiKey == "" {
		logger.Warn().Str("model", cfg.GeminiModel).Msg("bootstrap: gemini api key missing, using synthetic generation")
		return "synthetic", image.NewSyntheticGenerator(cfg.GeminiModel)
	}
	return credentials.ProviderGemini, image.NewGeminiGenerator(image.GeminiOptions{
		APIKey:     apiKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: cfg.ProviderTimeout},
		Logger:     &logger,
	})
}

func buildTrigger(cfg *infra.Config, runner jobs.Runner, logger zerolog.Logger) (Trigger, error) {
	switch cfg.TriggerMode {
	case "http":
		// The endpoint runs executions synchronously, so the client timeout
		// must outlast a full lease.
		client := &http.Client{Timeout: cfg.JobLease + 30*time.Second}
		t, err := jobs.NewHTTPTrigger(cfg.TriggerURL, cfg.RecoverySecret, client, logger)
		if err != nil {
			return nil, fmt.Errorf("configure http trigger: %w", err)
		}
		logger.Debug().Str("endpoint", cfg.TriggerURL).Dur("send_timeout", t.Timeout()).Msg("bootstrap: http trigger configured")
		return t, nil
	default:
		return jobs.NewLocalTrigger(runner, cfg.MaxConcurrentExecutions, logger), nil
	}
}

func absPath(p string) string {
	if p == "" {
		p = "./storage"
	}
	if filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
