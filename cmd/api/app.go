package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/medelle/practice-api/internal/config"
	"github.com/medelle/practice-api/internal/repository"
	"github.com/medelle/practice-api/internal/repository/memory"
	"github.com/medelle/practice-api/internal/repository/postgres"
	"github.com/medelle/practice-api/internal/tokenstore"
	"github.com/medelle/practice-api/pkg/logger"
	"github.com/medelle/practice-api/pkg/messaging"
	"github.com/medelle/practice-api/pkg/messaging/redis"
	"github.com/medelle/practice-api/pkg/metrics"
	"github.com/medelle/practice-api/pkg/worker"
)

const metricsNamespace = "medelle"

// app holds the process wide dependencies shared by every subcommand
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	db       *sqlx.DB
	store    repository.Store
	redis    *goredis.Client
	closers  []io.Closer
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger.Setup(cfg.Log),
		registry: prometheus.NewRegistry(),
	}
	a.metrics = metrics.New(metricsNamespace, a.registry)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		a.logger.Warn().Msg("Using in-memory storage, data is lost on exit")
		a.store = memory.NewStore()
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db)
		a.store = postgres.NewStore(db)
	}

	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, client)
	}

	return a, nil
}

// ledger records consumed single-use tokens in Redis when it is
// configured, so every replica sees the same set.
func (a *app) ledger() tokenstore.Ledger {
	if a.redis != nil {
		return tokenstore.NewRedisLedger(a.redis)
	}
	a.logger.Warn().Msg("Redis not configured, token ledger is process local")
	return tokenstore.NewMemoryLedger(10 * time.Minute)
}

// broker shares the app's Redis client, which Close releases
func (a *app) broker() messaging.Broker {
	if a.redis != nil {
		return redis.NewRedisBroker(a.redis, a.logger)
	}
	a.logger.Warn().Msg("Redis not configured, outbox events are published in process")
	return messaging.NewLocalBroker()
}

// paymentLogger is the structured logger handed to the PayPal client
func (a *app) paymentLogger() *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if a.cfg.IsProduction() {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to build payment logger")
		return zap.NewNop()
	}
	return l.Named("paypal")
}

// outboxWorkers starts the processor and the retention cleanup. They stop
// when ctx is cancelled.
func (a *app) outboxWorkers(ctx context.Context, broker messaging.Broker) error {
	processor, err := worker.NewOutboxProcessor(a.store.Outbox(), broker, worker.OutboxProcessorConfig{
		BatchSize:     a.cfg.Outbox.BatchSize,
		PollInterval:  a.cfg.Outbox.PollInterval,
		RetryAttempts: a.cfg.Outbox.RetryAttempts,
		RetryDelay:    a.cfg.Outbox.RetryDelay,
		Channel:       a.cfg.Outbox.Channel,
	}, a.logger, a.metrics)
	if err != nil {
		return err
	}
	cleanup := worker.NewOutboxCleanupWorker(a.store.Outbox(), a.cfg.Outbox.Retention, a.cfg.Outbox.CleanupInterval, a.logger)

	go processor.Start(ctx)
	go cleanup.Start(ctx)
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close resource")
		}
	}
}
