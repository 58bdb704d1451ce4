// Package app wires configuration into a store, caches and services shared
// by the server and scheduler binaries.
package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/ledger-engine/internal/cache"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/repository"
	"github.com/segyhp/ledger-engine/internal/repository/memory"
	"github.com/segyhp/ledger-engine/internal/service"
	"github.com/segyhp/ledger-engine/pkg/metrics"
	"go.uber.org/zap"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   repository.Store
	Redis   *redis.Client
	Metrics *metrics.Collector

	Balances    *service.BalanceService
	Eligibility *service.EligibilityService
	Requests    *service.RequestService
	Approvals   *service.ApprovalService
	Audit       *service.AuditService
	Payroll     *service.PayrollService
}

// New opens the configured store and builds every service on top of it.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}

	a := &App{
		Config:  cfg,
		Logger:  log,
		Store:   store,
		Metrics: metrics.NewCollector(),
	}

	var idempotency cache.IdempotencyStore
	if cfg.Redis.Host != "" {
		a.Redis = initRedis(cfg)
		idempotency = cache.NewRedisIdempotencyStore(a.Redis, cfg.Redis.IdempotencyTTL)
	} else {
		idempotency = cache.NewMemoryIdempotencyStore(cfg.Redis.IdempotencyTTL)
	}

	a.Balances = service.NewBalanceService(store, log)
	a.Eligibility = service.NewEligibilityService(store, cfg, log)
	a.Requests = service.NewRequestService(store, a.Eligibility, idempotency, cfg, log, a.Metrics)
	a.Approvals = service.NewApprovalService(store, cfg, log, a.Metrics)
	a.Audit = service.NewAuditService(store, log)
	a.Payroll = service.NewPayrollService(store, cfg, log, a.Metrics)

	return a, nil
}

func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("closing redis", zap.Error(err))
		}
	}
	return a.Store.Close()
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.New(nil), nil
	case "postgres":
		db, err := initDB(cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
