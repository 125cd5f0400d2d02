package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/lock"
	"github.com/warp/leave-engine/observability"
	"github.com/warp/leave-engine/store/sqlite"
)

// app is everything a command needs, built once from Config.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	store       *sqlite.Store
	redis       *redis.Client // nil with the local lock backend
	metrics     *observability.Metrics
	coordinator *leave.Coordinator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DB.Path, err)
	}

	a := &app{cfg: cfg, logger: logger, store: store, metrics: observability.NewMetrics()}

	coord := leave.NewCoordinator(store, store.Employees(), cfg.Policy)
	coord.Audit = store
	coord.Recorder = a.metrics
	coord.Logger = logger
	coord.Now = func() time.Time { return time.Now().In(loc) }

	if cfg.Lock.Backend == config.LockBackendRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		coord.Locker = lock.NewRedis(a.redis, lock.Options{Expiry: cfg.Lock.LockTTL()}, logger)
	}

	a.coordinator = coord
	logger.Info("leave engine ready",
		zap.String("db", cfg.DB.Path),
		zap.String("lock_backend", cfg.Lock.Backend),
		zap.String("timezone", loc.String()),
		zap.Int("annual_quota", cfg.Policy.AnnualQuota))
	return a, nil
}

// Close releases the lock backend and the database.
func (a *app) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("closing redis", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
	return a.store.Close()
}

// loadConfig applies command-line overrides on top of the environment.
func loadConfig(dbPath, addr string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if addr != "" {
		cfg.App.Addr = addr
	}
	return cfg, nil
}
