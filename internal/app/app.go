// Package app builds the service and its backends from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stockdash/internal/config"
	"stockdash/internal/db"
	"stockdash/internal/gateway"
	"stockdash/internal/gateway/gcsstore"
	"stockdash/internal/gateway/memgateway"
	"stockdash/internal/gateway/pggateway"
	"stockdash/internal/gateway/postgrest"
	"stockdash/internal/gateway/rediscache"
	"stockdash/internal/retry"
	"stockdash/internal/service"
)

type App struct {
	Service *service.Service
	// Cache is nil unless REDIS_ADDR is set and the server answered.
	Cache *rediscache.Gateway

	log     *zap.Logger
	closers []func() error
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{log: log}

	var (
		gw        gateway.Gateway
		objects   gateway.ObjectStore
		functions gateway.FunctionInvoker
	)
	switch cfg.GatewayDriver {
	case config.DriverPostgREST:
		client := postgrest.New(postgrest.Config{URL: cfg.SupabaseURL, Key: cfg.SupabaseKey})
		gw, functions = client, client
		if cfg.StorageDriver == config.StorageSupabase {
			objects = client
		}
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		applied, err := db.RunMigrations(ctx, pool, log.Named("migrate"))
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("database ready", zap.Strings("applied_migrations", applied))
		gw = pggateway.New(pool)
	case config.DriverMemory:
		mem := memgateway.New()
		gw, functions = mem, mem
		if cfg.StorageDriver == config.StorageNone {
			objects = mem
		}
	default:
		return nil, fmt.Errorf("unknown gateway driver %q", cfg.GatewayDriver)
	}

	if cfg.StorageDriver == config.StorageGCS {
		store, err := gcsstore.New(ctx, cfg.GCSCredentialsJSON)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		objects = store
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, rpc cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = client.Close()
		} else {
			a.Cache = rediscache.New(gw, client, "", cfg.RPCCacheTTL, log)
			a.closers = append(a.closers, client.Close)
			gw = a.Cache
		}
	}

	a.Service = service.New(service.Options{
		Gateway:        gw,
		Objects:        objects,
		Functions:      functions,
		Bucket:         cfg.ImageBucket(),
		ImportFunction: cfg.ImportFunction,
		PageSize:       cfg.PageSize,
		Retry:          retry.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay},
		ServerStock:    cfg.ServerStock,
		Logger:         log,
	})
	log.Info("backend configured",
		zap.String("gateway", cfg.GatewayDriver),
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("rpc_cache", a.Cache != nil),
		zap.Bool("server_stock", cfg.ServerStock),
	)
	return a, nil
}

// CacheStats returns the RPC cache counters, or nil without a cache.
func (a *App) CacheStats() any {
	if a.Cache == nil {
		return nil
	}
	return a.Cache.Stats()
}

// Close stops the service and releases the backends in reverse order.
func (a *App) Close() {
	if a.Service != nil {
		a.Service.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("close backends", zap.Error(err))
	}
}
