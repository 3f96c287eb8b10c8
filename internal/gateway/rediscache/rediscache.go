// Package rediscache wraps a gateway and caches its aggregate RPC results in
// Redis. Every successful write through the wrapper drops the cached results.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stockdash/internal/gateway"
	"stockdash/pkg/logger"
)

const DefaultTTL = time.Minute

type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Errors        uint64 `json:"errors"`
	Invalidations uint64 `json:"invalidations"`
}

// Gateway is a gateway.Gateway whose RPC calls are served from Redis when fresh.
// Redis failures are logged and the call goes to the wrapped gateway.
type Gateway struct {
	gateway.Gateway
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger

	hits, misses, errors, invalidations atomic.Uint64
}

func New(inner gateway.Gateway, client *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *Gateway {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "stockdash:"
	}
	return &Gateway{
		Gateway: inner,
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		log:     logger.Named(log, "rediscache"),
	}
}

// cacheKey encodes the call. json.Marshal sorts map keys, so equal arguments
// give equal keys.
func (g *Gateway) cacheKey(name string, args map[string]any) (string, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode rpc args: %w", err)
	}
	return fmt.Sprintf("%srpc:%s:%s", g.prefix, name, encoded), nil
}

func (g *Gateway) RPC(ctx context.Context, name string, args map[string]any) ([]gateway.Row, error) {
	key, err := g.cacheKey(name, args)
	if err != nil {
		return g.Gateway.RPC(ctx, name, args)
	}

	data, err := g.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rows []gateway.Row
		if err := json.Unmarshal(data, &rows); err == nil {
			g.hits.Add(1)
			return rows, nil
		}
		g.errors.Add(1)
	case err == redis.Nil:
		g.misses.Add(1)
	default:
		g.errors.Add(1)
		g.log.Warn("cache get", zap.String("rpc", name), zap.Error(err))
	}

	rows, err := g.Gateway.RPC(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(rows); err == nil {
		if err := g.client.Set(ctx, key, encoded, g.ttl).Err(); err != nil {
			g.errors.Add(1)
			g.log.Warn("cache set", zap.String("rpc", name), zap.Error(err))
		}
	}
	return rows, nil
}

func (g *Gateway) Insert(ctx context.Context, table string, record gateway.Row) (gateway.Row, error) {
	row, err := g.Gateway.Insert(ctx, table, record)
	if err == nil {
		g.Invalidate(ctx)
	}
	return row, err
}

func (g *Gateway) Update(ctx context.Context, table string, patch gateway.Row, filter gateway.Filter) error {
	err := g.Gateway.Update(ctx, table, patch, filter)
	if err == nil {
		g.Invalidate(ctx)
	}
	return err
}

func (g *Gateway) Delete(ctx context.Context, table string, filter gateway.Filter) error {
	err := g.Gateway.Delete(ctx, table, filter)
	if err == nil {
		g.Invalidate(ctx)
	}
	return err
}

// Invalidate drops every cached RPC result.
func (g *Gateway) Invalidate(ctx context.Context) {
	g.invalidations.Add(1)
	var cursor uint64
	for {
		keys, next, err := g.client.Scan(ctx, cursor, g.prefix+"rpc:*", 100).Result()
		if err != nil {
			g.errors.Add(1)
			g.log.Warn("cache invalidate", zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := g.client.Del(ctx, keys...).Err(); err != nil {
				g.errors.Add(1)
				g.log.Warn("cache invalidate", zap.Error(err))
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (g *Gateway) Stats() Stats {
	return Stats{
		Hits:          g.hits.Load(),
		Misses:        g.misses.Load(),
		Errors:        g.errors.Load(),
		Invalidations: g.invalidations.Load(),
	}
}
