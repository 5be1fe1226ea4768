package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the client behind the shared rate-limit store.
// One address yields a single-node client; several yield a cluster client.
type RedisConfig struct {
	Addrs    []string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c RedisConfig) options() (*redis.UniversalOptions, error) {
	if len(c.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}
	if len(c.Addrs) > 1 && c.DB != 0 {
		return nil, errors.New("redis: cluster mode supports only DB 0")
	}
	return &redis.UniversalOptions{
		Addrs:        c.Addrs,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  orDefault(c.DialTimeout, 3*time.Second),
		ReadTimeout:  orDefault(c.ReadTimeout, 2*time.Second),
		WriteTimeout: orDefault(c.WriteTimeout, 2*time.Second),
		PoolSize:     c.PoolSize,
	}, nil
}

// OpenRedis builds a universal client and pings it. Rate-limit keys are
// single-key scripts, so they work unchanged against a cluster.
func OpenRedis(ctx context.Context, cfg RedisConfig) (redis.UniversalClient, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, orDefault(cfg.PingTimeout, 2*time.Second))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
