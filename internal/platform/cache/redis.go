package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the report cache client. Zero values keep go-redis defaults.
type Options struct {
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	PingTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates a Redis client and checks that the server answers.
func New(ctx context.Context, addr string, opts ...Options) (*redis.Client, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if addr == "" {
		return nil, fmt.Errorf("platform/cache: empty address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
	})

	timeout := o.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", addr, err)
	}

	return client, nil
}
