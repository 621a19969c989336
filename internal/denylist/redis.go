// Package denylist records single-use token ids in Redis so a token cannot
// be redeemed twice before it expires.
package denylist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hdportal/helpdesk-api/internal/config"
)

const keyPrefix = "denylist:jti:"

// Denylist stores consumed token ids.
type Denylist struct {
	Db *redis.Client
}

// InitServer connects to Redis and checks the connection.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Denylist, error) {
	const op = "denylist.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Denylist{Db: db}, nil
}

// Consume marks jti as used until expiresAt. It reports false when jti was
// already consumed. An expiresAt in the past still records the id for a
// second so concurrent redemptions are rejected.
func (d *Denylist) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	const op = "denylist.Consume"
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := d.Db.SetNX(ctx, keyPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Release forgets jti, making the token redeemable again.
func (d *Denylist) Release(ctx context.Context, jti string) error {
	const op = "denylist.Release"
	if err := d.Db.Del(ctx, keyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsUsed reports whether jti has been consumed.
func (d *Denylist) IsUsed(ctx context.Context, jti string) (bool, error) {
	const op = "denylist.IsUsed"
	n, err := d.Db.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// Close closes the Redis client.
func (d *Denylist) Close() error {
	return d.Db.Close()
}
