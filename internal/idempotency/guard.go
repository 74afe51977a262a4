// Package idempotency holds the cross-instance marker that keeps two service
// instances from computing the same idempotency key at the same time.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrHeld is returned by Acquire when another owner holds the key.
var ErrHeld = errors.New("idempotency key is held by another attempt")

// Lease is an acquired in-progress marker.
type Lease interface {
	Release(ctx context.Context) error
}

// Guard marks keys as in progress across instances.
type Guard interface {
	// Acquire marks key as in progress. It returns ErrHeld when the marker
	// already belongs to someone else.
	Acquire(ctx context.Context, key string) (Lease, error)
}

// releaseScript deletes the marker only while it still carries our token.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// RedisGuard implements Guard with SET NX and a TTL, so a crashed owner frees
// the key once the TTL lapses.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisGuard creates a Redis-backed guard.
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("redis client required for idempotency guard")
	}
	if ttl <= 0 {
		return nil, errors.New("idempotency guard TTL must be positive")
	}
	return &RedisGuard{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "idempotency_guard").Logger(),
	}, nil
}

// MarkerKey is the Redis key used for an idempotency key. Keys are hashed so
// arbitrary client input never lands in the keyspace verbatim.
func MarkerKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "idem:" + hex.EncodeToString(sum[:])
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (Lease, error) {
	marker := MarkerKey(key)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, marker, token, g.ttl).Result()
	if err != nil {
		g.logger.Error().Err(err).Str("marker", marker).Msg("failed to set in-progress marker")
		return nil, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		g.logger.Debug().Str("marker", marker).Msg("in-progress marker held elsewhere")
		return nil, ErrHeld
	}

	return &redisLease{guard: g, marker: marker, token: token}, nil
}

type redisLease struct {
	guard  *RedisGuard
	marker string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.guard.client, []string{l.marker}, l.token).Err(); err != nil {
		l.guard.logger.Warn().Err(err).Str("marker", l.marker).Msg("failed to release in-progress marker")
		return fmt.Errorf("release marker: %w", err)
	}
	return nil
}

// NopGuard always grants the key. It is used when no shared store is configured
// and the process is the only writer.
type NopGuard struct{}

func (NopGuard) Acquire(context.Context, string) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Release(context.Context) error { return nil }

// OpenRedis connects to the Redis instance at url and verifies it answers.
func OpenRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis connection established")
	return client, nil
}
