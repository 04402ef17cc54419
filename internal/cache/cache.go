package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

var Module = fx.Module("cache",
	fx.Provide(NewService),
)

// Service wraps a Redis client for read-path caching. The cache is
// strictly optional: when no Redis host is configured, or Redis is
// unreachable, every operation degrades to a miss and the rest of the
// system keeps working against Postgres alone.
type Service struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewService connects to Redis when configured. Connection failures
// are logged and leave the cache disabled rather than failing startup.
func NewService(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) *Service {
	log = log.With(logger.Scope("cache"))

	svc := &Service{
		ttl: cfg.Redis.TTL(),
		log: log,
	}

	if !cfg.Redis.Enabled() {
		log.Info("cache disabled (REDIS_HOST not set)")
		return svc
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, cache disabled",
			slog.String("addr", cfg.Redis.Addr()),
			logger.Error(err),
		)
		_ = client.Close()
		return svc
	}

	svc.client = client
	log.Info("cache connected",
		slog.String("addr", cfg.Redis.Addr()),
		slog.Duration("ttl", svc.ttl),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return svc
}

// NewWithClient wraps an existing Redis client. Callers own the client
// lifecycle; tests use this with miniredis.
func NewWithClient(client *redis.Client, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		client: client,
		ttl:    ttl,
		log:    log.With(logger.Scope("cache")),
	}
}

// Enabled returns true when a Redis connection is live
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Ping probes the Redis connection. Unlike the read/write paths this
// surfaces the error: health checks report cache state instead of
// masking it.
func (s *Service) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// GetJSON reads key and unmarshals it into dest. Returns false on a
// miss or any Redis error; errors are logged, never propagated.
func (s *Service) GetJSON(ctx context.Context, key string, dest any) bool {
	if !s.Enabled() {
		return false
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("cache get failed", slog.String("key", key), logger.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.log.Warn("cache entry corrupt, dropping",
			slog.String("key", key),
			logger.Error(err),
		)
		_ = s.client.Del(ctx, key).Err()
		return false
	}

	return true
}

// SetJSON marshals value and stores it under key. A zero ttl uses the
// configured default. Errors are logged and swallowed.
func (s *Service) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if !s.Enabled() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache marshal failed", slog.String("key", key), logger.Error(err))
		return
	}

	if ttl == 0 {
		ttl = s.ttl
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.log.Warn("cache set failed", slog.String("key", key), logger.Error(err))
	}
}

// Invalidate deletes the given keys
func (s *Service) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn("cache invalidate failed", logger.Error(err))
	}
}

// InvalidatePrefix deletes every key matching prefix*. Uses SCAN so
// large keyspaces do not block Redis.
func (s *Service) InvalidatePrefix(ctx context.Context, prefix string) {
	if !s.Enabled() {
		return
	}

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			s.log.Warn("cache scan failed", slog.String("prefix", prefix), logger.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.log.Warn("cache invalidate failed", logger.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
